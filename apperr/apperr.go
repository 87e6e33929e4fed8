// apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Code classifies a pipeline failure so callers can decide whether to refresh and retry.
type Code string

const (
	CodeValidation Code = "validation"
	CodeConflict   Code = "conflict"
	CodeNotFound   Code = "not_found"
	CodeInternal   Code = "internal"
)

type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// ValidationError marks a request that can never succeed as submitted.
func ValidationError(op, message string) error {
	return New(CodeValidation, op, message, nil)
}

// ConflictError marks a lost optimistic-concurrency race. The message should tell the
// caller what moved and that it has to re-read before resubmitting.
func ConflictError(op, message string) error {
	return New(CodeConflict, op, message, nil)
}

// NotFoundError marks a hunt or version that does not exist at all.
func NotFoundError(op, message string) error {
	return New(CodeNotFound, op, message, nil)
}

// Wrap annotates err with a code, keeping it reachable through errors.Is/As.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(code, op, err.Error(), err)
}

func CodeOf(err error) Code {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return ""
	}
	return appErr.Code
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func IsValidation(err error) bool { return IsCode(err, CodeValidation) }
func IsConflict(err error) bool   { return IsCode(err, CodeConflict) }
func IsNotFound(err error) bool   { return IsCode(err, CodeNotFound) }

// Message returns the human-readable part of err without the op prefix.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps err to the status code the fiber handlers respond with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeConflict:
		return fiber.StatusConflict
	case CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
