package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestCodesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("publish: %w", ConflictError("hunt.publish", "draft was modified"))

	assert.True(t, IsConflict(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, "draft was modified", Message(err))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "hunt.release: no such hunt (not_found)", NotFoundError("hunt.release", "no such hunt").Error())
	assert.Equal(t, "empty step order (validation)", ValidationError("", "empty step order").Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeInternal, "store.cas", cause)

	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(CodeInternal, "op", nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, HTTPStatus(ValidationError("op", "bad")))
	assert.Equal(t, fiber.StatusConflict, HTTPStatus(ConflictError("op", "stale")))
	assert.Equal(t, fiber.StatusNotFound, HTTPStatus(NotFoundError("op", "missing")))
	assert.Equal(t, fiber.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
