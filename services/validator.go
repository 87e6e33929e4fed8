// services/validator.go
package services

import (
	"context"
	"fmt"

	"hunt-publish-system/apperr"
	"hunt-publish-system/models"
	"hunt-publish-system/store"
)

// InvalidStepOrderPrefix starts every step order integrity failure, so callers can tell
// them apart from the missing-draft, no-steps and empty-order failures.
const InvalidStepOrderPrefix = "invalid step order: "

// VersionValidator decides whether a draft may be published. It never writes.
type VersionValidator struct {
	Store  store.Store
	Runner store.TxRunner
}

func NewVersionValidator(st store.Store, runner store.TxRunner) *VersionValidator {
	return &VersionValidator{Store: st, Runner: runner}
}

// ValidateCanPublish runs Check in a transaction of its own.
func (v *VersionValidator) ValidateCanPublish(ctx context.Context, huntID int64, version int) error {
	return runInTx(ctx, v.Runner, opValidate, func(s store.Session) error {
		_, err := v.Check(s, huntID, version)
		return err
	})
}

// Check runs the publish preconditions in order inside the caller's session and returns
// the draft it validated.
func (v *VersionValidator) Check(s store.Session, huntID int64, version int) (*models.HuntVersion, error) {
	var draft models.HuntVersion
	err := v.Store.First(s, &draft, store.Filter{
		"hunt_id":      huntID,
		"version":      version,
		"is_published": false,
	})
	if apperr.IsNotFound(err) {
		return nil, apperr.ValidationError(opValidate, "version not found or already published")
	}
	if err != nil {
		return nil, err
	}

	stepCount, err := v.Store.Count(s, &models.Step{}, store.Filter{"hunt_id": huntID, "hunt_version": version})
	if err != nil {
		return nil, err
	}
	if stepCount == 0 {
		return nil, apperr.ValidationError(opValidate, "cannot publish hunt without steps")
	}

	if len(draft.StepOrder) == 0 {
		return nil, apperr.ValidationError(opValidate, "empty step order")
	}

	if err := v.checkStepOrder(s, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// checkStepOrder rejects orders that repeat a step or name one the draft does not have.
func (v *VersionValidator) checkStepOrder(s store.Session, draft *models.HuntVersion) error {
	seen := make(map[string]struct{}, len(draft.StepOrder))
	for _, id := range draft.StepOrder {
		if _, dup := seen[id]; dup {
			return apperr.ValidationError(opValidate, fmt.Sprintf(InvalidStepOrderPrefix+"step %q is listed twice", id))
		}
		seen[id] = struct{}{}
	}
	known, err := v.Store.Count(s, &models.Step{}, store.Filter{
		"hunt_id":      draft.HuntID,
		"hunt_version": draft.Version,
		"step_id":      []string(draft.StepOrder),
	})
	if err != nil {
		return err
	}
	if int(known) != len(draft.StepOrder) {
		return apperr.ValidationError(opValidate, InvalidStepOrderPrefix+"references steps that do not exist in this version")
	}
	return nil
}
