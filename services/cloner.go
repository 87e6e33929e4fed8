// services/cloner.go
package services

import (
	"hunt-publish-system/apperr"
	"hunt-publish-system/models"
	"hunt-publish-system/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const defaultCloneBatchSize = 500

// StepCloner copies the step set of one version into another. Row ids are fresh, StepID is
// kept so a step can be followed across versions of the same hunt.
type StepCloner struct {
	Store     store.Store
	BatchSize int
}

func NewStepCloner(st store.Store, batchSize int) *StepCloner {
	if batchSize <= 0 {
		batchSize = defaultCloneBatchSize
	}
	return &StepCloner{Store: st, BatchSize: batchSize}
}

// CloneSteps must run inside the caller's transaction; a failing chunk aborts the whole copy.
func (c *StepCloner) CloneSteps(s store.Session, huntID int64, sourceVersion, targetVersion int) (int, error) {
	if sourceVersion == targetVersion {
		return 0, apperr.ValidationError("hunt.clone_steps", "source and target version must differ")
	}

	var source []models.Step
	if err := c.Store.Find(s, &source, store.Filter{"hunt_id": huntID, "hunt_version": sourceVersion}, "step_id"); err != nil {
		return 0, err
	}
	if len(source) == 0 {
		return 0, nil
	}

	clones := make([]models.Step, 0, len(source))
	for _, step := range source {
		clones = append(clones, models.Step{
			ID:          uuid.NewString(),
			HuntID:      huntID,
			HuntVersion: targetVersion,
			StepID:      step.StepID,
			Title:       step.Title,
			Challenge:   copyJSON(step.Challenge),
			Settings:    copyJSON(step.Settings),
		})
	}
	if err := c.Store.InsertBatch(s, &clones, c.BatchSize); err != nil {
		return 0, err
	}
	return len(clones), nil
}

func copyJSON(src datatypes.JSON) datatypes.JSON {
	if src == nil {
		return nil
	}
	return append(datatypes.JSON(nil), src...)
}
