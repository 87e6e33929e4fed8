// models/step.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Step belongs to exactly one (HuntID, HuntVersion). StepID is carried over when a
// version is cloned so a step's history can be followed across versions; ID is the row.
type Step struct {
	ID          string `json:"id" gorm:"primaryKey"`
	HuntID      int64  `json:"hunt_id" gorm:"not null;uniqueIndex:idx_steps_hunt_version_step"`
	HuntVersion int    `json:"hunt_version" gorm:"not null;uniqueIndex:idx_steps_hunt_version_step"`
	StepID      string `json:"step_id" gorm:"not null;uniqueIndex:idx_steps_hunt_version_step"`

	Title     string         `json:"title"`
	Challenge datatypes.JSON `json:"challenge"`
	Settings  datatypes.JSON `json:"settings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
