// models/hunt.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Hunt is the aggregate root. It owns the two pointers the pipeline moves:
// LatestVersion (publish) and LiveVersion (release).
type Hunt struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	TenantID string `json:"tenant_id" gorm:"index;not null"`
	OwnerID  string `json:"owner_id" gorm:"not null"`

	LatestVersion int `json:"latest_version" gorm:"not null;default:1"`

	// 🚦 Live pointer: non-nil only while a published version is served to players
	LiveVersion *int       `json:"live_version"`
	ReleasedAt  *time.Time `json:"released_at"`
	ReleasedBy  *string    `json:"released_by"`

	AssetsIndexedAt *time.Time `json:"assets_indexed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLive reports whether some version is currently served to players.
func (h *Hunt) IsLive() bool {
	return h.LiveVersion != nil
}

// Location is the starting point players are sent to.
type Location struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

// HuntVersion is one snapshot of a hunt. Drafts are mutable and use UpdatedAt as their
// optimistic-lock token; once IsPublished is set nothing on the row changes again.
type HuntVersion struct {
	ID      string `json:"id" gorm:"primaryKey"`
	HuntID  int64  `json:"hunt_id" gorm:"not null;uniqueIndex:idx_hunt_versions_hunt_version"`
	Version int    `json:"version" gorm:"not null;uniqueIndex:idx_hunt_versions_hunt_version"`

	Name          string                       `json:"name" gorm:"not null"`
	Description   string                       `json:"description"`
	StartLocation datatypes.JSONType[Location] `json:"start_location"`
	StepOrder     datatypes.JSONSlice[string]  `json:"step_order"`

	// 🎛️ Publishing state
	IsPublished bool       `json:"is_published" gorm:"not null;default:false"`
	PublishedAt *time.Time `json:"published_at"`
	PublishedBy *string    `json:"published_by"`
	PublicSlug  *string    `json:"public_slug,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
