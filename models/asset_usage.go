// models/asset_usage.go
package models

import "time"

// AssetUsage records that a step of a hunt references a media object in the asset bucket.
// Rows are derived data: the reindexer replaces them wholesale per hunt.
type AssetUsage struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	HuntID      int64     `json:"hunt_id" gorm:"index;not null;uniqueIndex:idx_asset_usages_entry"`
	HuntVersion int       `json:"hunt_version" gorm:"not null;uniqueIndex:idx_asset_usages_entry"`
	StepID      string    `json:"step_id" gorm:"not null;uniqueIndex:idx_asset_usages_entry"`
	AssetKey    string    `json:"asset_key" gorm:"not null;uniqueIndex:idx_asset_usages_entry"`
	Present     *bool     `json:"present"` // nil when the bucket was not probed
	IndexedAt   time.Time `json:"indexed_at"`
}
