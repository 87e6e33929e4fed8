package testutil

import (
	"fmt"
	"testing"

	"hunt-publish-system/logger"
	"hunt-publish-system/models"
	"hunt-publish-system/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB opens a migrated in-memory SQLite database private to the test. It allows a single
// connection, so concurrent transactions queue behind each other the way conflicting row
// updates do in Postgres.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	cfg := store.GormConfig(logger.NewNop())
	cfg.Logger = cfg.Logger.LogMode(gormLogger.Silent)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := store.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedDraftHunt creates a hunt whose only version is draft 1 holding the given steps in order.
func SeedDraftHunt(tb testing.TB, db *gorm.DB, huntID int64, stepIDs ...string) (*models.Hunt, *models.HuntVersion) {
	tb.Helper()
	hunt := &models.Hunt{
		ID:            huntID,
		TenantID:      "tenant-1",
		OwnerID:       "owner-1",
		LatestVersion: 1,
	}
	if err := db.Create(hunt).Error; err != nil {
		tb.Fatalf("seed hunt: %v", err)
	}

	version := &models.HuntVersion{
		ID:            uuid.NewString(),
		HuntID:        huntID,
		Version:       1,
		Name:          "Old Town Mystery",
		Description:   "A walk through the old town",
		StartLocation: datatypes.NewJSONType(models.Location{Lat: 59.437, Lng: 24.745, Label: "Town Hall Square"}),
		StepOrder:     datatypes.JSONSlice[string](append([]string{}, stepIDs...)),
	}
	if err := db.Create(version).Error; err != nil {
		tb.Fatalf("seed hunt version: %v", err)
	}

	for _, stepID := range stepIDs {
		SeedStep(tb, db, huntID, 1, stepID)
	}
	return hunt, version
}

// SeedStep inserts one step whose challenge references media/<stepID>.png.
func SeedStep(tb testing.TB, db *gorm.DB, huntID int64, version int, stepID string) *models.Step {
	tb.Helper()
	step := &models.Step{
		ID:          uuid.NewString(),
		HuntID:      huntID,
		HuntVersion: version,
		StepID:      stepID,
		Title:       "Step " + stepID,
		Challenge:   datatypes.JSON(fmt.Sprintf(`{"type":"photo","prompt":"find %s","asset_key":"media/%s.png"}`, stepID, stepID)),
		Settings:    datatypes.JSON(`{"hint_after_seconds":120}`),
	}
	if err := db.Create(step).Error; err != nil {
		tb.Fatalf("seed step: %v", err)
	}
	return step
}

func LoadHunt(tb testing.TB, db *gorm.DB, huntID int64) *models.Hunt {
	tb.Helper()
	var hunt models.Hunt
	if err := db.First(&hunt, "id = ?", huntID).Error; err != nil {
		tb.Fatalf("load hunt %d: %v", huntID, err)
	}
	return &hunt
}

func LoadVersion(tb testing.TB, db *gorm.DB, huntID int64, version int) *models.HuntVersion {
	tb.Helper()
	var hv models.HuntVersion
	if err := db.First(&hv, "hunt_id = ? AND version = ?", huntID, version).Error; err != nil {
		tb.Fatalf("load hunt %d version %d: %v", huntID, version, err)
	}
	return &hv
}

func CountSteps(tb testing.TB, db *gorm.DB, huntID int64, version int) int64 {
	tb.Helper()
	var n int64
	if err := db.Model(&models.Step{}).Where("hunt_id = ? AND hunt_version = ?", huntID, version).Count(&n).Error; err != nil {
		tb.Fatalf("count steps: %v", err)
	}
	return n
}
