// store/db.go
package store

import (
	"fmt"
	"time"

	"hunt-publish-system/logger"
	"hunt-publish-system/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Now is the clock used for every persisted timestamp. Microsecond precision in UTC keeps
// updated_at identical after a round trip through Postgres or SQLite, which matters because
// callers hand it back as an equality token.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// GormConfig is shared by the production and test databases; gorm logs through log.
func GormConfig(log *logger.Logger) *gorm.Config {
	return &gorm.Config{
		NowFunc:        Now,
		TranslateError: true,
		Logger:         newGormLogger(log),
	}
}

func OpenPostgres(dsn string, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
