package database

import (
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies all pending schema migrations embedded in the binary.
func Migrate(db *gorm.DB, driver string, log logger.Interface) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	dialect := driver
	if dialect == "" {
		dialect = "sqlite"
	}
	if dialect == "sqlite" {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	currentVersion, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		log.Errorw("migration failed", "error", err)
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	finalVersion, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return fmt.Errorf("failed to get final version: %w", err)
	}

	log.Infow("migration completed",
		"from_version", currentVersion,
		"to_version", finalVersion)
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(db *gorm.DB, driver string, steps int, log logger.Interface) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	dialect := driver
	if dialect == "" || dialect == "sqlite" {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	for i := 0; i < steps; i++ {
		if err := goose.Down(sqlDB, "migrations"); err != nil {
			log.Errorw("down migration failed", "error", err)
			return fmt.Errorf("failed to run down migration: %w", err)
		}
	}

	log.Infow("down migration completed", "steps", steps)
	return nil
}

// MigrationVersion returns the current schema version.
func MigrationVersion(db *gorm.DB, driver string) (int64, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	dialect := driver
	if dialect == "" || dialect == "sqlite" {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}

	version, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}
