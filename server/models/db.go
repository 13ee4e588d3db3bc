package models

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open connects to the backing Postgres database and runs migrations.
// TranslateError is what lets apperrors see constraint failures as the
// gorm sentinel errors instead of raw driver errors.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to postgres: %v", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// OpenTest opens a throwaway in-memory database with the same schema,
// for use in package tests.
func OpenTest() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&JobStatus{},
		&Job{},
		&Profile{},
		&Contact{},
		&NudgeTarget{},
		&NudgeTargetContact{},
		&Nudge{},
		&NudgeUpvote{},
		&NudgeSend{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %v", err)
	}

	return seedJobStatuses(db)
}
