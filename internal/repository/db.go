package repository

import (
	"fmt"
	"time"

	"github.com/parakeetlabs/voice-bridge/internal/config"
	"github.com/parakeetlabs/voice-bridge/internal/domain"
	"github.com/parakeetlabs/voice-bridge/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the booking database and runs migrations. Postgres
// is used when DATABASE_URL is set; otherwise a local SQLite file, the
// zero-setup default for single-instance deployments.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(logger.NewGORMWriter(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		// Map driver-specific constraint violations to
		// gorm.ErrDuplicatedKey so duplicate slots are detectable
		// without sniffing error strings.
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	} else {
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open booking database: %w", err)
	}

	if cfg.DatabaseURL == "" {
		// SQLite allows one writer; a single pooled connection avoids
		// spurious "database is locked" errors under concurrent tools.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&domain.Booking{}); err != nil {
		return nil, fmt.Errorf("failed to migrate bookings table: %w", err)
	}

	return db, nil
}
