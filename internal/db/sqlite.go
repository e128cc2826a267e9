// internal/db/sqlite.go
package db

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
)

// OpenSQLite opens a gorm handle on dsn. In-memory databases live as long as the single
// pooled connection, so the pool is pinned to one connection.
func OpenSQLite(dsn string, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if log != nil {
		switch {
		case log.Core().Enabled(zapcore.DebugLevel):
			logLevel = logger.Info
		case log.Core().Enabled(zapcore.WarnLevel):
			logLevel = logger.Warn
		}
	}

	db, err := gorm.Open(gormlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	return db, nil
}
