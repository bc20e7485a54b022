package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteParams = "_foreign_keys=on&_busy_timeout=5000"

// GetDb opens the configured database. sqlite is limited to a single
// connection so writers queue instead of failing with "database is locked".
func GetDb(cfg *Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.Log.Level)),
	}

	switch strings.ToLower(cfg.DB.Driver) {
	case "postgres", "postgresql":
		db, err := gorm.Open(postgres.Open(cfg.DB.DSN), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logrus.Infof("connected to postgres")
		return db, nil
	case "sqlite", "":
		db, err := gorm.Open(sqlite.Open(SqliteDSN(cfg.DB.DSN)), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		logrus.Infof("connected to sqlite database %s", cfg.DB.DSN)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DB.Driver)
	}
}

// SqliteDSN appends the foreign key and busy timeout pragmas unless the DSN
// already carries query parameters.
func SqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "./plm.db"
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}

	return dsn + "?" + sqliteParams
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Silent
	}
}
