// Package store selects and opens the record store named by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/classreg/internal/config"
	"github.com/JonMunkholm/classreg/internal/core"
	"github.com/JonMunkholm/classreg/internal/store/postgres"
	"github.com/JonMunkholm/classreg/internal/store/sqlite"
)

// Supported STORE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured backend. PostgreSQL schemas are migrated
// first when cfg.AutoMigrate is set; SQLite always auto-migrates.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (core.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		if cfg.AutoMigrate {
			if err := postgres.Migrate(cfg.URL, logger); err != nil {
				return nil, err
			}
		}
		s, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database", "driver", cfg.Driver)
		return s, nil

	case DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, sqlite.NewLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("opened database", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
