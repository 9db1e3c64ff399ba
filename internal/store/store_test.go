package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/classreg/internal/config"
)

func TestOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		b, err := Open(ctx, config.DatabaseConfig{Driver: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "open.db")}, logger)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer b.Close()
		if err := b.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
		if err := b.Reset(ctx); err != nil {
			t.Errorf("Reset: %v", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		if _, err := Open(ctx, config.DatabaseConfig{Driver: "mongo"}, logger); err == nil {
			t.Error("expected an error for an unknown driver")
		}
	})
}
