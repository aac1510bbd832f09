// Package cmd provides shared construction helpers for the service binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/intelogroup/clixen/pkg/persistence"
	"github.com/intelogroup/clixen/pkg/persistence/file"
	"github.com/intelogroup/clixen/pkg/persistence/postgresql"
)

// NewPersistence picks a storage backend from the database URL scheme. A
// postgres URL gets the relational store; anything else is treated as a file
// root, which keeps local development dependency-free.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to connect to PostgreSQL", "error", err)
			panic(err)
		}

		return store
	default:
		return file.NewPersistence(databaseURL)
	}
}
