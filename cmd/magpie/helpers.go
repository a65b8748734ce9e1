package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/harlowes/magpie/internal/config"
	"github.com/harlowes/magpie/internal/harvest"
	"github.com/harlowes/magpie/internal/service"
	"github.com/harlowes/magpie/internal/storage"
)

// summaryStore is the slice of storage the post-run report needs.
type summaryStore interface {
	GetLatestRunSummary(ctx context.Context, supplier string) (*service.RunSummary, error)
}

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/magpie/magpie.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadSuppliers reads the suppliers file named by flag or config.
func loadSuppliers(flagPath string) ([]harvest.SupplierConfig, error) {
	path := flagPath
	if path == "" {
		path = viper.GetString("suppliers.path")
	}
	if path == "" {
		path = "$HOME/.config/magpie/suppliers.yaml"
	}
	return harvest.LoadSuppliers(config.ExpandPath(path))
}
