package store

import (
	"fmt"
	"os"
	"path/filepath"

	"invsnap/internal/config"
)

// NewStoreFromConfig creates a SQLiteStore based on the store config type.
func NewStoreFromConfig(cfg config.StoreConfig, instanceID string) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, instanceID+".db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
