package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mangusthvile/talevox/internal/config"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// NewContentStoreFromConfig creates a ContentStore implementation based on the store config type.
func NewContentStoreFromConfig(cfg config.StoreConfig) (vox.ContentStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "talevox.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
