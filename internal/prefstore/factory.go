package prefstore

import (
	"fmt"

	"github.com/Mangusthvile/talevox/internal/config"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// NewPreferenceStoreFromConfig creates a PreferenceStore implementation based on the preferences config type.
func NewPreferenceStoreFromConfig(cfg config.PreferencesConfig) (vox.PreferenceStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file preference store requires path to be set")
		}
		return NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown preference store type: %s", cfg.Type)
	}
}
