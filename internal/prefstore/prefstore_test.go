package prefstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Mangusthvile/talevox/internal/config"
	"github.com/Mangusthvile/talevox/internal/vox"
)

func TestMemoryStore_SetGetRemove(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Set("ui.theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	val, ok, err := s.Get("ui.theme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if val != "dark" {
		t.Errorf("Get() = %q, want %q", val, "dark")
	}

	if err := s.Remove("ui.theme"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	_, ok, err = s.Get("ui.theme")
	if err != nil {
		t.Fatalf("Get() after Remove error = %v", err)
	}
	if ok {
		t.Error("Get() after Remove ok = true, want false")
	}
}

func TestKeysByPrefix(t *testing.T) {
	stores := []struct {
		name  string
		build func(t *testing.T) vox.PreferenceStore
	}{
		{
			name: "memory",
			build: func(t *testing.T) vox.PreferenceStore {
				return NewMemoryStore()
			},
		},
		{
			name: "file",
			build: func(t *testing.T) vox.PreferenceStore {
				s, err := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
				if err != nil {
					t.Fatalf("NewFileStore() error = %v", err)
				}
				return s
			},
		},
	}

	for _, tc := range stores {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.build(t)
			seed := map[string]string{
				"reader.position.book-1": "42",
				"reader.position.book-2": "7",
				"ui.theme":               "dark",
			}
			for k, v := range seed {
				if err := s.Set(k, v); err != nil {
					t.Fatalf("Set(%q) error = %v", k, err)
				}
			}

			keys, err := s.KeysByPrefix("reader.position.")
			if err != nil {
				t.Fatalf("KeysByPrefix() error = %v", err)
			}
			if len(keys) != 2 {
				t.Fatalf("len(keys) = %d, want 2", len(keys))
			}
			// Keys come back sorted.
			if keys[0] != "reader.position.book-1" || keys[1] != "reader.position.book-2" {
				t.Errorf("KeysByPrefix() = %v, want sorted reader.position keys", keys)
			}

			all, err := s.Keys()
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if len(all) != 3 {
				t.Errorf("len(Keys()) = %d, want 3", len(all))
			}
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := s.Set("tts.voice", "en-GB-standard"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set("tts.rate", "1.25"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Remove("tts.rate"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}
	val, ok, err := reopened.Get("tts.voice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || val != "en-GB-standard" {
		t.Errorf("Get(tts.voice) = %q, %v; want %q, true", val, ok, "en-GB-standard")
	}
	if _, ok, _ := reopened.Get("tts.rate"); ok {
		t.Error("Get(tts.rate) ok = true after Remove, want false")
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("len(Keys()) = %d, want 0", len(keys))
	}
}

func TestFileStore_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := NewFileStore(path); err == nil {
		t.Fatal("NewFileStore() expected error for corrupt file")
	}
}

func TestNewPreferenceStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PreferencesConfig
		wantErr bool
	}{
		{
			name:    "memory store",
			cfg:     config.PreferencesConfig{Type: "memory"},
			wantErr: false,
		},
		{
			name:    "file store",
			cfg:     config.PreferencesConfig{Type: "file", Path: filepath.Join(t.TempDir(), "prefs.json")},
			wantErr: false,
		},
		{
			name:    "file store without path",
			cfg:     config.PreferencesConfig{Type: "file"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     config.PreferencesConfig{Type: "redis"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPreferenceStoreFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPreferenceStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got == nil {
				t.Error("NewPreferenceStoreFromConfig() returned nil store")
			}
		})
	}
}
