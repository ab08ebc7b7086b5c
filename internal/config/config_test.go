package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		Platform:   "android",
		AppVersion: "1.4.2",
		BaseDir:    "/home/user/.local/share/talevox",
		LogDir:     "/home/user/.local/share/talevox/log",
		Content: ContentConfig{
			ChapterTextDir: "/home/user/.local/share/talevox/content/chapter_text",
			AudioDir:       "/home/user/.local/share/talevox/content/audio",
		},
		Preferences: PreferencesConfig{Type: "file", Path: "/home/user/.local/share/talevox/prefs.json"},
		Store:       StoreConfig{Type: "sqlite", DataDir: "/home/user/.local/share/talevox/data"},
		Remote: RemoteConfig{
			Type:     "s3",
			S3Bucket: "talevox-backups",
			S3Prefix: "user-1",
			S3Region: "eu-west-1",
		},
		Backup: BackupConfig{FolderName: "talevox-backups", Keep: 3},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Platform != original.Platform {
		t.Errorf("Platform = %q, want %q", got.Platform, original.Platform)
	}
	if got.AppVersion != original.AppVersion {
		t.Errorf("AppVersion = %q, want %q", got.AppVersion, original.AppVersion)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Content.ChapterTextDir != original.Content.ChapterTextDir {
		t.Errorf("Content.ChapterTextDir = %q, want %q", got.Content.ChapterTextDir, original.Content.ChapterTextDir)
	}
	if got.Content.AttachmentsDir != "" {
		t.Errorf("Content.AttachmentsDir = %q, want empty", got.Content.AttachmentsDir)
	}
	if got.Preferences.Type != "file" {
		t.Errorf("Preferences.Type = %q, want %q", got.Preferences.Type, "file")
	}
	if got.Preferences.Path != original.Preferences.Path {
		t.Errorf("Preferences.Path = %q, want %q", got.Preferences.Path, original.Preferences.Path)
	}
	if got.Store.Type != "sqlite" {
		t.Errorf("Store.Type = %q, want %q", got.Store.Type, "sqlite")
	}
	if got.Remote.Type != "s3" {
		t.Errorf("Remote.Type = %q, want %q", got.Remote.Type, "s3")
	}
	if got.Remote.S3Bucket != "talevox-backups" {
		t.Errorf("Remote.S3Bucket = %q, want %q", got.Remote.S3Bucket, "talevox-backups")
	}
	if got.Remote.S3Region != "eu-west-1" {
		t.Errorf("Remote.S3Region = %q, want %q", got.Remote.S3Region, "eu-west-1")
	}
	if got.Backup.Keep != 3 {
		t.Errorf("Backup.Keep = %d, want %d", got.Backup.Keep, 3)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("android", "/data/talevox")

	if cfg.Platform != "android" {
		t.Errorf("Platform = %q, want %q", cfg.Platform, "android")
	}
	if cfg.BaseDir != "/data/talevox" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/talevox")
	}
	if cfg.LogDir != "/data/talevox/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/talevox/log")
	}
	if cfg.Preferences.Path != "/data/talevox/prefs.json" {
		t.Errorf("Preferences.Path = %q, want %q", cfg.Preferences.Path, "/data/talevox/prefs.json")
	}
	if cfg.Store.Type != "sqlite" {
		t.Errorf("Store.Type = %q, want %q", cfg.Store.Type, "sqlite")
	}
	if cfg.Remote.Type != "none" {
		t.Errorf("Remote.Type = %q, want %q", cfg.Remote.Type, "none")
	}
	if cfg.Backup.Keep != 5 {
		t.Errorf("Backup.Keep = %d, want %d", cfg.Backup.Keep, 5)
	}
	if cfg.Content.AudioDir != "/data/talevox/content/audio" {
		t.Errorf("Content.AudioDir = %q, want %q", cfg.Content.AudioDir, "/data/talevox/content/audio")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "talevox.toml")
		cfg := NewConfig("linux", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "talevox.toml")
		cfg := NewConfig("linux", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "talevox.toml")
		cfg := NewConfig("linux", dir)
		cfg.Store = StoreConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Platform != "linux" {
			t.Errorf("Platform = %q, want %q", got.Platform, "linux")
		}
		if got.Store.Type != "memory" {
			t.Errorf("Store.Type = %q, want %q", got.Store.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/talevox.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
