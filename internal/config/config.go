package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for talevox.
type Config struct {
	Platform    string            `toml:"platform"`
	AppVersion  string            `toml:"app_version"`
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Content     ContentConfig     `toml:"content"`
	Preferences PreferencesConfig `toml:"preferences"`
	Store       StoreConfig       `toml:"store"`
	Remote      RemoteConfig      `toml:"remote"`
	Backup      BackupConfig      `toml:"backup"`
}

// ContentConfig holds the local directories that hold user content.
// An empty directory means that content class does not exist on this
// installation and is skipped during backup.
type ContentConfig struct {
	ChapterTextDir string `toml:"chapter_text_dir,omitempty"`
	AudioDir       string `toml:"audio_dir,omitempty"`
	AttachmentsDir string `toml:"attachments_dir,omitempty"`
	DiagnosticsDir string `toml:"diagnostics_dir,omitempty"`
}

// PreferencesConfig represents configuration for the preference store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type PreferencesConfig struct {
	Type string `toml:"type"`           // "memory" or "file"
	Path string `toml:"path,omitempty"` // only used for type=file
}

// StoreConfig represents configuration for the content metadata store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RemoteConfig represents configuration for the remote store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type string `toml:"type"` // "none", "memory", or "s3"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// TokenPath points to a JSON file holding the OAuth token used to
	// authorize remote operations. Empty means no stored credential.
	TokenPath string `toml:"token_path,omitempty"`
}

// BackupConfig holds backup destination and retention settings.
type BackupConfig struct {
	FolderName string `toml:"folder_name"`         // remote folder that receives backup artifacts
	LocalDir   string `toml:"local_dir,omitempty"` // local directory for on-device backups
	Keep       int    `toml:"keep"`                // number of artifacts to retain per destination
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(platform, baseDir string) *Config {
	return &Config{
		Platform: platform,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Content: ContentConfig{
			ChapterTextDir: filepath.Join(baseDir, "content", "chapter_text"),
			AudioDir:       filepath.Join(baseDir, "content", "audio"),
			AttachmentsDir: filepath.Join(baseDir, "content", "attachments"),
			DiagnosticsDir: filepath.Join(baseDir, "content", "diagnostics"),
		},
		Preferences: PreferencesConfig{
			Type: "file",
			Path: filepath.Join(baseDir, "prefs.json"),
		},
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Remote: RemoteConfig{Type: "none"},
		Backup: BackupConfig{
			FolderName: "talevox-backups",
			LocalDir:   filepath.Join(baseDir, "backups"),
			Keep:       5,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
