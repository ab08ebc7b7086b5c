package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"

	"github.com/Mangusthvile/talevox/internal/config"
)

func TestStaticCredentials(t *testing.T) {
	c := NewStaticCredentials("tok-123")
	tok, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "tok-123" {
		t.Errorf("Token() = %q, want %q", tok, "tok-123")
	}
}

func TestOAuthCredentials(t *testing.T) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-xyz"})
	c := NewOAuthCredentials(src)

	tok, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "access-xyz" {
		t.Errorf("Token() = %q, want %q", tok, "access-xyz")
	}
}

func TestNewFileCredentials(t *testing.T) {
	t.Run("loads stored token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		if err := os.WriteFile(path, []byte(`{"access_token":"stored-token","token_type":"Bearer"}`), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		c, err := NewFileCredentials(path)
		if err != nil {
			t.Fatalf("NewFileCredentials() error = %v", err)
		}
		tok, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if tok != "stored-token" {
			t.Errorf("Token() = %q, want %q", tok, "stored-token")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := NewFileCredentials("/nonexistent/token.json"); err == nil {
			t.Fatal("NewFileCredentials() expected error for missing file")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := NewFileCredentials(path); err == nil {
			t.Fatal("NewFileCredentials() expected error for malformed file")
		}
	})
}

func TestNewRemoteStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RemoteConfig
		wantErr bool
		wantNil bool
	}{
		{
			name:    "none",
			cfg:     config.RemoteConfig{Type: "none"},
			wantErr: false,
			wantNil: true,
		},
		{
			name:    "empty type means none",
			cfg:     config.RemoteConfig{},
			wantErr: false,
			wantNil: true,
		},
		{
			name:    "memory",
			cfg:     config.RemoteConfig{Type: "memory"},
			wantErr: false,
			wantNil: false,
		},
		{
			name:    "s3 without bucket",
			cfg:     config.RemoteConfig{Type: "s3"},
			wantErr: true,
			wantNil: true,
		},
		{
			name:    "unknown type",
			cfg:     config.RemoteConfig{Type: "gdrive"},
			wantErr: true,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRemoteStoreFromConfig(context.Background(), tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRemoteStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("NewRemoteStoreFromConfig() returned nil = %v, wantNil %v", got == nil, tt.wantNil)
			}
		})
	}
}

func TestNewCredentialSourceFromConfig(t *testing.T) {
	t.Run("token path wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		if err := os.WriteFile(path, []byte(`{"access_token":"from-file"}`), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		c, err := NewCredentialSourceFromConfig(config.RemoteConfig{Type: "s3", TokenPath: path})
		if err != nil {
			t.Fatalf("NewCredentialSourceFromConfig() error = %v", err)
		}
		tok, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if tok != "from-file" {
			t.Errorf("Token() = %q, want %q", tok, "from-file")
		}
	})

	t.Run("s3 without token file is backend managed", func(t *testing.T) {
		c, err := NewCredentialSourceFromConfig(config.RemoteConfig{Type: "s3"})
		if err != nil {
			t.Fatalf("NewCredentialSourceFromConfig() error = %v", err)
		}
		tok, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if tok != BackendManagedToken {
			t.Errorf("Token() = %q, want %q", tok, BackendManagedToken)
		}
	})

	t.Run("none yields no source", func(t *testing.T) {
		c, err := NewCredentialSourceFromConfig(config.RemoteConfig{Type: "none"})
		if err != nil {
			t.Fatalf("NewCredentialSourceFromConfig() error = %v", err)
		}
		if c != nil {
			t.Errorf("NewCredentialSourceFromConfig() = %v, want nil", c)
		}
	})
}
