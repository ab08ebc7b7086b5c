package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"

	"github.com/Mangusthvile/talevox/internal/vox"
)

// BackendManagedToken is the marker credential used for backends that
// authenticate out of band (S3 signs requests with AWS credentials). It
// satisfies the engine's auth gate; the real check happens when the
// backend is constructed.
const BackendManagedToken = "backend-managed"

// OAuthCredentials adapts an oauth2.TokenSource to the CredentialSource
// interface. The token source handles refresh; this adapter only surfaces
// the current access token.
type OAuthCredentials struct {
	source oauth2.TokenSource
}

// NewOAuthCredentials wraps an oauth2 token source.
func NewOAuthCredentials(source oauth2.TokenSource) *OAuthCredentials {
	return &OAuthCredentials{source: source}
}

func (c *OAuthCredentials) Token(ctx context.Context) (string, error) {
	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("acquiring oauth token: %w", err)
	}
	return tok.AccessToken, nil
}

// StaticCredentials returns a fixed token on every call.
type StaticCredentials struct {
	token string
}

// NewStaticCredentials creates a credential source with a fixed token.
func NewStaticCredentials(token string) *StaticCredentials {
	return &StaticCredentials{token: token}
}

func (c *StaticCredentials) Token(ctx context.Context) (string, error) {
	return c.token, nil
}

// LoadTokenFromFile reads a stored oauth2 token from a JSON file.
func LoadTokenFromFile(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	return &tok, nil
}

// NewFileCredentials loads a stored token from path and serves it as a
// static oauth2 source. Refresh is the responsibility of whoever writes
// the file.
func NewFileCredentials(path string) (*OAuthCredentials, error) {
	tok, err := LoadTokenFromFile(path)
	if err != nil {
		return nil, err
	}
	return NewOAuthCredentials(oauth2.StaticTokenSource(tok)), nil
}

// Compile-time checks that both sources implement vox.CredentialSource
var (
	_ vox.CredentialSource = (*OAuthCredentials)(nil)
	_ vox.CredentialSource = (*StaticCredentials)(nil)
)
