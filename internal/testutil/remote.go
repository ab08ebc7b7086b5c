package testutil

import (
	"context"
	"io"

	"github.com/Mangusthvile/talevox/internal/remote"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// NewTestRemote creates a new in-memory remote store for testing.
// A nil clock defaults to the real clock.
func NewTestRemote(clock vox.Clock) *remote.MemoryRemote {
	return remote.NewMemoryRemote(clock)
}

// StubCredentials returns a fixed token, or a fixed error when Err is set.
type StubCredentials struct {
	TokenValue string
	Err        error
}

func (c *StubCredentials) Token(ctx context.Context) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	return c.TokenValue, nil
}

// FaultyRemote wraps a RemoteStore and fails selected operations.
// Unset errors pass through to the wrapped store.
type FaultyRemote struct {
	vox.RemoteStore

	EnsureFolderErr error
	ListErr         error
	UploadErr       error
	DeleteErr       error
	FetchErr        error
}

func (f *FaultyRemote) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	if f.EnsureFolderErr != nil {
		return "", f.EnsureFolderErr
	}
	return f.RemoteStore.EnsureFolder(ctx, parentID, name)
}

func (f *FaultyRemote) List(ctx context.Context, parentID string) ([]vox.RemoteFile, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.RemoteStore.List(ctx, parentID)
}

func (f *FaultyRemote) Upload(ctx context.Context, parentID, name string, r io.Reader, size int64) (string, error) {
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	return f.RemoteStore.Upload(ctx, parentID, name, r, size)
}

func (f *FaultyRemote) Delete(ctx context.Context, fileID string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.RemoteStore.Delete(ctx, fileID)
}

func (f *FaultyRemote) Fetch(ctx context.Context, fileID string, w io.Writer) error {
	if f.FetchErr != nil {
		return f.FetchErr
	}
	return f.RemoteStore.Fetch(ctx, fileID, w)
}

// Compile-time checks
var (
	_ vox.CredentialSource = (*StubCredentials)(nil)
	_ vox.RemoteStore      = (*FaultyRemote)(nil)
)
