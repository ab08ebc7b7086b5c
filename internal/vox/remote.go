package vox

import (
	"context"
	"io"
	"time"
)

// RemoteFile is one entry from a remote folder listing.
type RemoteFile struct {
	ID         string
	Name       string
	ParentID   string
	IsFolder   bool
	Size       int64
	ModifiedAt time.Time
}

// RemoteStore provides an interface for the remote object-storage backend.
// The backend is folder-capable: every file and folder has a stable ID and
// a parent folder ID. All operations use io.Reader/io.Writer for streaming
// to support large files without loading them entirely into memory.
type RemoteStore interface {
	// Name identifies the backend, e.g. "s3" or "memory". Recorded in
	// folder manifests.
	Name() string

	// EnsureFolder returns the ID of the folder named name under parentID,
	// creating it if it does not exist. An empty parentID means the
	// backend's root.
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)

	// List returns the immediate children of a folder. One listing per
	// scan; callers hold the result immutably for the matching pass.
	List(ctx context.Context, parentID string) ([]RemoteFile, error)

	// Upload creates or replaces the file named name under parentID and
	// returns its ID. Replacement keys on (parentID, name).
	Upload(ctx context.Context, parentID, name string, r io.Reader, size int64) (string, error)

	// Delete removes a file by ID.
	Delete(ctx context.Context, fileID string) error

	// Fetch retrieves a file's bytes by ID and writes them to w.
	Fetch(ctx context.Context, fileID string, w io.Writer) error
}

// CredentialSource yields a bearer credential for remote access, or fails.
// Token acquisition and refresh live behind this interface; the engine
// only ever asks whether a usable credential exists right now.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}
