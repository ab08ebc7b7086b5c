package vox

import "io/fs"

// FilesystemManager provides an interface for native filesystem access.
// It abstracts file access to enable testing without touching the real
// filesystem. A nil FilesystemManager means the platform has no usable
// filesystem; file collection and file replay are skipped with a warning.
type FilesystemManager interface {
	// List returns the entries of a single directory, not recursing.
	// Walks are driven by the caller with an explicit queue.
	List(dir string) ([]fs.DirEntry, error)

	// Stat returns file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// ReadFile returns the full contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to path, replacing any existing file.
	// The write is atomic: a concurrent reader sees the old or the new
	// contents, never a mix.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory along with any missing parents.
	MkdirAll(dir string) error

	// Remove deletes a single file.
	Remove(path string) error
}
