package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/Mangusthvile/talevox/internal/vox"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Adding a
// file creates its parent directories implicitly. Failures can be
// injected per path through the Fail* maps.
type MockFilesystemManager struct {
	files map[string]*MockFile

	// Injected failures, keyed by path.
	FailReads   map[string]error
	FailLists   map[string]error
	FailWrites  map[string]error
	FailStats   map[string]error
	FailRemoves map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:       make(map[string]*MockFile),
		FailReads:   make(map[string]error),
		FailLists:   make(map[string]error),
		FailWrites:  make(map[string]error),
		FailStats:   make(map[string]error),
		FailRemoves: make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem, creating parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileWithModTime(path, content, time.Now())
}

// AddFileWithModTime adds a file with an explicit modification time.
func (m *MockFilesystemManager) AddFileWithModTime(path string, content []byte, modTime time.Time) {
	m.addParents(path)
	m.files[filepath.Clean(path)] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.addParents(path)
	m.files[filepath.Clean(path)] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

// addParents creates directory entries for every ancestor of path.
func (m *MockFilesystemManager) addParents(path string) {
	dir := filepath.Dir(filepath.Clean(path))
	for dir != "." && dir != "/" && dir != "" {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{
				Permissions: 0755,
				ModTime:     time.Now(),
				IsDirectory: true,
			}
		}
		dir = filepath.Dir(dir)
	}
}

// Exists reports whether a path is present.
func (m *MockFilesystemManager) Exists(path string) bool {
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

// FileContent returns the content of a file, or nil if absent.
func (m *MockFilesystemManager) FileContent(path string) []byte {
	f, ok := m.files[filepath.Clean(path)]
	if !ok || f.IsDirectory {
		return nil
	}
	return f.Content
}

func (m *MockFilesystemManager) List(dir string) ([]fs.DirEntry, error) {
	dir = filepath.Clean(dir)
	if err, ok := m.FailLists[dir]; ok {
		return nil, err
	}

	d, ok := m.files[dir]
	if !ok {
		return nil, fmt.Errorf("directory not found: %s", dir)
	}
	if !d.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var entries []fs.DirEntry
	for path, f := range m.files {
		if filepath.Dir(path) != dir || path == dir {
			continue
		}
		entries = append(entries, &mockDirEntry{
			name: filepath.Base(path),
			file: f,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	path = filepath.Clean(path)
	if err, ok := m.FailStats[path]; ok {
		return nil, err
	}

	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    f.Permissions,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
		file:    f,
	}, nil
}

func (m *MockFilesystemManager) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)
	if err, ok := m.FailReads[path]; ok {
		return nil, err
	}

	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot read directory: %s", path)
	}
	return f.Content, nil
}

func (m *MockFilesystemManager) WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	if err, ok := m.FailWrites[path]; ok {
		return err
	}

	m.addParents(path)
	m.files[path] = &MockFile{
		Content:     data,
		Permissions: 0644,
		ModTime:     time.Now(),
	}
	return nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	dir = filepath.Clean(dir)
	if err, ok := m.FailWrites[dir]; ok {
		return err
	}
	m.AddDirectory(dir)
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	path = filepath.Clean(path)
	if err, ok := m.FailRemoves[path]; ok {
		return err
	}
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	delete(m.files, path)
	return nil
}

// Paths returns all stored paths, sorted. Useful for asserting what a
// restore wrote.
func (m *MockFilesystemManager) Paths() []string {
	var paths []string
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// mockDirEntry implements fs.DirEntry
type mockDirEntry struct {
	name string
	file *MockFile
}

func (e *mockDirEntry) Name() string { return e.name }
func (e *mockDirEntry) IsDir() bool  { return e.file.IsDirectory }
func (e *mockDirEntry) Type() fs.FileMode {
	if e.file.IsDirectory {
		return fs.ModeDir
	}
	return 0
}
func (e *mockDirEntry) Info() (fs.FileInfo, error) {
	return &mockFileInfo{
		name:    e.name,
		size:    int64(len(e.file.Content)),
		mode:    e.file.Permissions,
		modTime: e.file.ModTime,
		isDir:   e.file.IsDirectory,
		file:    e.file,
	}, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
	file    *MockFile
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.file }

// Compile-time check
var _ vox.FilesystemManager = (*MockFilesystemManager)(nil)
