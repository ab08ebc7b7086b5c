package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mangusthvile/talevox/internal/vox"
)

// memoryFile is one node in the in-memory remote: a file or a folder.
type memoryFile struct {
	id       string
	name     string
	parentID string
	isFolder bool
	data     []byte
	modified time.Time
}

// MemoryRemote is an in-memory implementation of the RemoteStore
// interface. It models a folder-capable backend with stable IDs, making
// it useful for testing. This implementation is safe for concurrent use.
type MemoryRemote struct {
	mu    sync.RWMutex
	files map[string]*memoryFile // id -> node
	seq   int
	clock vox.Clock
}

// NewMemoryRemote creates a new in-memory remote store.
// A nil clock defaults to the real clock.
func NewMemoryRemote(clock vox.Clock) *MemoryRemote {
	if clock == nil {
		clock = vox.RealClock{}
	}
	return &MemoryRemote{
		files: make(map[string]*memoryFile),
		clock: clock,
	}
}

// Name identifies the backend.
func (m *MemoryRemote) Name() string {
	return "memory"
}

// nextID issues a stable sequential ID. Caller holds the lock.
func (m *MemoryRemote) nextID() string {
	m.seq++
	return fmt.Sprintf("mem-%04d", m.seq)
}

// EnsureFolder returns the ID of the folder named name under parentID,
// creating it if it does not exist.
func (m *MemoryRemote) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.Contains(name, "/") {
		return "", newRemoteError("EnsureFolder", name, fmt.Errorf("invalid folder name"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.files {
		if f.isFolder && f.parentID == parentID && f.name == name {
			return f.id, nil
		}
	}

	id := m.nextID()
	m.files[id] = &memoryFile{
		id:       id,
		name:     name,
		parentID: parentID,
		isFolder: true,
		modified: m.clock.Now(),
	}
	return id, nil
}

// List returns the immediate children of a folder, sorted by name.
func (m *MemoryRemote) List(ctx context.Context, parentID string) ([]vox.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []vox.RemoteFile
	for _, f := range m.files {
		if f.parentID != parentID {
			continue
		}
		out = append(out, m.toRemoteFile(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Upload creates or replaces the file named name under parentID.
// Replacement keeps the existing file ID, the way folder-capable
// backends do.
func (m *MemoryRemote) Upload(ctx context.Context, parentID, name string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.Contains(name, "/") {
		return "", newRemoteError("Upload", name, fmt.Errorf("invalid file name"))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", newRemoteError("Upload", name, fmt.Errorf("reading content: %w", err))
	}
	if size >= 0 && int64(len(data)) != size {
		return "", newRemoteError("Upload", name, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.files {
		if !f.isFolder && f.parentID == parentID && f.name == name {
			f.data = data
			f.modified = m.clock.Now()
			return f.id, nil
		}
	}

	id := m.nextID()
	m.files[id] = &memoryFile{
		id:       id,
		name:     name,
		parentID: parentID,
		data:     data,
		modified: m.clock.Now(),
	}
	return id, nil
}

// Delete removes a file or folder by ID. Deleting a folder removes its
// subtree.
func (m *MemoryRemote) Delete(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[fileID]; !ok {
		return newRemoteError("Delete", fileID, fmt.Errorf("not found"))
	}
	m.deleteSubtree(fileID)
	return nil
}

// deleteSubtree removes id and everything under it. Caller holds the lock.
func (m *MemoryRemote) deleteSubtree(id string) {
	for _, f := range m.files {
		if f.parentID == id {
			m.deleteSubtree(f.id)
		}
	}
	delete(m.files, id)
}

// Fetch retrieves a file's bytes by ID and writes them to w.
func (m *MemoryRemote) Fetch(ctx context.Context, fileID string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[fileID]
	if !ok {
		return newRemoteError("Fetch", fileID, fmt.Errorf("not found"))
	}
	if f.isFolder {
		return newRemoteError("Fetch", fileID, fmt.Errorf("is a folder"))
	}
	if _, err := io.Copy(w, bytes.NewReader(f.data)); err != nil {
		return newRemoteError("Fetch", fileID, err)
	}
	return nil
}

func (m *MemoryRemote) toRemoteFile(f *memoryFile) vox.RemoteFile {
	return vox.RemoteFile{
		ID:         f.id,
		Name:       f.name,
		ParentID:   f.parentID,
		IsFolder:   f.isFolder,
		Size:       int64(len(f.data)),
		ModifiedAt: f.modified,
	}
}

// Compile-time check that MemoryRemote implements vox.RemoteStore
var _ vox.RemoteStore = (*MemoryRemote)(nil)
