package vox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Mangusthvile/talevox/internal/model"
)

// manifestSchemaVersion is the version stamped into new folder manifests.
const manifestSchemaVersion = 1

// Subfolder names of a book's remote root.
const (
	folderMeta  = "meta"
	folderText  = "text"
	folderAudio = "audio"
	folderTrash = "trash"
)

// BookFolders is the resolved remote layout for one book.
type BookFolders struct {
	RootID  string
	MetaID  string
	TextID  string
	AudioID string
	TrashID string
}

// ManifestFolders records the layout's folder IDs inside the manifest.
type ManifestFolders struct {
	Meta  string `json:"meta"`
	Text  string `json:"text"`
	Audio string `json:"audio"`
	Trash string `json:"trash"`
}

// BookManifest pins a book's remote layout. Created at most once per book
// root; later calls read the existing file instead of overwriting it.
type BookManifest struct {
	SchemaVersion int             `json:"schemaVersion"`
	ItemID        string          `json:"itemId"`
	Title         string          `json:"title"`
	CreatedAt     time.Time       `json:"createdAt"`
	Backend       string          `json:"backend"`
	RootFolderID  string          `json:"rootFolderId"`
	Folders       ManifestFolders `json:"folders"`
}

// InventoryManifest is the durable contract between local chapter metadata
// and the remote layout: which files are expected to exist, under what
// names. Entries are keyed uniquely by chapter ID.
type InventoryManifest struct {
	SchemaVersion int              `json:"schemaVersion"`
	ItemID        string           `json:"itemId"`
	ExpectedTotal int              `json:"expectedTotal"`
	Chapters      []InventoryEntry `json:"chapters"`
}

// InventoryEntry names one chapter's expected remote files.
type InventoryEntry struct {
	ChapterID  string `json:"chapterId"`
	Idx        int    `json:"idx"`
	Title      string `json:"title"`
	TextName   string `json:"textName"`
	AudioName  string `json:"audioName"`
	VolumeName string `json:"volumeName,omitempty"`
	Legacy     bool   `json:"legacy,omitempty"`
}

// EnsureBookFolders establishes the structured layout for a book on the
// remote backend: root, meta/text/audio/trash subfolders, and the two
// manifests. Idempotent; an existing layout is resolved, never recreated.
// parentID is the folder new book roots are created under, empty for the
// backend root; the book's own RootFolderID wins when already known.
func (s *VoxService) EnsureBookFolders(ctx context.Context, parentID string, book *model.Book, chapters []*model.Chapter) (*BookFolders, error) {
	if s.remote == nil {
		return nil, errors.New("no remote store configured")
	}
	if _, err := s.requireToken(ctx); err != nil {
		return nil, err
	}

	rootID := book.RootFolderID
	if rootID == "" {
		name := sanitizeName(book.Title)
		if name == "" {
			name = "Untitled"
		}
		id, err := s.remote.EnsureFolder(ctx, parentID, name)
		if err != nil {
			return nil, fmt.Errorf("ensuring book folder: %w", err)
		}
		rootID = id
	}

	folders := &BookFolders{RootID: rootID}
	var err error
	if folders.MetaID, err = s.ensureFolderCached(ctx, rootID, folderMeta); err != nil {
		return nil, err
	}
	if folders.TextID, err = s.ensureFolderCached(ctx, rootID, folderText); err != nil {
		return nil, err
	}
	if folders.AudioID, err = s.ensureFolderCached(ctx, rootID, folderAudio); err != nil {
		return nil, err
	}
	if folders.TrashID, err = s.ensureFolderCached(ctx, rootID, folderTrash); err != nil {
		return nil, err
	}

	listing, err := s.remote.List(ctx, folders.MetaID)
	if err != nil {
		return nil, fmt.Errorf("listing meta folder: %w", err)
	}
	if err := s.ensureBookManifest(ctx, folders, book, listing); err != nil {
		return nil, err
	}
	if err := s.ensureInventoryManifest(ctx, folders, book, chapters, listing); err != nil {
		return nil, err
	}

	s.logger.Info("book folders ready", "book", book.ID, "root", rootID)
	return folders, nil
}

// ensureBookManifest creates book.json once. An existing file is left
// untouched, whatever it says.
func (s *VoxService) ensureBookManifest(ctx context.Context, folders *BookFolders, book *model.Book, listing []RemoteFile) error {
	if findByName(listing, bookManifestName) != nil {
		s.logger.Debug("book manifest exists", "book", book.ID)
		return nil
	}
	manifest := BookManifest{
		SchemaVersion: manifestSchemaVersion,
		ItemID:        book.ID,
		Title:         book.Title,
		CreatedAt:     s.clock.Now(),
		Backend:       s.remote.Name(),
		RootFolderID:  folders.RootID,
		Folders: ManifestFolders{
			Meta:  folders.MetaID,
			Text:  folders.TextID,
			Audio: folders.AudioID,
			Trash: folders.TrashID,
		},
	}
	return s.uploadJSON(ctx, folders.MetaID, bookManifestName, manifest)
}

// ensureInventoryManifest creates inventory.json once, seeded from the
// given chapters.
func (s *VoxService) ensureInventoryManifest(ctx context.Context, folders *BookFolders, book *model.Book, chapters []*model.Chapter, listing []RemoteFile) error {
	if findByName(listing, inventoryManifestName) != nil {
		s.logger.Debug("inventory manifest exists", "book", book.ID)
		return nil
	}
	entries := inventoryEntries(chapters)
	inv := InventoryManifest{
		SchemaVersion: manifestSchemaVersion,
		ItemID:        book.ID,
		ExpectedTotal: len(entries),
		Chapters:      entries,
	}
	return s.uploadJSON(ctx, folders.MetaID, inventoryManifestName, inv)
}

// UpdateInventory refreshes inventory.json after local chapters changed.
// Read-modify-write: identity fields of the stored document survive,
// chapter entries are rebuilt from the given chapters.
func (s *VoxService) UpdateInventory(ctx context.Context, metaFolderID string, book *model.Book, chapters []*model.Chapter) error {
	if s.remote == nil {
		return errors.New("no remote store configured")
	}
	if _, err := s.requireToken(ctx); err != nil {
		return err
	}

	listing, err := s.remote.List(ctx, metaFolderID)
	if err != nil {
		return fmt.Errorf("listing meta folder: %w", err)
	}

	inv := InventoryManifest{
		SchemaVersion: manifestSchemaVersion,
		ItemID:        book.ID,
	}
	if f := findByName(listing, inventoryManifestName); f != nil {
		data, err := s.fetchRemote(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("fetching inventory: %w", err)
		}
		if err := json.Unmarshal(data, &inv); err != nil {
			s.logger.Warn("existing inventory malformed, rewriting", "book", book.ID, "error", err)
			inv = InventoryManifest{SchemaVersion: manifestSchemaVersion, ItemID: book.ID}
		}
	}

	inv.ItemID = book.ID
	inv.Chapters = inventoryEntries(chapters)
	inv.ExpectedTotal = len(inv.Chapters)
	return s.uploadJSON(ctx, metaFolderID, inventoryManifestName, inv)
}

// inventoryEntries builds manifest entries from chapters, deduplicated by
// chapter ID and ordered by index.
func inventoryEntries(chapters []*model.Chapter) []InventoryEntry {
	seen := make(map[string]bool, len(chapters))
	entries := make([]InventoryEntry, 0, len(chapters))
	for _, ch := range chapters {
		if ch.ID == "" || seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		entries = append(entries, InventoryEntry{
			ChapterID:  ch.ID,
			Idx:        ch.Idx,
			Title:      ch.Title,
			TextName:   chapterTextName(ch),
			AudioName:  chapterAudioName(ch),
			VolumeName: ch.VolumeName,
			Legacy:     ch.Legacy,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Idx < entries[j].Idx })
	return entries
}

// ensureFolderCached resolves a subfolder ID through the process-lifetime
// cache, creating the folder on a miss.
func (s *VoxService) ensureFolderCached(ctx context.Context, parentID, name string) (string, error) {
	key := parentID + "/" + name
	s.cacheMu.Lock()
	id, ok := s.folderCache[key]
	s.cacheMu.Unlock()
	if ok {
		return id, nil
	}

	id, err := s.remote.EnsureFolder(ctx, parentID, name)
	if err != nil {
		return "", fmt.Errorf("ensuring folder %s: %w", name, err)
	}

	s.cacheMu.Lock()
	s.folderCache[key] = id
	s.cacheMu.Unlock()
	return id, nil
}

// VolumeFolderID resolves the subfolder for a volume under a book's text
// or audio folder, through the same cache.
func (s *VoxService) VolumeFolderID(ctx context.Context, parentID, volumeName string) (string, error) {
	if s.remote == nil {
		return "", errors.New("no remote store configured")
	}
	name := sanitizeName(volumeName)
	if name == "" {
		return "", errors.New("volume name is empty")
	}
	return s.ensureFolderCached(ctx, parentID, name)
}

// InvalidateFolderCache drops all cached folder IDs. Call when a root's
// folder structure is known to have changed behind the engine's back.
func (s *VoxService) InvalidateFolderCache() {
	s.cacheMu.Lock()
	s.folderCache = make(map[string]string)
	s.cacheMu.Unlock()
}

func (s *VoxService) uploadJSON(ctx context.Context, parentID, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if _, err := s.remote.Upload(ctx, parentID, name, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

func findByName(listing []RemoteFile, name string) *RemoteFile {
	for i := range listing {
		if !listing[i].IsFolder && listing[i].Name == name {
			return &listing[i]
		}
	}
	return nil
}
