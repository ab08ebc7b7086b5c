package vox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// lastRestoreWarningsKey is the preference key under which a restore run
// persists its accumulated warnings for later inspection. Deliberately not
// part of the backup allow-list.
const lastRestoreWarningsKey = "backup.last_restore_warnings"

// RestoreResult summarizes a completed restore run.
type RestoreResult struct {
	SchemaVersion int       // version the archive carried before migration
	CreatedAt     time.Time // when the archive was packaged
	Books         int
	Chapters      int
	Attachments   int
	Preferences   int
	FilesWritten  int
	Warnings      []string
}

// Restore replays an archive into the live stores, fully overwriting
// their state. Steps run in strict order; the archive structure and
// schema checks are fatal, while everything after degrades to warnings
// wherever a fallback exists. Returns ErrBusy when another packaging or
// restore run is in flight.
func (s *VoxService) Restore(ctx context.Context, ra io.ReaderAt, size int64) (*RestoreResult, error) {
	if !s.tryAcquire() {
		return nil, ErrBusy
	}
	defer s.release()

	s.emit(StepCollectingState)
	bundle, err := decodeBundle(ra, size)
	if err != nil {
		return nil, err
	}

	migrated, err := migrateBundle(*bundle)
	if err != nil {
		return nil, err
	}

	res := &RestoreResult{
		SchemaVersion: bundle.Meta.SchemaVersion,
		CreatedAt:     migrated.Meta.CreatedAt,
	}
	b := &migrated

	s.emit(StepRestoringDB)
	if err := s.restoreStore(b, res); err != nil {
		return nil, err
	}

	s.emit(StepRestoringPrefs)
	s.restorePrefs(b, res)

	s.emit(StepRestoringFiles)
	s.restoreFiles(b, res)
	s.restoreDriverState(b)

	s.emit(StepFinalizing)
	res.Warnings = b.Meta.Warnings
	s.persistWarnings(res.Warnings)

	s.logger.Info("restore complete", "books", res.Books, "chapters", res.Chapters, "warnings", len(res.Warnings))
	return res, nil
}

// restoreStore brings the relational store back. The native export is the
// fast path; an absent, sentinel, or invalid export falls back to replaying
// the full snapshot, which is always possible.
func (s *VoxService) restoreStore(b *Bundle, res *RestoreResult) error {
	if s.store == nil {
		b.warn("store restore skipped: no content store")
		return nil
	}

	if len(b.Export) > 0 {
		mode := exportMode(b.Export)
		if mode == ExportModeNative {
			if err := s.store.ValidateExport(b.Export); err != nil {
				b.warn(fmt.Sprintf("native export invalid: %v; replaying snapshot", err))
				return s.replaySnapshot(b, res)
			}
			if err := s.store.ImportNative(b.Export); err != nil {
				b.warn(fmt.Sprintf("native import failed: %v; replaying snapshot", err))
				return s.replaySnapshot(b, res)
			}
			res.Books = len(b.Snapshot.Books)
			res.Chapters = len(b.Snapshot.Chapters)
			res.Attachments = len(b.Snapshot.Attachments)
			s.logger.Debug("native export imported")
			return nil
		}
		b.warn(fmt.Sprintf("relational export mode %q; replaying snapshot", mode))
	} else {
		b.warn("relational export absent; replaying snapshot")
	}

	return s.replaySnapshot(b, res)
}

// replaySnapshot upserts the snapshot's records in dependency order. A
// failure here is fatal; there is nothing left to fall back to.
func (s *VoxService) replaySnapshot(b *Bundle, res *RestoreResult) error {
	snap := b.Snapshot
	if err := s.store.UpsertBooks(snap.Books); err != nil {
		return fmt.Errorf("replaying books: %w", err)
	}
	if err := s.store.UpsertChapters(snap.Chapters); err != nil {
		return fmt.Errorf("replaying chapters: %w", err)
	}
	if err := s.store.UpsertAttachments(snap.Attachments); err != nil {
		return fmt.Errorf("replaying attachments: %w", err)
	}
	res.Books = len(snap.Books)
	res.Chapters = len(snap.Chapters)
	res.Attachments = len(snap.Attachments)
	s.logger.Debug("snapshot replayed", "books", res.Books, "chapters", res.Chapters)
	return nil
}

// restorePrefs writes archived preference entries back. Credential keys
// are written only when the archive itself was packaged with
// includeOAuthTokens; a foreign archive can never inject tokens.
func (s *VoxService) restorePrefs(b *Bundle, res *RestoreResult) {
	if len(b.Prefs) == 0 {
		return
	}
	if s.prefs == nil {
		b.warn("preference restore skipped: no preference store")
		return
	}

	keys := make([]string, 0, len(b.Prefs))
	for key := range b.Prefs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if isCredentialKey(key) && !b.Meta.Options.IncludeOAuthTokens {
			b.warn(fmt.Sprintf("credential preference %s not restored: archive excluded tokens", key))
			continue
		}
		if err := s.prefs.Set(key, b.Prefs[key]); err != nil {
			b.warn(fmt.Sprintf("writing preference %s: %v", key, err))
			continue
		}
		res.Preferences++
	}
}

// restoreFiles writes archived file payloads back under the content roots.
// Skipped entirely on platforms without a native filesystem.
func (s *VoxService) restoreFiles(b *Bundle, res *RestoreResult) {
	if len(b.Files) == 0 {
		return
	}
	if s.fsmgr == nil {
		b.warn("file replay skipped: no native filesystem")
		return
	}

	for _, f := range b.Files {
		local, ok := s.localPathFor(f.Path)
		if !ok {
			b.warn(fmt.Sprintf("no content root for %s", f.Path))
			continue
		}
		if err := s.fsmgr.MkdirAll(filepath.Dir(local)); err != nil {
			b.warn(fmt.Sprintf("creating directory for %s: %v", f.Path, err))
			continue
		}
		if err := s.fsmgr.WriteFile(local, f.Data); err != nil {
			b.warn(fmt.Sprintf("writing %s: %v", f.Path, err))
			continue
		}
		res.FilesWritten++
	}
}

// localPathFor maps an archive file path to its destination on disk.
// Entries that escape their namespace are rejected.
func (s *VoxService) localPathFor(apath string) (string, bool) {
	mappings := []struct {
		prefix string
		root   string
	}{
		{filesTextPrefix, s.roots.ChapterText},
		{filesAudioPrefix, s.roots.Audio},
		{filesAttachPrefix, s.roots.Attachments},
		{filesDiagPrefix, s.roots.Diagnostics},
	}
	for _, m := range mappings {
		if !strings.HasPrefix(apath, m.prefix) {
			continue
		}
		rel := filepath.FromSlash(strings.TrimPrefix(apath, m.prefix))
		if m.root == "" || rel == "" || !filepath.IsLocal(rel) {
			return "", false
		}
		return filepath.Join(m.root, rel), true
	}
	return "", false
}

// restoreDriverState replays jobs, queued uploads, and audio path bindings
// through the store's idempotent creation calls.
func (s *VoxService) restoreDriverState(b *Bundle) {
	state := b.DriverState
	if state == nil {
		return
	}
	if s.store == nil {
		b.warn("driver state restore skipped: no content store")
		return
	}

	for i := range state.Jobs {
		if err := s.store.CreateJob(&state.Jobs[i]); err != nil {
			b.warn(fmt.Sprintf("recreating job %s: %v", state.Jobs[i].ID, err))
		}
	}
	for i := range state.QueuedUploads {
		if err := s.store.EnqueueUpload(&state.QueuedUploads[i]); err != nil {
			b.warn(fmt.Sprintf("recreating queued upload %s: %v", state.QueuedUploads[i].ID, err))
		}
	}
	for i := range state.ChapterAudioPaths {
		if err := s.store.UpsertChapterAudioPath(&state.ChapterAudioPaths[i]); err != nil {
			b.warn(fmt.Sprintf("recreating audio path for %s: %v", state.ChapterAudioPaths[i].ChapterID, err))
		}
	}
}

// persistWarnings stores the run's warning list for later inspection.
// Best-effort: a failure here must not fail an otherwise finished restore.
func (s *VoxService) persistWarnings(warnings []string) {
	if s.prefs == nil {
		return
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return
	}
	if err := s.prefs.Set(lastRestoreWarningsKey, string(data)); err != nil {
		s.logger.Warn("persisting restore warnings failed", "error", err)
	}
}

// FetchLatestRemote downloads the newest backup archive from the named
// folder at the backend root. The pointer object is consulted first; when
// it is missing or points at a vanished file, the artifact listing decides.
func (s *VoxService) FetchLatestRemote(ctx context.Context, folderName string) (string, []byte, error) {
	if s.remote == nil {
		return "", nil, errors.New("no remote store configured")
	}
	if _, err := s.requireToken(ctx); err != nil {
		return "", nil, err
	}

	folderID, err := s.remote.EnsureFolder(ctx, "", folderName)
	if err != nil {
		return "", nil, fmt.Errorf("locating backup folder: %w", err)
	}
	listing, err := s.remote.List(ctx, folderID)
	if err != nil {
		return "", nil, fmt.Errorf("listing backup folder: %w", err)
	}

	if target := s.resolvePointer(ctx, listing); target != nil {
		data, err := s.fetchRemote(ctx, target.ID)
		if err == nil {
			return target.Name, data, nil
		}
		s.logger.Warn("pointer target fetch failed, falling back to listing", "name", target.Name, "error", err)
	}

	var newest *RemoteFile
	for i := range listing {
		f := &listing[i]
		if f.IsFolder || !IsArtifactName(f.Name) {
			continue
		}
		if newest == nil || f.ModifiedAt.After(newest.ModifiedAt) {
			newest = f
		}
	}
	if newest == nil {
		return "", nil, errors.New("no backup artifacts found")
	}

	data, err := s.fetchRemote(ctx, newest.ID)
	if err != nil {
		return "", nil, fmt.Errorf("fetching %s: %w", newest.Name, err)
	}
	return newest.Name, data, nil
}

// resolvePointer reads the pointer object out of a listing and returns the
// artifact it names, or nil when the pointer is absent, unreadable, or
// points at a file no longer present.
func (s *VoxService) resolvePointer(ctx context.Context, listing []RemoteFile) *RemoteFile {
	var ptrFile *RemoteFile
	for i := range listing {
		if !listing[i].IsFolder && listing[i].Name == pointerName {
			ptrFile = &listing[i]
			break
		}
	}
	if ptrFile == nil {
		return nil
	}

	data, err := s.fetchRemote(ctx, ptrFile.ID)
	if err != nil {
		s.logger.Warn("pointer fetch failed", "error", err)
		return nil
	}
	var ptr Pointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		s.logger.Warn("pointer malformed", "error", err)
		return nil
	}

	for i := range listing {
		f := &listing[i]
		if f.IsFolder {
			continue
		}
		if (ptr.LatestFileID != "" && f.ID == ptr.LatestFileID) || f.Name == ptr.LatestFileName {
			return f
		}
	}
	return nil
}

func (s *VoxService) fetchRemote(ctx context.Context, fileID string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.remote.Fetch(ctx, fileID, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
