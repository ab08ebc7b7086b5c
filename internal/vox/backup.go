package vox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// largeFileWarnBytes flags unusually large files in the warning list.
// They are still included; the warning exists so oversized archives can
// be explained after the fact.
const largeFileWarnBytes = 50 << 20

// PackResult summarizes a completed packaging run.
type PackResult struct {
	ArtifactName string
	CreatedAt    time.Time
	Bytes        int64
	Manifest     []FileManifestEntry
	Warnings     []string

	// Set by BackupToLocal and BackupToRemote respectively.
	LocalPath    string
	RemoteFileID string
}

// Pack serializes the entire application state into a single archive
// written to w. Per-file and per-subsystem problems degrade to warnings on
// the result; the run fails outright only when the snapshot collaborator
// fails or is missing. Returns ErrBusy when another packaging or restore
// run is in flight.
func (s *VoxService) Pack(ctx context.Context, opts BackupOptions, w io.Writer) (*PackResult, error) {
	if !s.tryAcquire() {
		return nil, ErrBusy
	}
	defer s.release()

	return s.pack(ctx, opts, w)
}

func (s *VoxService) pack(ctx context.Context, opts BackupOptions, w io.Writer) (*PackResult, error) {
	if s.snaps == nil {
		return nil, ErrNoSnapshotSource
	}

	createdAt := s.clock.Now()
	bundle := &Bundle{
		Meta: ArchiveMeta{
			SchemaVersion: SchemaVersion,
			AppVersion:    s.build.AppVersion,
			CreatedAt:     createdAt,
			Platform:      s.build.Platform,
			Options:       opts,
		},
	}

	s.emit(StepCollectingState)
	snap, err := s.snaps.CollectSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting snapshot: %w", err)
	}
	bundle.Snapshot = snap
	s.collectPreferences(bundle, opts)

	s.emit(StepExportingDB)
	s.collectExport(bundle)
	s.collectDriverState(bundle)

	s.emit(StepCollectingFiles)
	s.collectFiles(bundle, opts)

	s.emit(StepZipping)
	cw := &countingWriter{w: w}
	if err := encodeBundle(bundle, cw); err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	name := ArtifactName(createdAt)
	s.logger.Info("backup packaged", "name", name, "bytes", cw.n, "files", len(bundle.Files), "warnings", len(bundle.Meta.Warnings))

	return &PackResult{
		ArtifactName: name,
		CreatedAt:    createdAt,
		Bytes:        cw.n,
		Manifest:     bundle.Manifest,
		Warnings:     bundle.Meta.Warnings,
	}, nil
}

// collectPreferences reads the allow-listed preference keys plus the
// reader-position family. Credential keys are included only when the
// options explicitly say so.
func (s *VoxService) collectPreferences(b *Bundle, opts BackupOptions) {
	if s.prefs == nil {
		b.warn("preferences skipped: no preference store")
		return
	}

	keys := make([]string, 0, len(backupPrefKeys)+len(credentialPrefKeys))
	keys = append(keys, backupPrefKeys...)

	progressKeys, err := s.prefs.KeysByPrefix(readerProgressPrefix)
	if err != nil {
		b.warn(fmt.Sprintf("listing reader positions: %v", err))
	} else {
		keys = append(keys, progressKeys...)
	}

	if opts.IncludeOAuthTokens {
		keys = append(keys, credentialPrefKeys...)
	}

	prefs := make(map[string]string)
	for _, key := range keys {
		val, ok, err := s.prefs.Get(key)
		if err != nil {
			b.warn(fmt.Sprintf("reading preference %s: %v", key, err))
			continue
		}
		if ok {
			prefs[key] = val
		}
	}
	b.Prefs = prefs
}

// collectExport asks the store for its native export. An unavailable
// export is substituted with a sentinel payload and a warning; restore
// then uses snapshot replay instead.
func (s *VoxService) collectExport(b *Bundle) {
	if s.store == nil {
		b.Export = sentinelExport(ExportModeUnavailable)
		b.warn("relational export unavailable: no content store")
		return
	}
	data, err := s.store.ExportNative()
	if err != nil {
		b.Export = sentinelExport(ExportModeUnavailable)
		b.warn(fmt.Sprintf("relational export unavailable: %v", err))
		return
	}
	b.Export = data
}

func sentinelExport(mode string) []byte {
	data, _ := json.Marshal(map[string]string{"mode": mode})
	return data
}

// collectDriverState captures the job queue, pending uploads, and audio
// path bindings. Each listing degrades independently.
func (s *VoxService) collectDriverState(b *Bundle) {
	if s.store == nil {
		return
	}
	state := &StorageDriverState{}

	jobs, err := s.store.ListJobs()
	if err != nil {
		b.warn(fmt.Sprintf("collecting jobs: %v", err))
	} else {
		for _, j := range jobs {
			state.Jobs = append(state.Jobs, *j)
		}
	}

	uploads, err := s.store.ListQueuedUploads()
	if err != nil {
		b.warn(fmt.Sprintf("collecting queued uploads: %v", err))
	} else {
		for _, u := range uploads {
			state.QueuedUploads = append(state.QueuedUploads, *u)
		}
	}

	paths, err := s.store.ListChapterAudioPaths()
	if err != nil {
		b.warn(fmt.Sprintf("collecting audio path bindings: %v", err))
	} else {
		for _, p := range paths {
			state.ChapterAudioPaths = append(state.ChapterAudioPaths, *p)
		}
	}

	b.DriverState = state
}

// collectFiles walks every enabled content root and carries its files into
// the archive. A single unreadable file or a missing root never aborts the
// run; the manifest records what was skipped and why.
func (s *VoxService) collectFiles(b *Bundle, opts BackupOptions) {
	if s.fsmgr == nil {
		b.warn("file collection skipped: no native filesystem")
		return
	}

	roots := []struct {
		dir     string
		prefix  string
		enabled bool
	}{
		{s.roots.ChapterText, filesTextPrefix, opts.IncludeChapterText},
		{s.roots.Audio, filesAudioPrefix, opts.IncludeAudio},
		{s.roots.Attachments, filesAttachPrefix, opts.IncludeAttachments},
		{s.roots.Diagnostics, filesDiagPrefix, opts.IncludeDiagnostics},
	}
	for _, r := range roots {
		if !r.enabled || r.dir == "" {
			continue
		}
		s.walkRoot(b, r.dir, r.prefix)
	}
}

// walkRoot walks one content root breadth-first with an explicit queue, so
// arbitrarily deep trees cannot grow the call stack.
func (s *VoxService) walkRoot(b *Bundle, root string, prefix string) {
	if _, err := s.fsmgr.Stat(root); err != nil {
		b.Manifest = append(b.Manifest, FileManifestEntry{Path: prefix, SkippedReason: skipMissingFolder})
		b.warn(fmt.Sprintf("content root missing: %s", root))
		return
	}

	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := s.fsmgr.List(dir)
		if err != nil {
			b.Manifest = append(b.Manifest, FileManifestEntry{Path: archivePath(root, dir, prefix) + "/", SkippedReason: skipReadFailed})
			b.warn(fmt.Sprintf("listing %s: %v", dir, err))
			continue
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if e.IsDir() {
				queue = append(queue, full)
				continue
			}
			s.collectOneFile(b, root, full, prefix)
		}
	}
}

func (s *VoxService) collectOneFile(b *Bundle, root string, full string, prefix string) {
	apath := archivePath(root, full, prefix)

	data, err := s.fsmgr.ReadFile(full)
	if err != nil {
		b.Manifest = append(b.Manifest, FileManifestEntry{Path: apath, SkippedReason: skipReadFailed})
		b.warn(fmt.Sprintf("skipping unreadable file %s: %v", full, err))
		return
	}

	entry := FileManifestEntry{
		Path:        apath,
		Bytes:       int64(len(data)),
		ContentType: mimetype.Detect(data).String(),
	}
	if entry.Bytes > largeFileWarnBytes {
		b.warn(fmt.Sprintf("large file included: %s (%d bytes)", apath, entry.Bytes))
	}

	b.Manifest = append(b.Manifest, entry)
	b.Files = append(b.Files, ArchiveFile{Path: apath, Data: data})
	s.logger.Debug("file collected", "path", apath, "bytes", entry.Bytes)
}

// archivePath maps a local path under root into the archive namespace.
func archivePath(root string, full string, prefix string) string {
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." {
		return prefix + filepath.ToSlash(filepath.Base(full))
	}
	return prefix + filepath.ToSlash(rel)
}

// BackupToLocal packages state into an archive inside dir, then prunes old
// artifacts beyond keep. Returns ErrBusy when another run is in flight.
func (s *VoxService) BackupToLocal(ctx context.Context, opts BackupOptions, dir string, keep int) (*PackResult, error) {
	if !s.tryAcquire() {
		return nil, ErrBusy
	}
	defer s.release()

	if s.fsmgr == nil {
		return nil, errors.New("local backup requires a native filesystem")
	}

	var buf bytes.Buffer
	res, err := s.pack(ctx, opts, &buf)
	if err != nil {
		return nil, err
	}

	if err := s.fsmgr.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	outPath := filepath.Join(dir, res.ArtifactName)
	if err := s.fsmgr.WriteFile(outPath, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}
	res.LocalPath = outPath

	if err := s.PruneLocal(dir, keep); err != nil {
		s.logger.Warn("retention pruning failed", "dir", dir, "error", err)
	}

	s.logger.Info("backup saved", "path", outPath, "bytes", res.Bytes)
	return res, nil
}

// BackupToRemote packages state, uploads the archive into the named folder
// at the backend root, refreshes the pointer object, and prunes old
// artifacts beyond keep. The pointer and retention steps are best-effort;
// a failure there leaves a perfectly good backup in place.
func (s *VoxService) BackupToRemote(ctx context.Context, opts BackupOptions, folderName string, keep int) (*PackResult, error) {
	if !s.tryAcquire() {
		return nil, ErrBusy
	}
	defer s.release()

	if s.remote == nil {
		return nil, errors.New("no remote store configured")
	}
	if _, err := s.requireToken(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	res, err := s.pack(ctx, opts, &buf)
	if err != nil {
		return nil, err
	}

	folderID, err := s.remote.EnsureFolder(ctx, "", folderName)
	if err != nil {
		return nil, fmt.Errorf("ensuring backup folder: %w", err)
	}
	fileID, err := s.remote.Upload(ctx, folderID, res.ArtifactName, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return nil, fmt.Errorf("uploading archive: %w", err)
	}
	res.RemoteFileID = fileID

	if err := s.writePointer(ctx, folderID, res); err != nil {
		s.logger.Warn("pointer update failed", "error", err)
	}
	if err := s.PruneRemote(ctx, folderID, keep); err != nil {
		s.logger.Warn("retention pruning failed", "folder", folderID, "error", err)
	}

	s.logger.Info("backup uploaded", "name", res.ArtifactName, "fileID", fileID, "bytes", res.Bytes)
	return res, nil
}

// writePointer overwrites the remote pointer object with the newest
// artifact's coordinates.
func (s *VoxService) writePointer(ctx context.Context, folderID string, res *PackResult) error {
	ptr := Pointer{
		SchemaVersion:       1,
		LatestFileName:      res.ArtifactName,
		LatestCreatedAt:     res.CreatedAt,
		LatestFileID:        res.RemoteFileID,
		BackupSchemaVersion: SchemaVersion,
	}
	data, err := json.Marshal(ptr)
	if err != nil {
		return fmt.Errorf("encoding pointer: %w", err)
	}
	if _, err := s.remote.Upload(ctx, folderID, pointerName, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("uploading pointer: %w", err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
