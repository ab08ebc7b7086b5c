package vox

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Mangusthvile/talevox/internal/model"
)

// Archive entry layout. Fixed names; meta and the full snapshot are
// required, everything else is optional.
const (
	entryMeta         = "meta.json"
	entryPrefs        = "prefs.json"
	entryExport       = "sqlite.json"
	entryExportLegacy = "db-export.json"
	entrySnapshot     = "state/fullSnapshot.json"
	entryDriverState  = "state/storageDriver.json"
	entryManifest     = "manifests/files.json"

	filesPrefix       = "files/"
	filesTextPrefix   = "files/chapter_text/"
	filesAudioPrefix  = "files/audio/"
	filesAttachPrefix = "files/attachments/"
	filesDiagPrefix   = "files/diagnostics/"
)

// Relational export mode discriminators. Anything other than native makes
// restore fall back to snapshot replay.
const (
	ExportModeNative      = "native"
	ExportModeUnavailable = "unavailable"
	ExportModeWebFallback = "web-fallback"
)

// Platform labels recorded in archive metadata. Informational only; the
// file-replay decision keys on filesystem availability, not on the label.
const (
	PlatformWeb     = "web"
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// ArchiveMeta describes an archive: who wrote it, when, with what options,
// and what went wrong along the way. Warnings are ordered and append-only
// during a single packaging or restore pass.
type ArchiveMeta struct {
	SchemaVersion int           `json:"schemaVersion"`
	AppVersion    string        `json:"appVersion"`
	CreatedAt     time.Time     `json:"createdAt"`
	Platform      string        `json:"platform"`
	Notes         string        `json:"notes,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	Options       BackupOptions `json:"options"`
}

// BackupOptions selects what goes into an archive. The four content
// toggles default to true; credential inclusion defaults to false and is
// never switched on implicitly.
type BackupOptions struct {
	IncludeAudio       bool `json:"includeAudio"`
	IncludeDiagnostics bool `json:"includeDiagnostics"`
	IncludeAttachments bool `json:"includeAttachments"`
	IncludeChapterText bool `json:"includeChapterText"`
	IncludeOAuthTokens bool `json:"includeOAuthTokens"`
}

// DefaultBackupOptions returns the standard option set: all content
// included, credentials excluded.
func DefaultBackupOptions() BackupOptions {
	return BackupOptions{
		IncludeAudio:       true,
		IncludeDiagnostics: true,
		IncludeAttachments: true,
		IncludeChapterText: true,
	}
}

// UnmarshalJSON normalizes raw option documents: the four content toggles
// are true unless explicitly false, credential inclusion requires an
// explicit true. Fail-closed on the credential side.
func (o *BackupOptions) UnmarshalJSON(data []byte) error {
	var raw struct {
		IncludeAudio       *bool `json:"includeAudio"`
		IncludeDiagnostics *bool `json:"includeDiagnostics"`
		IncludeAttachments *bool `json:"includeAttachments"`
		IncludeChapterText *bool `json:"includeChapterText"`
		IncludeOAuthTokens *bool `json:"includeOAuthTokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*o = DefaultBackupOptions()
	if raw.IncludeAudio != nil {
		o.IncludeAudio = *raw.IncludeAudio
	}
	if raw.IncludeDiagnostics != nil {
		o.IncludeDiagnostics = *raw.IncludeDiagnostics
	}
	if raw.IncludeAttachments != nil {
		o.IncludeAttachments = *raw.IncludeAttachments
	}
	if raw.IncludeChapterText != nil {
		o.IncludeChapterText = *raw.IncludeChapterText
	}
	o.IncludeOAuthTokens = raw.IncludeOAuthTokens != nil && *raw.IncludeOAuthTokens
	return nil
}

// FileManifestEntry records one file the packager walked. An entry with a
// SkippedReason never has a byte payload in the archive; the manifest is a
// ledger of what was seen, not an index of what was stored.
type FileManifestEntry struct {
	Path          string `json:"path"`
	Bytes         int64  `json:"bytes"`
	SkippedReason string `json:"skippedReason,omitempty"`
	ContentType   string `json:"contentType,omitempty"`
}

// Reasons recorded on skipped manifest entries.
const (
	skipMissingFolder = "missing-folder"
	skipReadFailed    = "read-failed"
)

// StorageDriverState captures relational-store-adjacent state not covered
// by the native export: job queues, pending uploads, and audio path
// bindings.
type StorageDriverState struct {
	Jobs              []model.Job              `json:"jobs"`
	QueuedUploads     []model.QueuedUpload     `json:"queuedUploads"`
	ChapterAudioPaths []model.ChapterAudioPath `json:"chapterAudioPaths"`
}

// ArchiveFile is one raw asset carried under the files/ namespace.
type ArchiveFile struct {
	Path string
	Data []byte
}

// Bundle is the unit of backup and restore: everything that goes into or
// comes out of one archive. Immutable once packaged; owned exclusively by
// the packager or the restore run during its lifetime.
type Bundle struct {
	Meta        ArchiveMeta
	Prefs       map[string]string
	Export      []byte
	Snapshot    *model.FullSnapshot
	DriverState *StorageDriverState
	Manifest    []FileManifestEntry
	Files       []ArchiveFile
}

func (b *Bundle) warn(msg string) {
	b.Meta.Warnings = append(b.Meta.Warnings, msg)
}

// Pointer is the small remote index object overwritten on every successful
// remote save. It is a convenience for fast lookup of the newest archive;
// the artifact listing remains the source of truth.
type Pointer struct {
	SchemaVersion       int       `json:"schemaVersion"`
	LatestFileName      string    `json:"latestFileName"`
	LatestCreatedAt     time.Time `json:"latestCreatedAt"`
	LatestFileID        string    `json:"latestFileId"`
	BackupSchemaVersion int       `json:"backupSchemaVersion"`
}

// encodeBundle writes the bundle to w as a zip archive with the fixed
// entry layout.
func encodeBundle(b *Bundle, w io.Writer) error {
	if b.Snapshot == nil {
		return &ArchiveError{Entry: entrySnapshot, Err: errors.New("bundle has no snapshot")}
	}

	zw := zip.NewWriter(w)

	if err := writeJSONEntry(zw, entryMeta, b.Meta); err != nil {
		return err
	}
	if b.Prefs != nil {
		if err := writeJSONEntry(zw, entryPrefs, b.Prefs); err != nil {
			return err
		}
	}
	if len(b.Export) > 0 {
		if err := writeRawEntry(zw, entryExport, b.Export); err != nil {
			return err
		}
	}
	if err := writeJSONEntry(zw, entrySnapshot, b.Snapshot); err != nil {
		return err
	}
	if b.DriverState != nil {
		if err := writeJSONEntry(zw, entryDriverState, b.DriverState); err != nil {
			return err
		}
	}
	if b.Manifest != nil {
		if err := writeJSONEntry(zw, entryManifest, b.Manifest); err != nil {
			return err
		}
	}
	for _, f := range b.Files {
		if err := writeRawEntry(zw, f.Path, f.Data); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}

func writeJSONEntry(zw *zip.Writer, name string, v any) error {
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating archive entry %s: %w", name, err)
	}
	if err := json.NewEncoder(fw).Encode(v); err != nil {
		return fmt.Errorf("encoding archive entry %s: %w", name, err)
	}
	return nil
}

func writeRawEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating archive entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", name, err)
	}
	return nil
}

// decodeBundle reads an archive back into a Bundle. Missing or malformed
// required entries (meta, snapshot) fail with an ArchiveError. Optional
// entries degrade to warnings on the bundle, since snapshot replay can
// still restore without them.
func decodeBundle(ra io.ReaderAt, size int64) (*Bundle, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	b := &Bundle{}

	metaFile := entries[entryMeta]
	if metaFile == nil {
		return nil, &ArchiveError{Entry: entryMeta, Err: errors.New("entry missing")}
	}
	data, err := readZipEntry(metaFile)
	if err != nil {
		return nil, &ArchiveError{Entry: entryMeta, Err: err}
	}
	meta, err := parseMeta(data)
	if err != nil {
		return nil, &ArchiveError{Entry: entryMeta, Err: err}
	}
	b.Meta = *meta

	if f := entries[entryPrefs]; f != nil {
		if data, err := readZipEntry(f); err != nil {
			b.warn(fmt.Sprintf("archive entry %s unreadable: %v", entryPrefs, err))
		} else if err := json.Unmarshal(data, &b.Prefs); err != nil {
			b.Prefs = nil
			b.warn(fmt.Sprintf("archive entry %s malformed: %v", entryPrefs, err))
		}
	}

	exportFile := entries[entryExport]
	if exportFile == nil {
		exportFile = entries[entryExportLegacy]
	}
	if exportFile != nil {
		if data, err := readZipEntry(exportFile); err != nil {
			b.warn(fmt.Sprintf("archive entry %s unreadable: %v", exportFile.Name, err))
		} else {
			b.Export = data
		}
	}

	snapFile := entries[entrySnapshot]
	if snapFile == nil {
		return nil, &ArchiveError{Entry: entrySnapshot, Err: errors.New("entry missing")}
	}
	data, err = readZipEntry(snapFile)
	if err != nil {
		return nil, &ArchiveError{Entry: entrySnapshot, Err: err}
	}
	var snap model.FullSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &ArchiveError{Entry: entrySnapshot, Err: err}
	}
	b.Snapshot = &snap

	if f := entries[entryDriverState]; f != nil {
		if data, err := readZipEntry(f); err != nil {
			b.warn(fmt.Sprintf("archive entry %s unreadable: %v", entryDriverState, err))
		} else {
			var state StorageDriverState
			if err := json.Unmarshal(data, &state); err != nil {
				b.warn(fmt.Sprintf("archive entry %s malformed: %v", entryDriverState, err))
			} else {
				b.DriverState = &state
			}
		}
	}

	if f := entries[entryManifest]; f != nil {
		if data, err := readZipEntry(f); err != nil {
			b.warn(fmt.Sprintf("archive entry %s unreadable: %v", entryManifest, err))
		} else if err := json.Unmarshal(data, &b.Manifest); err != nil {
			b.Manifest = nil
			b.warn(fmt.Sprintf("archive entry %s malformed: %v", entryManifest, err))
		}
	}

	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, filesPrefix) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			b.warn(fmt.Sprintf("archive entry %s unreadable: %v", f.Name, err))
			continue
		}
		b.Files = append(b.Files, ArchiveFile{Path: f.Name, Data: data})
	}

	return b, nil
}

// parseMeta decodes meta.json. The schema version must be present and
// numeric; everything else is optional.
func parseMeta(data []byte) (*ArchiveMeta, error) {
	var raw struct {
		SchemaVersion *int           `json:"schemaVersion"`
		AppVersion    string         `json:"appVersion"`
		CreatedAt     time.Time      `json:"createdAt"`
		Platform      string         `json:"platform"`
		Notes         string         `json:"notes"`
		Warnings      []string       `json:"warnings"`
		Options       *BackupOptions `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.SchemaVersion == nil {
		return nil, errors.New("schemaVersion absent or not a number")
	}

	meta := &ArchiveMeta{
		SchemaVersion: *raw.SchemaVersion,
		AppVersion:    raw.AppVersion,
		CreatedAt:     raw.CreatedAt,
		Platform:      raw.Platform,
		Notes:         raw.Notes,
		Warnings:      raw.Warnings,
		Options:       DefaultBackupOptions(),
	}
	if raw.Options != nil {
		meta.Options = *raw.Options
	}
	return meta, nil
}

// exportMode returns the mode discriminator of a relational export
// payload, or empty when the payload is not JSON or carries no mode.
func exportMode(data []byte) string {
	var probe struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.Mode
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
