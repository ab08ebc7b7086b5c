package model

import "time"

// Book represents a text the application reads aloud.
type Book struct {
	ID           string    `json:"id"` // UUID
	Title        string    `json:"title"`
	Author       string    `json:"author,omitempty"`
	Language     string    `json:"language,omitempty"`
	RootFolderID string    `json:"rootFolderId,omitempty"` // remote folder ID, empty if never synced
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Chapter represents one unit of a book: a text asset and, once
// synthesized, an audio asset. The remote fields record what was last
// learned about this chapter's files on the remote backend; they are
// filled in by reconciliation scans, never invented locally.
type Chapter struct {
	ID         string `json:"id"`     // UUID
	BookID     string `json:"bookId"` // Foreign key to Book
	Idx        int    `json:"idx"`    // 1-based reading order
	Title      string `json:"title"`
	VolumeName string `json:"volumeName,omitempty"` // Subfolder for multi-volume books
	Legacy     bool   `json:"legacy,omitempty"`     // Predates the manifest naming scheme

	TextName  string `json:"textName,omitempty"`  // Remembered remote filename
	AudioName string `json:"audioName,omitempty"` // Remembered remote filename

	RemoteTextID  string `json:"remoteTextId,omitempty"`  // Stored remote file ID
	RemoteAudioID string `json:"remoteAudioId,omitempty"` // Stored remote file ID

	TextReady  bool `json:"textReady"`  // Text confirmed present on the remote
	AudioReady bool `json:"audioReady"` // Audio confirmed present on the remote

	UpdatedAt time.Time `json:"updatedAt"`
}

// Attachment is a supplementary file bound to a book: cover art, the
// source document, reader notes.
type Attachment struct {
	ID        string    `json:"id"`     // UUID
	BookID    string    `json:"bookId"` // Foreign key to Book
	Name      string    `json:"name"`
	LocalPath string    `json:"localPath,omitempty"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Job is a background work item owned by the storage driver: a synthesis
// run, an upload, a folder move. The payload is opaque to the engine and
// is captured and replayed byte for byte.
type Job struct {
	ID        string    `json:"id"` // UUID
	Kind      string    `json:"kind"`
	BookID    string    `json:"bookId,omitempty"`
	ChapterID string    `json:"chapterId,omitempty"`
	State     string    `json:"state"`             // queued, running, done, failed
	Payload   string    `json:"payload,omitempty"` // Opaque JSON
	CreatedAt time.Time `json:"createdAt"`
}

// QueuedUpload is a pending upload the storage driver has not yet flushed
// to the remote. Opaque to the engine.
type QueuedUpload struct {
	ID        string    `json:"id"`      // UUID
	Payload   string    `json:"payload"` // Opaque JSON
	CreatedAt time.Time `json:"createdAt"`
}

// ChapterAudioPath binds a chapter to its synthesized audio file on the
// local filesystem.
type ChapterAudioPath struct {
	ChapterID string    `json:"contentId"` // Foreign key to Chapter
	LocalPath string    `json:"localPath"`
	SizeBytes int64     `json:"sizeBytes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullSnapshot is the full-state snapshot produced by the snapshot
// collaborator at backup time. On restore it is the path of last resort:
// slower than a native store import, but always replayable.
type FullSnapshot struct {
	Books       []Book       `json:"books"`
	Chapters    []Chapter    `json:"chapters"`
	Attachments []Attachment `json:"attachments"`
	CollectedAt time.Time    `json:"collectedAt"`
}
