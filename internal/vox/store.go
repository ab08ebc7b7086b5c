package vox

import "github.com/Mangusthvile/talevox/internal/model"

// ContentStore provides an interface for the relational store: book,
// chapter, and attachment records, the storage driver's job and upload
// queues, and a native export/import pair used as the fast path for
// backup and restore.
//
// All creation calls are idempotent: creating a record whose ID already
// exists replaces it. Restore relies on this to replay archives safely.
type ContentStore interface {
	// Library records

	ListBooks() ([]*model.Book, error)
	ListChapters() ([]*model.Chapter, error)
	ListAttachments() ([]*model.Attachment, error)

	// Bulk upserts, used by snapshot replay. Order matters: books before
	// chapters before attachments, so foreign keys resolve.
	UpsertBooks(books []model.Book) error
	UpsertChapters(chapters []model.Chapter) error
	UpsertAttachments(attachments []model.Attachment) error

	// Driver state

	CreateJob(job *model.Job) error
	ListJobs() ([]*model.Job, error)
	DeleteJob(id string) error

	EnqueueUpload(upload *model.QueuedUpload) error
	ListQueuedUploads() ([]*model.QueuedUpload, error)
	DeleteQueuedUpload(id string) error

	UpsertChapterAudioPath(binding *model.ChapterAudioPath) error
	ListChapterAudioPaths() ([]*model.ChapterAudioPath, error)

	// Native export/import

	// ExportNative serializes the store's full contents to a self-describing
	// JSON document with mode "native".
	ExportNative() ([]byte, error)

	// ValidateExport checks the structural integrity of a native export
	// without importing it.
	ValidateExport(data []byte) error

	// ImportNative replaces the store's contents with a native export.
	ImportNative(data []byte) error

	// Close closes the underlying connection.
	Close() error
}
