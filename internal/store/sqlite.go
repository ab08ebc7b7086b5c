package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mangusthvile/talevox/internal/model"
	"github.com/Mangusthvile/talevox/internal/store/migrations"
	"github.com/Mangusthvile/talevox/internal/vox"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// exportDocVersion identifies the layout of the native export document,
// independent of the archive schema version.
const exportDocVersion = 1

// SQLiteStore implements the ContentStore interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the store at path and brings its
// schema to the latest version. path can be a file path or ":memory:"
// for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store at %s: %w", path, err)
	}

	return &SQLiteStore{
		db:   db,
		path: path,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection for schema status checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Library records

func (s *SQLiteStore) ListBooks() ([]*model.Book, error) {
	rows, err := s.db.Query(`
		SELECT id, title, author, language, root_folder_id, created_at, updated_at
		FROM books ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Language, &b.RootFolderID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return books, nil
}

func (s *SQLiteStore) ListChapters() ([]*model.Chapter, error) {
	rows, err := s.db.Query(`
		SELECT id, book_id, idx, title, volume_name, legacy,
		       text_name, audio_name, remote_text_id, remote_audio_id,
		       text_ready, audio_ready, updated_at
		FROM chapters ORDER BY book_id, idx, id`)
	if err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*model.Chapter
	for rows.Next() {
		var c model.Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.Idx, &c.Title, &c.VolumeName, &c.Legacy,
			&c.TextName, &c.AudioName, &c.RemoteTextID, &c.RemoteAudioID,
			&c.TextReady, &c.AudioReady, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		chapters = append(chapters, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}
	return chapters, nil
}

func (s *SQLiteStore) ListAttachments() ([]*model.Attachment, error) {
	rows, err := s.db.Query(`
		SELECT id, book_id, name, local_path, size_bytes, created_at
		FROM attachments ORDER BY book_id, name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*model.Attachment
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.BookID, &a.Name, &a.LocalPath, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		attachments = append(attachments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	return attachments, nil
}

func (s *SQLiteStore) UpsertBooks(books []model.Book) error {
	return s.inTx(func(tx *sql.Tx) error {
		return upsertBooks(tx, books)
	})
}

func (s *SQLiteStore) UpsertChapters(chapters []model.Chapter) error {
	return s.inTx(func(tx *sql.Tx) error {
		return upsertChapters(tx, chapters)
	})
}

func (s *SQLiteStore) UpsertAttachments(attachments []model.Attachment) error {
	return s.inTx(func(tx *sql.Tx) error {
		return upsertAttachments(tx, attachments)
	})
}

// upsertBooks uses ON CONFLICT DO UPDATE rather than INSERT OR REPLACE:
// REPLACE deletes the old row first, which would cascade-delete the
// book's chapters and attachments.
func upsertBooks(tx *sql.Tx, books []model.Book) error {
	stmt, err := tx.Prepare(`
		INSERT INTO books (id, title, author, language, root_folder_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			language = excluded.language,
			root_folder_id = excluded.root_folder_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing book upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range books {
		if _, err := stmt.Exec(b.ID, b.Title, b.Author, b.Language, b.RootFolderID, b.CreatedAt, b.UpdatedAt); err != nil {
			return fmt.Errorf("upserting book %s: %w", b.ID, err)
		}
	}
	return nil
}

func upsertChapters(tx *sql.Tx, chapters []model.Chapter) error {
	stmt, err := tx.Prepare(`
		INSERT INTO chapters (id, book_id, idx, title, volume_name, legacy,
			text_name, audio_name, remote_text_id, remote_audio_id,
			text_ready, audio_ready, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			book_id = excluded.book_id,
			idx = excluded.idx,
			title = excluded.title,
			volume_name = excluded.volume_name,
			legacy = excluded.legacy,
			text_name = excluded.text_name,
			audio_name = excluded.audio_name,
			remote_text_id = excluded.remote_text_id,
			remote_audio_id = excluded.remote_audio_id,
			text_ready = excluded.text_ready,
			audio_ready = excluded.audio_ready,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing chapter upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chapters {
		if _, err := stmt.Exec(c.ID, c.BookID, c.Idx, c.Title, c.VolumeName, c.Legacy,
			c.TextName, c.AudioName, c.RemoteTextID, c.RemoteAudioID,
			c.TextReady, c.AudioReady, c.UpdatedAt); err != nil {
			return fmt.Errorf("upserting chapter %s: %w", c.ID, err)
		}
	}
	return nil
}

func upsertAttachments(tx *sql.Tx, attachments []model.Attachment) error {
	stmt, err := tx.Prepare(`
		INSERT INTO attachments (id, book_id, name, local_path, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			book_id = excluded.book_id,
			name = excluded.name,
			local_path = excluded.local_path,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("preparing attachment upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range attachments {
		if _, err := stmt.Exec(a.ID, a.BookID, a.Name, a.LocalPath, a.SizeBytes, a.CreatedAt); err != nil {
			return fmt.Errorf("upserting attachment %s: %w", a.ID, err)
		}
	}
	return nil
}

// Driver state

func (s *SQLiteStore) CreateJob(job *model.Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, kind, book_id, chapter_id, state, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			book_id = excluded.book_id,
			chapter_id = excluded.chapter_id,
			state = excluded.state,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		job.ID, job.Kind, job.BookID, job.ChapterID, job.State, job.Payload, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListJobs() ([]*model.Job, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, book_id, chapter_id, state, payload, created_at
		FROM jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.Kind, &j.BookID, &j.ChapterID, &j.State, &j.Payload, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

func (s *SQLiteStore) DeleteJob(id string) error {
	if _, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting job %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EnqueueUpload(upload *model.QueuedUpload) error {
	_, err := s.db.Exec(`
		INSERT INTO queued_uploads (id, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at`,
		upload.ID, upload.Payload, upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueueing upload %s: %w", upload.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListQueuedUploads() ([]*model.QueuedUpload, error) {
	rows, err := s.db.Query(`
		SELECT id, payload, created_at
		FROM queued_uploads ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing queued uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*model.QueuedUpload
	for rows.Next() {
		var u model.QueuedUpload
		if err := rows.Scan(&u.ID, &u.Payload, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning queued upload: %w", err)
		}
		uploads = append(uploads, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing queued uploads: %w", err)
	}
	return uploads, nil
}

func (s *SQLiteStore) DeleteQueuedUpload(id string) error {
	if _, err := s.db.Exec(`DELETE FROM queued_uploads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting queued upload %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertChapterAudioPath(binding *model.ChapterAudioPath) error {
	_, err := s.db.Exec(`
		INSERT INTO chapter_audio_paths (chapter_id, local_path, size_bytes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chapter_id) DO UPDATE SET
			local_path = excluded.local_path,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at`,
		binding.ChapterID, binding.LocalPath, binding.SizeBytes, binding.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting audio path for chapter %s: %w", binding.ChapterID, err)
	}
	return nil
}

func (s *SQLiteStore) ListChapterAudioPaths() ([]*model.ChapterAudioPath, error) {
	rows, err := s.db.Query(`
		SELECT chapter_id, local_path, size_bytes, updated_at
		FROM chapter_audio_paths ORDER BY chapter_id`)
	if err != nil {
		return nil, fmt.Errorf("listing chapter audio paths: %w", err)
	}
	defer rows.Close()

	var bindings []*model.ChapterAudioPath
	for rows.Next() {
		var p model.ChapterAudioPath
		if err := rows.Scan(&p.ChapterID, &p.LocalPath, &p.SizeBytes, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning chapter audio path: %w", err)
		}
		bindings = append(bindings, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chapter audio paths: %w", err)
	}
	return bindings, nil
}

// Native export/import

// nativeExport is the self-describing document produced by ExportNative.
// The mode field is what restore probes to decide between a native import
// and a snapshot replay.
type nativeExport struct {
	Mode              string                   `json:"mode"`
	DocVersion        int                      `json:"docVersion"`
	ExportedAt        time.Time                `json:"exportedAt"`
	Books             []model.Book             `json:"books"`
	Chapters          []model.Chapter          `json:"chapters"`
	Attachments       []model.Attachment       `json:"attachments"`
	Jobs              []model.Job              `json:"jobs"`
	QueuedUploads     []model.QueuedUpload     `json:"queuedUploads"`
	ChapterAudioPaths []model.ChapterAudioPath `json:"chapterAudioPaths"`
}

func (s *SQLiteStore) ExportNative() ([]byte, error) {
	doc := nativeExport{
		Mode:       vox.ExportModeNative,
		DocVersion: exportDocVersion,
		ExportedAt: time.Now().UTC(),
	}

	books, err := s.ListBooks()
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		doc.Books = append(doc.Books, *b)
	}

	chapters, err := s.ListChapters()
	if err != nil {
		return nil, err
	}
	for _, c := range chapters {
		doc.Chapters = append(doc.Chapters, *c)
	}

	attachments, err := s.ListAttachments()
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		doc.Attachments = append(doc.Attachments, *a)
	}

	jobs, err := s.ListJobs()
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		doc.Jobs = append(doc.Jobs, *j)
	}

	uploads, err := s.ListQueuedUploads()
	if err != nil {
		return nil, err
	}
	for _, u := range uploads {
		doc.QueuedUploads = append(doc.QueuedUploads, *u)
	}

	paths, err := s.ListChapterAudioPaths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		doc.ChapterAudioPaths = append(doc.ChapterAudioPaths, *p)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding native export: %w", err)
	}
	return data, nil
}

func (s *SQLiteStore) ValidateExport(data []byte) error {
	doc, err := parseNativeExport(data)
	if err != nil {
		return err
	}

	bookIDs := make(map[string]bool, len(doc.Books))
	for i, b := range doc.Books {
		if b.ID == "" {
			return fmt.Errorf("book %d has empty id", i)
		}
		if bookIDs[b.ID] {
			return fmt.Errorf("duplicate book id %s", b.ID)
		}
		bookIDs[b.ID] = true
	}

	chapterIDs := make(map[string]bool, len(doc.Chapters))
	for i, c := range doc.Chapters {
		if c.ID == "" {
			return fmt.Errorf("chapter %d has empty id", i)
		}
		if chapterIDs[c.ID] {
			return fmt.Errorf("duplicate chapter id %s", c.ID)
		}
		chapterIDs[c.ID] = true
		if !bookIDs[c.BookID] {
			return fmt.Errorf("chapter %s references unknown book %s", c.ID, c.BookID)
		}
	}

	for i, a := range doc.Attachments {
		if a.ID == "" {
			return fmt.Errorf("attachment %d has empty id", i)
		}
		if !bookIDs[a.BookID] {
			return fmt.Errorf("attachment %s references unknown book %s", a.ID, a.BookID)
		}
	}

	for i, j := range doc.Jobs {
		if j.ID == "" {
			return fmt.Errorf("job %d has empty id", i)
		}
	}
	for i, u := range doc.QueuedUploads {
		if u.ID == "" {
			return fmt.Errorf("queued upload %d has empty id", i)
		}
	}

	return nil
}

func (s *SQLiteStore) ImportNative(data []byte) error {
	doc, err := parseNativeExport(data)
	if err != nil {
		return err
	}

	return s.inTx(func(tx *sql.Tx) error {
		// Clear existing contents, children before parents.
		for _, table := range []string{"chapter_audio_paths", "queued_uploads", "jobs", "attachments", "chapters", "books"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		if err := upsertBooks(tx, doc.Books); err != nil {
			return err
		}
		if err := upsertChapters(tx, doc.Chapters); err != nil {
			return err
		}
		if err := upsertAttachments(tx, doc.Attachments); err != nil {
			return err
		}

		for _, j := range doc.Jobs {
			if _, err := tx.Exec(`
				INSERT INTO jobs (id, kind, book_id, chapter_id, state, payload, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				j.ID, j.Kind, j.BookID, j.ChapterID, j.State, j.Payload, j.CreatedAt); err != nil {
				return fmt.Errorf("importing job %s: %w", j.ID, err)
			}
		}
		for _, u := range doc.QueuedUploads {
			if _, err := tx.Exec(`
				INSERT INTO queued_uploads (id, payload, created_at)
				VALUES (?, ?, ?)`,
				u.ID, u.Payload, u.CreatedAt); err != nil {
				return fmt.Errorf("importing queued upload %s: %w", u.ID, err)
			}
		}
		for _, p := range doc.ChapterAudioPaths {
			if _, err := tx.Exec(`
				INSERT INTO chapter_audio_paths (chapter_id, local_path, size_bytes, updated_at)
				VALUES (?, ?, ?, ?)`,
				p.ChapterID, p.LocalPath, p.SizeBytes, p.UpdatedAt); err != nil {
				return fmt.Errorf("importing audio path for chapter %s: %w", p.ChapterID, err)
			}
		}

		return nil
	})
}

// parseNativeExport decodes an export document and rejects anything that
// does not declare itself a native export.
func parseNativeExport(data []byte) (*nativeExport, error) {
	var doc nativeExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing export document: %w", err)
	}
	if doc.Mode != vox.ExportModeNative {
		return nil, fmt.Errorf("export document has mode %q, want %q", doc.Mode, vox.ExportModeNative)
	}
	return &doc, nil
}

// inTx runs fn inside a transaction, committing on success and rolling
// back on error.
func (s *SQLiteStore) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Compile-time check that SQLiteStore implements vox.ContentStore
var _ vox.ContentStore = (*SQLiteStore)(nil)
