package store

import (
	"strings"
	"testing"
	"time"

	"github.com/Mangusthvile/talevox/internal/config"
	"github.com/Mangusthvile/talevox/internal/model"
)

// newTestStore creates a new in-memory store with schema applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testBook(id, title string) model.Book {
	return model.Book{
		ID:        id,
		Title:     title,
		Author:    "A. Author",
		Language:  "en",
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func testChapter(id, bookID string, idx int) model.Chapter {
	return model.Chapter{
		ID:        id,
		BookID:    bookID,
		Idx:       idx,
		Title:     "Chapter Title",
		UpdatedAt: testTime,
	}
}

func TestSQLiteStore_UpsertAndListBooks(t *testing.T) {
	t.Run("lists inserted books", func(t *testing.T) {
		s := newTestStore(t)

		books := []model.Book{testBook("b1", "First"), testBook("b2", "Second")}
		if err := s.UpsertBooks(books); err != nil {
			t.Fatalf("UpsertBooks() error = %v", err)
		}

		got, err := s.ListBooks()
		if err != nil {
			t.Fatalf("ListBooks() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(ListBooks()) = %d, want 2", len(got))
		}
		if got[0].Title != "First" {
			t.Errorf("Title = %q, want %q", got[0].Title, "First")
		}
		if !got[0].CreatedAt.Equal(testTime) {
			t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, testTime)
		}
	})

	t.Run("upsert with existing id replaces", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.UpsertBooks([]model.Book{testBook("b1", "Old Title")}); err != nil {
			t.Fatalf("UpsertBooks() error = %v", err)
		}
		updated := testBook("b1", "New Title")
		updated.RootFolderID = "folder-9"
		if err := s.UpsertBooks([]model.Book{updated}); err != nil {
			t.Fatalf("UpsertBooks() second error = %v", err)
		}

		got, err := s.ListBooks()
		if err != nil {
			t.Fatalf("ListBooks() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len(ListBooks()) = %d, want 1", len(got))
		}
		if got[0].Title != "New Title" {
			t.Errorf("Title = %q, want %q", got[0].Title, "New Title")
		}
		if got[0].RootFolderID != "folder-9" {
			t.Errorf("RootFolderID = %q, want %q", got[0].RootFolderID, "folder-9")
		}
	})

	t.Run("upserting a book keeps its chapters", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.UpsertBooks([]model.Book{testBook("b1", "Book")}); err != nil {
			t.Fatalf("UpsertBooks() error = %v", err)
		}
		if err := s.UpsertChapters([]model.Chapter{testChapter("c1", "b1", 1)}); err != nil {
			t.Fatalf("UpsertChapters() error = %v", err)
		}

		// Re-upserting the book must not fire the ON DELETE CASCADE.
		if err := s.UpsertBooks([]model.Book{testBook("b1", "Book v2")}); err != nil {
			t.Fatalf("UpsertBooks() second error = %v", err)
		}

		chapters, err := s.ListChapters()
		if err != nil {
			t.Fatalf("ListChapters() error = %v", err)
		}
		if len(chapters) != 1 {
			t.Fatalf("len(ListChapters()) = %d, want 1 (chapter lost on book upsert)", len(chapters))
		}
	})
}

func TestSQLiteStore_Chapters(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertBooks([]model.Book{testBook("b1", "Book")}); err != nil {
		t.Fatalf("UpsertBooks() error = %v", err)
	}

	ch := testChapter("c1", "b1", 3)
	ch.VolumeName = "Volume 2"
	ch.TextName = "003 - Chapter Title.txt"
	ch.RemoteTextID = "remote-17"
	ch.TextReady = true
	ch.Legacy = true
	if err := s.UpsertChapters([]model.Chapter{ch}); err != nil {
		t.Fatalf("UpsertChapters() error = %v", err)
	}

	got, err := s.ListChapters()
	if err != nil {
		t.Fatalf("ListChapters() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(ListChapters()) = %d, want 1", len(got))
	}
	c := got[0]
	if c.Idx != 3 {
		t.Errorf("Idx = %d, want 3", c.Idx)
	}
	if c.VolumeName != "Volume 2" {
		t.Errorf("VolumeName = %q, want %q", c.VolumeName, "Volume 2")
	}
	if c.TextName != "003 - Chapter Title.txt" {
		t.Errorf("TextName = %q, want %q", c.TextName, "003 - Chapter Title.txt")
	}
	if c.RemoteTextID != "remote-17" {
		t.Errorf("RemoteTextID = %q, want %q", c.RemoteTextID, "remote-17")
	}
	if !c.TextReady {
		t.Error("TextReady = false, want true")
	}
	if c.AudioReady {
		t.Error("AudioReady = true, want false")
	}
	if !c.Legacy {
		t.Error("Legacy = false, want true")
	}
}

func TestSQLiteStore_DriverState(t *testing.T) {
	t.Run("jobs round trip and delete", func(t *testing.T) {
		s := newTestStore(t)

		job := &model.Job{
			ID:        "job-1",
			Kind:      "synthesize",
			BookID:    "b1",
			ChapterID: "c1",
			State:     "queued",
			Payload:   `{"voice":"en-GB"}`,
			CreatedAt: testTime,
		}
		if err := s.CreateJob(job); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		// Idempotent: same ID again is a replace, not an error.
		if err := s.CreateJob(job); err != nil {
			t.Fatalf("CreateJob() repeat error = %v", err)
		}

		jobs, err := s.ListJobs()
		if err != nil {
			t.Fatalf("ListJobs() error = %v", err)
		}
		if len(jobs) != 1 {
			t.Fatalf("len(ListJobs()) = %d, want 1", len(jobs))
		}
		if jobs[0].Payload != `{"voice":"en-GB"}` {
			t.Errorf("Payload = %q, want original payload", jobs[0].Payload)
		}

		if err := s.DeleteJob("job-1"); err != nil {
			t.Fatalf("DeleteJob() error = %v", err)
		}
		jobs, err = s.ListJobs()
		if err != nil {
			t.Fatalf("ListJobs() after delete error = %v", err)
		}
		if len(jobs) != 0 {
			t.Errorf("len(ListJobs()) = %d after delete, want 0", len(jobs))
		}
	})

	t.Run("queued uploads round trip", func(t *testing.T) {
		s := newTestStore(t)

		up := &model.QueuedUpload{ID: "u1", Payload: `{"file":"a.mp3"}`, CreatedAt: testTime}
		if err := s.EnqueueUpload(up); err != nil {
			t.Fatalf("EnqueueUpload() error = %v", err)
		}

		ups, err := s.ListQueuedUploads()
		if err != nil {
			t.Fatalf("ListQueuedUploads() error = %v", err)
		}
		if len(ups) != 1 || ups[0].ID != "u1" {
			t.Fatalf("ListQueuedUploads() = %v, want one upload u1", ups)
		}

		if err := s.DeleteQueuedUpload("u1"); err != nil {
			t.Fatalf("DeleteQueuedUpload() error = %v", err)
		}
	})

	t.Run("chapter audio paths keyed by chapter", func(t *testing.T) {
		s := newTestStore(t)

		first := &model.ChapterAudioPath{ChapterID: "c1", LocalPath: "/audio/old.mp3", SizeBytes: 100, UpdatedAt: testTime}
		if err := s.UpsertChapterAudioPath(first); err != nil {
			t.Fatalf("UpsertChapterAudioPath() error = %v", err)
		}
		second := &model.ChapterAudioPath{ChapterID: "c1", LocalPath: "/audio/new.mp3", SizeBytes: 200, UpdatedAt: testTime}
		if err := s.UpsertChapterAudioPath(second); err != nil {
			t.Fatalf("UpsertChapterAudioPath() second error = %v", err)
		}

		paths, err := s.ListChapterAudioPaths()
		if err != nil {
			t.Fatalf("ListChapterAudioPaths() error = %v", err)
		}
		if len(paths) != 1 {
			t.Fatalf("len(ListChapterAudioPaths()) = %d, want 1", len(paths))
		}
		if paths[0].LocalPath != "/audio/new.mp3" {
			t.Errorf("LocalPath = %q, want %q", paths[0].LocalPath, "/audio/new.mp3")
		}
		if paths[0].SizeBytes != 200 {
			t.Errorf("SizeBytes = %d, want 200", paths[0].SizeBytes)
		}
	})
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	t.Run("export and import round trip", func(t *testing.T) {
		src := newTestStore(t)

		if err := src.UpsertBooks([]model.Book{testBook("b1", "Book")}); err != nil {
			t.Fatalf("UpsertBooks() error = %v", err)
		}
		if err := src.UpsertChapters([]model.Chapter{testChapter("c1", "b1", 1), testChapter("c2", "b1", 2)}); err != nil {
			t.Fatalf("UpsertChapters() error = %v", err)
		}
		if err := src.UpsertAttachments([]model.Attachment{{
			ID: "a1", BookID: "b1", Name: "cover.jpg", SizeBytes: 1024, CreatedAt: testTime,
		}}); err != nil {
			t.Fatalf("UpsertAttachments() error = %v", err)
		}
		if err := src.CreateJob(&model.Job{ID: "j1", Kind: "upload", State: "queued", CreatedAt: testTime}); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}

		data, err := src.ExportNative()
		if err != nil {
			t.Fatalf("ExportNative() error = %v", err)
		}
		if !strings.Contains(string(data), `"mode":"native"`) {
			t.Error("export document does not declare native mode")
		}

		dst := newTestStore(t)
		// Pre-seed the destination to prove import replaces, not merges.
		if err := dst.UpsertBooks([]model.Book{testBook("stale", "Stale Book")}); err != nil {
			t.Fatalf("UpsertBooks() on dst error = %v", err)
		}

		if err := dst.ValidateExport(data); err != nil {
			t.Fatalf("ValidateExport() error = %v", err)
		}
		if err := dst.ImportNative(data); err != nil {
			t.Fatalf("ImportNative() error = %v", err)
		}

		books, err := dst.ListBooks()
		if err != nil {
			t.Fatalf("ListBooks() error = %v", err)
		}
		if len(books) != 1 || books[0].ID != "b1" {
			t.Fatalf("ListBooks() after import = %v, want only b1", books)
		}
		chapters, err := dst.ListChapters()
		if err != nil {
			t.Fatalf("ListChapters() error = %v", err)
		}
		if len(chapters) != 2 {
			t.Errorf("len(ListChapters()) = %d, want 2", len(chapters))
		}
		jobs, err := dst.ListJobs()
		if err != nil {
			t.Fatalf("ListJobs() error = %v", err)
		}
		if len(jobs) != 1 || jobs[0].ID != "j1" {
			t.Errorf("ListJobs() after import = %v, want only j1", jobs)
		}
	})

	t.Run("validate rejects wrong mode", func(t *testing.T) {
		s := newTestStore(t)

		err := s.ValidateExport([]byte(`{"mode":"web-fallback"}`))
		if err == nil {
			t.Fatal("ValidateExport() expected error for non-native mode")
		}
	})

	t.Run("validate rejects orphan chapter", func(t *testing.T) {
		s := newTestStore(t)

		doc := `{"mode":"native","books":[],"chapters":[{"id":"c1","bookId":"missing","idx":1}]}`
		err := s.ValidateExport([]byte(doc))
		if err == nil {
			t.Fatal("ValidateExport() expected error for chapter referencing unknown book")
		}
	})

	t.Run("validate rejects duplicate ids", func(t *testing.T) {
		s := newTestStore(t)

		doc := `{"mode":"native","books":[{"id":"b1","title":"x"},{"id":"b1","title":"y"}]}`
		err := s.ValidateExport([]byte(doc))
		if err == nil {
			t.Fatal("ValidateExport() expected error for duplicate book id")
		}
	})

	t.Run("import rejects malformed document", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.ImportNative([]byte("not json")); err == nil {
			t.Fatal("ImportNative() expected error for malformed document")
		}
	})
}

func TestNewContentStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{
			name:    "memory store",
			cfg:     config.StoreConfig{Type: "memory"},
			wantErr: false,
		},
		{
			name:    "sqlite store",
			cfg:     config.StoreConfig{Type: "sqlite", DataDir: t.TempDir()},
			wantErr: false,
		},
		{
			name:    "sqlite without data_dir",
			cfg:     config.StoreConfig{Type: "sqlite"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     config.StoreConfig{Type: "postgres"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewContentStoreFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewContentStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil {
				defer got.Close()
				if _, err := got.ListBooks(); err != nil {
					t.Errorf("ListBooks() on fresh store error = %v", err)
				}
			}
		})
	}
}
