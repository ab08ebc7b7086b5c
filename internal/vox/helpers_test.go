package vox_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/Mangusthvile/talevox/internal/model"
	"github.com/Mangusthvile/talevox/internal/vox"
)

var (
	fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testBuild = vox.BuildInfo{AppVersion: "1.4.0", Platform: vox.PlatformAndroid}
)

func testRoots() vox.ContentRoots {
	return vox.ContentRoots{
		ChapterText: "/data/talevox/text",
		Audio:       "/data/talevox/audio",
		Attachments: "/data/talevox/attachments",
		Diagnostics: "/data/talevox/diagnostics",
	}
}

func libraryBook() model.Book {
	return model.Book{
		ID:        "b1",
		Title:     "The Long Walk",
		Author:    "R. Bachman",
		Language:  "en",
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}
}

func libraryChapters(bookID string) []model.Chapter {
	return []model.Chapter{
		{ID: "c1", BookID: bookID, Idx: 1, Title: "North", UpdatedAt: fixedTime},
		{ID: "c2", BookID: bookID, Idx: 2, Title: "The Gate", UpdatedAt: fixedTime},
	}
}

func librarySnapshot() *model.FullSnapshot {
	return &model.FullSnapshot{
		Books:       []model.Book{libraryBook()},
		Chapters:    libraryChapters("b1"),
		CollectedAt: fixedTime,
	}
}

// buildArchive assembles a raw backup archive from entry names to
// payloads, for shaping archives the packager would never produce.
func buildArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating archive entry %s: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("writing archive entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}

// readArchive indexes an encoded archive by entry name.
func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening archive entry %s: %v", f.Name, err)
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading archive entry %s: %v", f.Name, err)
		}
		entries[f.Name] = payload
	}
	return entries
}

func restoreArchive(t *testing.T, svc *vox.VoxService, data []byte) (*vox.RestoreResult, error) {
	t.Helper()
	return svc.Restore(context.Background(), bytes.NewReader(data), int64(len(data)))
}
