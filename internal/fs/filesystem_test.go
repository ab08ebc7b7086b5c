package fs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFilesystemManager_WriteFile(t *testing.T) {
	t.Run("writes new file", func(t *testing.T) {
		m := NewOSFilesystemManager()
		path := filepath.Join(t.TempDir(), "out.txt")

		if err := m.WriteFile(path, []byte("hello")); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading back: %v", err)
		}
		if !bytes.Equal(data, []byte("hello")) {
			t.Errorf("contents = %q, want %q", data, "hello")
		}
	})

	t.Run("replaces existing file", func(t *testing.T) {
		m := NewOSFilesystemManager()
		path := filepath.Join(t.TempDir(), "out.txt")

		if err := m.WriteFile(path, []byte("first")); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if err := m.WriteFile(path, []byte("second")); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		data, _ := m.ReadFile(path)
		if string(data) != "second" {
			t.Errorf("contents = %q, want %q", data, "second")
		}
	})

	t.Run("leaves no temp file behind", func(t *testing.T) {
		m := NewOSFilesystemManager()
		dir := t.TempDir()

		if err := m.WriteFile(filepath.Join(dir, "out.txt"), []byte("x")); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("reading dir: %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "out.txt" {
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			t.Errorf("directory contents = %v, want just out.txt", names)
		}
	})

	t.Run("fails when the directory is missing", func(t *testing.T) {
		m := NewOSFilesystemManager()
		path := filepath.Join(t.TempDir(), "missing", "out.txt")

		if err := m.WriteFile(path, []byte("x")); err == nil {
			t.Error("WriteFile() into a missing directory succeeded")
		}
	})
}

func TestOSFilesystemManager_List(t *testing.T) {
	t.Run("lists a single directory without recursing", func(t *testing.T) {
		m := NewOSFilesystemManager()
		dir := t.TempDir()

		if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
		if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
			t.Fatalf("creating subdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0644); err != nil {
			t.Fatalf("writing nested file: %v", err)
		}

		entries, err := m.List(dir)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2 (file and subdir)", len(entries))
		}

		var sawFile, sawDir bool
		for _, e := range entries {
			switch e.Name() {
			case "a.txt":
				sawFile = !e.IsDir()
			case "sub":
				sawDir = e.IsDir()
			}
		}
		if !sawFile || !sawDir {
			t.Errorf("listing missed entries: file=%v dir=%v", sawFile, sawDir)
		}
	})

	t.Run("missing directory errors", func(t *testing.T) {
		m := NewOSFilesystemManager()
		if _, err := m.List(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("List() of a missing directory succeeded")
		}
	})
}

func TestOSFilesystemManager_Remove(t *testing.T) {
	m := NewOSFilesystemManager()
	path := filepath.Join(t.TempDir(), "gone.txt")

	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if err := m.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := m.Stat(path); err == nil {
		t.Error("file still present after Remove()")
	}
}

func TestOSFilesystemManager_MkdirAll(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	if err := m.MkdirAll(dir); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	info, err := m.Stat(dir)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("created path is not a directory")
	}

	// Second call is a no-op.
	if err := m.MkdirAll(dir); err != nil {
		t.Errorf("MkdirAll() on existing path error = %v", err)
	}
}
