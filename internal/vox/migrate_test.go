package vox

import (
	"errors"
	"strings"
	"testing"
)

func TestMigrateBundle(t *testing.T) {
	t.Run("current version passes through unchanged", func(t *testing.T) {
		in := Bundle{Meta: ArchiveMeta{SchemaVersion: SchemaVersion, Warnings: []string{"existing"}}}

		out, err := migrateBundle(in)
		if err != nil {
			t.Fatalf("migrateBundle() error = %v", err)
		}
		if out.Meta.SchemaVersion != SchemaVersion {
			t.Errorf("SchemaVersion = %d, want %d", out.Meta.SchemaVersion, SchemaVersion)
		}
		if len(out.Meta.Warnings) != 1 {
			t.Errorf("Warnings = %v, want the existing warning only", out.Meta.Warnings)
		}
	})

	t.Run("older version is stamped up with one warning", func(t *testing.T) {
		in := Bundle{Meta: ArchiveMeta{SchemaVersion: 1, Warnings: []string{"carried over"}}}

		out, err := migrateBundle(in)
		if err != nil {
			t.Fatalf("migrateBundle() error = %v", err)
		}
		if out.Meta.SchemaVersion != SchemaVersion {
			t.Errorf("SchemaVersion = %d, want %d", out.Meta.SchemaVersion, SchemaVersion)
		}
		if len(out.Meta.Warnings) != 2 {
			t.Fatalf("Warnings = %v, want carried warning plus upgrade note", out.Meta.Warnings)
		}
		if out.Meta.Warnings[0] != "carried over" {
			t.Errorf("Warnings[0] = %q, want the carried warning first", out.Meta.Warnings[0])
		}
		if !strings.Contains(out.Meta.Warnings[1], "upgraded from version 1") {
			t.Errorf("Warnings[1] = %q, want an upgrade note naming version 1", out.Meta.Warnings[1])
		}
	})

	t.Run("input bundle is not mutated", func(t *testing.T) {
		in := Bundle{Meta: ArchiveMeta{SchemaVersion: 2}}

		if _, err := migrateBundle(in); err != nil {
			t.Fatalf("migrateBundle() error = %v", err)
		}
		if in.Meta.SchemaVersion != 2 {
			t.Errorf("input SchemaVersion = %d, want 2 untouched", in.Meta.SchemaVersion)
		}
		if len(in.Meta.Warnings) != 0 {
			t.Errorf("input Warnings = %v, want none", in.Meta.Warnings)
		}
	})

	t.Run("newer version is rejected", func(t *testing.T) {
		in := Bundle{Meta: ArchiveMeta{SchemaVersion: SchemaVersion + 1}}

		_, err := migrateBundle(in)
		if !errors.Is(err, ErrSchemaTooNew) {
			t.Errorf("migrateBundle() error = %v, want ErrSchemaTooNew", err)
		}
	})
}
