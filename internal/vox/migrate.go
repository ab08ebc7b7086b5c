package vox

import "fmt"

// SchemaVersion is the archive schema produced by this build. Archives
// with an older version are upgraded on restore; newer ones are rejected.
const SchemaVersion = 3

// migrateBundle normalizes a bundle's metadata to the current schema
// version. Versions below current are stamped up with exactly one warning
// recording the upgrade; structural per-field transforms slot in here when
// a future version needs them. A version above current fails: downgrading
// data is not attempted.
func migrateBundle(b Bundle) (Bundle, error) {
	switch {
	case b.Meta.SchemaVersion == SchemaVersion:
		return b, nil
	case b.Meta.SchemaVersion > SchemaVersion:
		return b, fmt.Errorf("archive schema version %d, supported up to %d: %w",
			b.Meta.SchemaVersion, SchemaVersion, ErrSchemaTooNew)
	}

	from := b.Meta.SchemaVersion
	warnings := make([]string, len(b.Meta.Warnings), len(b.Meta.Warnings)+1)
	copy(warnings, b.Meta.Warnings)

	b.Meta.SchemaVersion = SchemaVersion
	b.Meta.Warnings = append(warnings, fmt.Sprintf("archive schema upgraded from version %d to %d", from, SchemaVersion))
	return b, nil
}
