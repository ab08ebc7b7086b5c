package vox

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a packaging or restore run is requested
	// while another one is still in flight. Backups are point-in-time
	// snapshots, so callers normally treat this as a skip, not a failure.
	ErrBusy = errors.New("backup operation already in progress")

	// ErrAuthRequired is returned by reconciliation when no valid remote
	// credential is available. This is the one hard precondition of a scan.
	ErrAuthRequired = errors.New("remote credential required")

	// ErrSchemaTooNew is returned when an archive's schema version is
	// newer than this build supports. Downgrading data is not attempted.
	ErrSchemaTooNew = errors.New("archive schema version newer than supported")

	// ErrNoSnapshotSource is returned by Pack when no snapshot collaborator
	// was configured. Without a snapshot the archive has no restore path.
	ErrNoSnapshotSource = errors.New("no snapshot source configured")
)

// ArchiveError describes a structural problem with a specific archive entry:
// a required entry that is missing, or one that cannot be decoded.
type ArchiveError struct {
	Entry string
	Err   error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive entry %s: %v", e.Entry, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}
