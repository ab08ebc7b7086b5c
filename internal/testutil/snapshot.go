package testutil

import (
	"context"

	"github.com/Mangusthvile/talevox/internal/model"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// StubSnapshotSource returns a canned snapshot, or a fixed error.
type StubSnapshotSource struct {
	Snapshot *model.FullSnapshot
	Err      error
}

func (s *StubSnapshotSource) CollectSnapshot(ctx context.Context) (*model.FullSnapshot, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Snapshot, nil
}

// Compile-time check
var _ vox.SnapshotSource = (*StubSnapshotSource)(nil)
