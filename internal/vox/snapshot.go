package vox

import (
	"context"

	"github.com/Mangusthvile/talevox/internal/model"
)

// SnapshotSource produces the full application-state snapshot included in
// every archive. The snapshot is the restore path of last resort: slower
// to replay than a native store import, but always possible.
type SnapshotSource interface {
	CollectSnapshot(ctx context.Context) (*model.FullSnapshot, error)
}
