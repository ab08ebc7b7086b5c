package testutil

import (
	"testing"

	"github.com/Mangusthvile/talevox/internal/store"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// NewTestStore creates a new in-memory content store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) vox.ContentStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}
