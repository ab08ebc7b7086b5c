package snapshot

import (
	"context"
	"fmt"

	"github.com/Mangusthvile/talevox/internal/model"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// Builder assembles a FullSnapshot from the content store. It is the
// snapshot source used where the engine and the store share a process;
// embedded frontends that keep state elsewhere provide their own source.
type Builder struct {
	store vox.ContentStore
	clock vox.Clock
}

// NewBuilder creates a snapshot builder over the given store.
// A nil clock defaults to the real clock.
func NewBuilder(store vox.ContentStore, clock vox.Clock) *Builder {
	if clock == nil {
		clock = vox.RealClock{}
	}
	return &Builder{store: store, clock: clock}
}

// CollectSnapshot reads the full library state. Any listing failure makes
// the snapshot unusable, so errors here are fatal rather than degraded.
func (b *Builder) CollectSnapshot(ctx context.Context) (*model.FullSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	books, err := b.store.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	chapters, err := b.store.ListChapters()
	if err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}
	attachments, err := b.store.ListAttachments()
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}

	snap := &model.FullSnapshot{
		Books:       make([]model.Book, 0, len(books)),
		Chapters:    make([]model.Chapter, 0, len(chapters)),
		Attachments: make([]model.Attachment, 0, len(attachments)),
		CollectedAt: b.clock.Now(),
	}
	for _, bk := range books {
		snap.Books = append(snap.Books, *bk)
	}
	for _, ch := range chapters {
		snap.Chapters = append(snap.Chapters, *ch)
	}
	for _, at := range attachments {
		snap.Attachments = append(snap.Attachments, *at)
	}

	return snap, nil
}

// Compile-time check that Builder implements vox.SnapshotSource
var _ vox.SnapshotSource = (*Builder)(nil)
