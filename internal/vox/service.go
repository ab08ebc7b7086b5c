package vox

import (
	"context"
	"fmt"
	"sync"
)

// BuildInfo identifies the application build recorded in archive metadata.
type BuildInfo struct {
	AppVersion string
	Platform   string // one of the Platform constants; defaults to web
}

// ContentRoots maps each archive file namespace to a local directory.
// Empty entries are skipped during file collection.
type ContentRoots struct {
	ChapterText string
	Audio       string
	Attachments string
	Diagnostics string
}

// VoxService is the orchestration layer that coordinates across all
// capabilities to perform the backup, restore, and reconciliation
// operations needed by the CLI.
type VoxService struct {
	build  BuildInfo
	roots  ContentRoots
	prefs  PreferenceStore
	store  ContentStore
	fsmgr  FilesystemManager
	remote RemoteStore
	creds  CredentialSource
	snaps  SnapshotSource
	logger Logger
	clock  Clock

	progress ProgressFunc

	// Single-slot guard: at most one packaging or restore run in flight.
	// Acquire never blocks; a second caller gets ErrBusy.
	busy chan struct{}

	// Folder-ID lookups cached per (parent, name) for the process
	// lifetime. Invalidated explicitly when a root's layout changed.
	cacheMu     sync.Mutex
	folderCache map[string]string
}

// NewVoxService creates a new VoxService with the provided dependencies.
// fsmgr may be nil on platforms without a native filesystem; file
// collection and file replay then degrade to warnings. remote and creds
// may be nil when no remote backend is configured; remote operations then
// fail with ErrAuthRequired.
func NewVoxService(build BuildInfo, roots ContentRoots, prefs PreferenceStore, store ContentStore, fsmgr FilesystemManager, remote RemoteStore, creds CredentialSource, snaps SnapshotSource, logger Logger, clock Clock) *VoxService {
	if build.Platform == "" {
		build.Platform = PlatformWeb
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &VoxService{
		build:       build,
		roots:       roots,
		prefs:       prefs,
		store:       store,
		fsmgr:       fsmgr,
		remote:      remote,
		creds:       creds,
		snaps:       snaps,
		logger:      logger,
		clock:       clock,
		busy:        make(chan struct{}, 1),
		folderCache: make(map[string]string),
	}
}

// OnProgress registers fn to receive step transitions for subsequent
// packaging and restore runs. Pass nil to disable.
func (s *VoxService) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

func (s *VoxService) emit(step Step) {
	if s.progress != nil {
		s.progress(step)
	}
}

// tryAcquire takes the backup slot without blocking.
func (s *VoxService) tryAcquire() bool {
	select {
	case s.busy <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *VoxService) release() {
	<-s.busy
}

// requireToken asks the credential source for a bearer credential. Any
// failure, including an absent source or an empty token, maps to
// ErrAuthRequired.
func (s *VoxService) requireToken(ctx context.Context) (string, error) {
	if s.creds == nil {
		return "", ErrAuthRequired
	}
	tok, err := s.creds.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	if tok == "" {
		return "", ErrAuthRequired
	}
	return tok, nil
}
