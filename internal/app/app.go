package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Mangusthvile/talevox/internal/config"
	voxfs "github.com/Mangusthvile/talevox/internal/fs"
	"github.com/Mangusthvile/talevox/internal/model"
	"github.com/Mangusthvile/talevox/internal/prefstore"
	"github.com/Mangusthvile/talevox/internal/remote"
	"github.com/Mangusthvile/talevox/internal/snapshot"
	"github.com/Mangusthvile/talevox/internal/store"
	"github.com/Mangusthvile/talevox/internal/store/migrations"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// installIDKey is the preference holding this installation's stable ID,
// minted on first run. Deliberately outside the backed-up key set: a
// restored archive does not transplant another installation's identity.
const installIDKey = "app.install_id"

// VoxApp is the application layer between the CLI and VoxService.
// It constructs all collaborators from config, exposes high-level
// operations, and manages the store and log file lifecycle on Close.
type VoxApp struct {
	cfg       *config.Config
	prefs     vox.PreferenceStore
	store     vox.ContentStore
	fsmgr     vox.FilesystemManager
	remote    vox.RemoteStore
	creds     vox.CredentialSource
	service   *vox.VoxService
	op        *Operation
	logFile   *os.File
	installID string
}

// NewVoxApp creates a fully wired VoxApp from the given config.
// operation identifies the CLI command being run (e.g. "backup", "scan").
// The caller must call Close when done.
func NewVoxApp(ctx context.Context, cfg *config.Config, operation string) (*VoxApp, error) {
	// The web platform has no native filesystem; file collection and
	// replay degrade to warnings inside the engine.
	var fsmgr vox.FilesystemManager
	if cfg.Platform != vox.PlatformWeb {
		fsmgr = voxfs.NewOSFilesystemManager()
	}

	prefs, err := prefstore.NewPreferenceStoreFromConfig(cfg.Preferences)
	if err != nil {
		return nil, fmt.Errorf("creating preference store: %w", err)
	}

	st, err := store.NewContentStoreFromConfig(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating content store: %w", err)
	}

	clock := vox.RealClock{}
	ids := vox.UUIDGenerator{}
	op := NewOperation(operation, "", ids.New(), clock.Now().UTC())

	logger, logFile, err := newLogger(cfg.LogDir, op.ID)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	vlog := &slogAdapter{l: logger}

	rem, err := remote.NewRemoteStoreFromConfig(ctx, cfg.Remote, vlog)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating remote store: %w", err)
	}

	creds, err := remote.NewCredentialSourceFromConfig(cfg.Remote)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating credential source: %w", err)
	}

	installID, err := ensureInstallID(prefs, ids)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, err
	}

	build := vox.BuildInfo{AppVersion: cfg.AppVersion, Platform: cfg.Platform}
	roots := vox.ContentRoots{
		ChapterText: cfg.Content.ChapterTextDir,
		Audio:       cfg.Content.AudioDir,
		Attachments: cfg.Content.AttachmentsDir,
		Diagnostics: cfg.Content.DiagnosticsDir,
	}
	svc := vox.NewVoxService(build, roots, prefs, st, fsmgr, rem, creds,
		snapshot.NewBuilder(st, clock), vlog, clock)

	return &VoxApp{
		cfg:       cfg,
		prefs:     prefs,
		store:     st,
		fsmgr:     fsmgr,
		remote:    rem,
		creds:     creds,
		service:   svc,
		op:        op,
		logFile:   logFile,
		installID: installID,
	}, nil
}

// ensureInstallID reads the installation ID preference, minting and
// storing a fresh one on first run.
func ensureInstallID(prefs vox.PreferenceStore, ids vox.IDGenerator) (string, error) {
	id, ok, err := prefs.Get(installIDKey)
	if err != nil {
		return "", fmt.Errorf("reading install id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = ids.New()
	if err := prefs.Set(installIDKey, id); err != nil {
		return "", fmt.Errorf("writing install id: %w", err)
	}
	return id, nil
}

// InstallID returns this installation's stable identifier.
func (a *VoxApp) InstallID() string { return a.installID }

// persistOperation writes the operation record as an in-flight job.
// This should only be called by commands that change something.
func (a *VoxApp) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	if err := a.store.CreateJob(a.op.Job()); err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op.persisted = true
	return nil
}

// fail marks the operation record failed and passes the error through.
func (a *VoxApp) fail(err error) error {
	a.op.State = opStateFailed
	return err
}

// Backup packages all application state into an archive, locally or on
// the remote backend, applying the configured retention policy afterward.
func (a *VoxApp) Backup(ctx context.Context, opts vox.BackupOptions, toRemote bool) (*vox.PackResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	var res *vox.PackResult
	var err error
	if toRemote {
		res, err = a.service.BackupToRemote(ctx, opts, a.cfg.Backup.FolderName, a.cfg.Backup.Keep)
	} else {
		res, err = a.service.BackupToLocal(ctx, opts, a.cfg.Backup.LocalDir, a.cfg.Backup.Keep)
	}
	if err != nil {
		return nil, a.fail(err)
	}
	return res, nil
}

// RestoreFromFile replays a local archive file into the live stores,
// fully overwriting their state.
func (a *VoxApp) RestoreFromFile(ctx context.Context, rawPath string) (*vox.RestoreResult, error) {
	a.op.Parameters = rawPath
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	p, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, a.fail(fmt.Errorf("resolving path: %w", err))
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, a.fail(fmt.Errorf("opening archive: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, a.fail(fmt.Errorf("stat archive: %w", err))
	}

	res, err := a.service.Restore(ctx, f, info.Size())
	if err != nil {
		return nil, a.fail(err)
	}
	return res, nil
}

// RestoreFromRemote fetches the latest backup artifact from the remote
// folder and replays it. Returns the artifact name alongside the result.
func (a *VoxApp) RestoreFromRemote(ctx context.Context) (string, *vox.RestoreResult, error) {
	if err := a.persistOperation(); err != nil {
		return "", nil, err
	}

	name, data, err := a.service.FetchLatestRemote(ctx, a.cfg.Backup.FolderName)
	if err != nil {
		return "", nil, a.fail(err)
	}
	a.op.Parameters = name

	res, err := a.service.Restore(ctx, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return name, nil, a.fail(err)
	}
	return name, res, nil
}

// ScanBook reconciles a book's chapters against its remote folder and
// persists any chapter updates the scan produced. folderID overrides the
// book's stored root folder when non-empty.
func (a *VoxApp) ScanBook(ctx context.Context, bookID, folderID string) (*vox.ScanResult, error) {
	a.op.Parameters = bookID
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	book, err := a.findBook(bookID)
	if err != nil {
		return nil, a.fail(err)
	}
	if folderID == "" {
		folderID = book.RootFolderID
	}
	if folderID == "" {
		return nil, a.fail(fmt.Errorf("book %s has no remote folder; run `talevox folders init %s` first", bookID, bookID))
	}

	chapters, err := a.bookChapters(bookID)
	if err != nil {
		return nil, a.fail(err)
	}

	res, err := a.service.Scan(ctx, folderID, chapters)
	if err != nil {
		return nil, a.fail(err)
	}

	if len(res.UpdatedChapters) > 0 {
		if err := a.store.UpsertChapters(res.UpdatedChapters); err != nil {
			return nil, a.fail(fmt.Errorf("persisting scan updates: %w", err))
		}
	}
	return res, nil
}

// InitBookFolders establishes the remote folder layout and manifests for
// a book, persisting the learned root folder ID on the book record.
func (a *VoxApp) InitBookFolders(ctx context.Context, bookID string) (*vox.BookFolders, error) {
	a.op.Parameters = bookID
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	book, err := a.findBook(bookID)
	if err != nil {
		return nil, a.fail(err)
	}
	chapters, err := a.bookChapters(bookID)
	if err != nil {
		return nil, a.fail(err)
	}

	folders, err := a.service.EnsureBookFolders(ctx, "", book, chapters)
	if err != nil {
		return nil, a.fail(err)
	}

	if book.RootFolderID != folders.RootID {
		book.RootFolderID = folders.RootID
		if err := a.store.UpsertBooks([]model.Book{*book}); err != nil {
			return nil, a.fail(fmt.Errorf("persisting root folder: %w", err))
		}
	}
	return folders, nil
}

// PruneBackups removes old backup artifacts beyond keep at the local or
// remote destination. keep <= 0 means the configured retention count.
func (a *VoxApp) PruneBackups(ctx context.Context, toRemote bool, keep int) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	if keep <= 0 {
		keep = a.cfg.Backup.Keep
	}

	if toRemote {
		if a.remote == nil {
			return a.fail(errors.New("no remote store configured"))
		}
		folderID, err := a.remote.EnsureFolder(ctx, "", a.cfg.Backup.FolderName)
		if err != nil {
			return a.fail(fmt.Errorf("resolving backup folder: %w", err))
		}
		if err := a.service.PruneRemote(ctx, folderID, keep); err != nil {
			return a.fail(err)
		}
		return nil
	}

	if err := a.service.PruneLocal(a.cfg.Backup.LocalDir, keep); err != nil {
		return a.fail(err)
	}
	return nil
}

// BackupArtifact is one row of a backup listing.
type BackupArtifact struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// ListBackups returns the backup artifacts at the local or remote
// destination, newest first.
func (a *VoxApp) ListBackups(ctx context.Context, fromRemote bool) ([]BackupArtifact, error) {
	if fromRemote {
		return a.listRemoteBackups(ctx)
	}
	return a.listLocalBackups()
}

func (a *VoxApp) listLocalBackups() ([]BackupArtifact, error) {
	if a.fsmgr == nil {
		return nil, errors.New("local backups require a native filesystem")
	}
	entries, err := a.fsmgr.List(a.cfg.Backup.LocalDir)
	if err != nil {
		// No backup directory yet means no backups.
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", a.cfg.Backup.LocalDir, err)
	}

	var out []BackupArtifact
	for _, e := range entries {
		if e.IsDir() || !vox.IsArtifactName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupArtifact{Name: e.Name(), Size: info.Size(), ModifiedAt: info.ModTime()})
	}
	sortArtifacts(out)
	return out, nil
}

func (a *VoxApp) listRemoteBackups(ctx context.Context) ([]BackupArtifact, error) {
	if a.remote == nil {
		return nil, errors.New("no remote store configured")
	}
	folderID, err := a.remote.EnsureFolder(ctx, "", a.cfg.Backup.FolderName)
	if err != nil {
		return nil, fmt.Errorf("resolving backup folder: %w", err)
	}
	listing, err := a.remote.List(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("listing backup folder: %w", err)
	}

	var out []BackupArtifact
	for _, f := range listing {
		if f.IsFolder || !vox.IsArtifactName(f.Name) {
			continue
		}
		out = append(out, BackupArtifact{Name: f.Name, Size: f.Size, ModifiedAt: f.ModifiedAt})
	}
	sortArtifacts(out)
	return out, nil
}

func sortArtifacts(list []BackupArtifact) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ModifiedAt.Equal(list[j].ModifiedAt) {
			return list[i].ModifiedAt.After(list[j].ModifiedAt)
		}
		return list[i].Name > list[j].Name
	})
}

// History returns the most recent job records, newest first. This covers
// both CLI operation records and driver jobs restored from archives.
func (a *VoxApp) History(limit int) ([]*model.Job, error) {
	jobs, err := a.store.ListJobs()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Diagnostic is one doctor check result.
type Diagnostic struct {
	Name   string
	OK     bool
	Detail string
}

// Doctor inspects the local environment: store reachability and schema
// status, preference access, filesystem availability, and the remote
// credential. Problems are reported as failed checks, never as errors.
func (a *VoxApp) Doctor(ctx context.Context) []Diagnostic {
	var checks []Diagnostic

	books, berr := a.store.ListBooks()
	chapters, cerr := a.store.ListChapters()
	switch {
	case berr != nil:
		checks = append(checks, Diagnostic{Name: "store", Detail: berr.Error()})
	case cerr != nil:
		checks = append(checks, Diagnostic{Name: "store", Detail: cerr.Error()})
	default:
		checks = append(checks, Diagnostic{
			Name: "store", OK: true,
			Detail: fmt.Sprintf("%d books, %d chapters", len(books), len(chapters)),
		})
	}

	if s, ok := a.store.(*store.SQLiteStore); ok {
		if err := migrations.CheckDBMigrationStatus(s.DB()); err != nil {
			checks = append(checks, Diagnostic{Name: "schema", Detail: err.Error()})
		} else {
			checks = append(checks, Diagnostic{Name: "schema", OK: true, Detail: "up to date"})
		}
	}

	keys, err := a.prefs.Keys()
	if err != nil {
		checks = append(checks, Diagnostic{Name: "preferences", Detail: err.Error()})
	} else {
		checks = append(checks, Diagnostic{
			Name: "preferences", OK: true,
			Detail: fmt.Sprintf("%d keys", len(keys)),
		})
	}

	if a.fsmgr == nil {
		checks = append(checks, Diagnostic{Name: "filesystem", OK: true, Detail: "none (web platform)"})
	} else {
		checks = append(checks, Diagnostic{Name: "filesystem", OK: true, Detail: "native"})
	}

	switch {
	case a.remote == nil:
		checks = append(checks, Diagnostic{Name: "remote", OK: true, Detail: "not configured"})
	case a.creds == nil:
		checks = append(checks, Diagnostic{
			Name:   "remote",
			Detail: fmt.Sprintf("%s configured but no credential source", a.remote.Name()),
		})
	default:
		if _, err := a.creds.Token(ctx); err != nil {
			checks = append(checks, Diagnostic{Name: "remote", Detail: fmt.Sprintf("%s: %v", a.remote.Name(), err)})
		} else {
			checks = append(checks, Diagnostic{Name: "remote", OK: true, Detail: a.remote.Name()})
		}
	}

	return checks
}

// findBook resolves a book record by ID.
func (a *VoxApp) findBook(bookID string) (*model.Book, error) {
	books, err := a.store.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	for _, b := range books {
		if b.ID == bookID {
			return b, nil
		}
	}
	return nil, fmt.Errorf("book %s not found", bookID)
}

// bookChapters returns a book's chapters in reading order.
func (a *VoxApp) bookChapters(bookID string) ([]*model.Chapter, error) {
	all, err := a.store.ListChapters()
	if err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}
	var out []*model.Chapter
	for _, ch := range all {
		if ch.BookID == bookID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Idx < out[j].Idx })
	return out, nil
}

// Close finalizes the operation record and closes all resources.
// For persisted operations the in-flight job record is replaced with the
// final state; a restore that wiped the job table gets it back here.
func (a *VoxApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if a.op.State == opStateRunning {
			a.op.State = opStateDone
		}
		if err := a.store.CreateJob(a.op.Job()); err != nil {
			firstErr = fmt.Errorf("finishing operation record: %w", err)
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
