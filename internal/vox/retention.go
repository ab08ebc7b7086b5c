package vox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// PruneLocal removes old backup artifacts in dir, keeping the keep most
// recently modified. keep is clamped to at least 1. Only names matching
// the artifact convention are candidates, so unrelated files survive.
// Removal failures for individual artifacts are logged and swallowed;
// retention is cleanup, not a correctness requirement.
func (s *VoxService) PruneLocal(dir string, keep int) error {
	if s.fsmgr == nil {
		return errors.New("local retention requires a native filesystem")
	}
	entries, err := s.fsmgr.List(dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}

	type artifact struct {
		name string
		path string
		mod  time.Time
	}
	var artifacts []artifact
	for _, e := range entries {
		if e.IsDir() || !IsArtifactName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact{
			name: e.Name(),
			path: filepath.Join(dir, e.Name()),
			mod:  info.ModTime(),
		})
	}

	n := clampKeep(keep)
	if len(artifacts) <= n {
		return nil
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].mod.Equal(artifacts[j].mod) {
			return artifacts[i].mod.After(artifacts[j].mod)
		}
		return artifacts[i].name > artifacts[j].name
	})
	for _, a := range artifacts[n:] {
		if err := s.fsmgr.Remove(a.path); err != nil {
			s.logger.Warn("removing old backup failed", "path", a.path, "error", err)
			continue
		}
		s.logger.Debug("old backup removed", "path", a.path)
	}
	return nil
}

// PruneRemote removes old backup artifacts in a remote folder, keeping the
// keep most recently modified. Same policy as PruneLocal; the pointer
// object never matches the artifact pattern and is never touched.
func (s *VoxService) PruneRemote(ctx context.Context, folderID string, keep int) error {
	if s.remote == nil {
		return errors.New("no remote store configured")
	}
	listing, err := s.remote.List(ctx, folderID)
	if err != nil {
		return fmt.Errorf("listing folder: %w", err)
	}

	var artifacts []RemoteFile
	for _, f := range listing {
		if f.IsFolder || !IsArtifactName(f.Name) {
			continue
		}
		artifacts = append(artifacts, f)
	}

	n := clampKeep(keep)
	if len(artifacts) <= n {
		return nil
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].ModifiedAt.Equal(artifacts[j].ModifiedAt) {
			return artifacts[i].ModifiedAt.After(artifacts[j].ModifiedAt)
		}
		return artifacts[i].Name > artifacts[j].Name
	})
	for _, f := range artifacts[n:] {
		if err := s.remote.Delete(ctx, f.ID); err != nil {
			s.logger.Warn("removing old backup failed", "name", f.Name, "error", err)
			continue
		}
		s.logger.Debug("old backup removed", "name", f.Name)
	}
	return nil
}

func clampKeep(keep int) int {
	if keep < 1 {
		return 1
	}
	return keep
}
