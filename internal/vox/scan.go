package vox

import (
	"context"
	"errors"

	"github.com/Mangusthvile/talevox/internal/model"
)

// ScanResult is the outcome of one reconciliation pass. Recomputed on
// every scan, never persisted directly; callers persist UpdatedChapters.
type ScanResult struct {
	MissingTextIDs  []string
	MissingAudioIDs []string
	StrayFiles      []RemoteFile
	Duplicates      []RemoteFile
	TotalChecked    int
	UpdatedChapters []model.Chapter
}

// Scan fetches one listing of a remote folder and reconciles it against
// the given chapters. For each chapter, text and audio are matched
// independently in strict priority order: stored remote ID, then
// remembered or constructed name, then heuristic index inference. A
// matched file is claimed and never handed to a later chapter.
//
// A chapter lands in UpdatedChapters only when the match changed its
// record, so repeated scans against an unchanged remote are no-ops.
// Availability flags are only ever raised here; an unmatched chapter goes
// into the missing lists without being downgraded, so a partial or stale
// listing cannot flicker previously confirmed state.
func (s *VoxService) Scan(ctx context.Context, folderID string, chapters []*model.Chapter) (*ScanResult, error) {
	if s.remote == nil {
		return nil, errors.New("no remote store configured")
	}
	if _, err := s.requireToken(ctx); err != nil {
		return nil, err
	}

	listing, err := s.remote.List(ctx, folderID)
	if err != nil {
		// Not an auth failure, so likely transient: reconcile against an
		// empty view. No chapter state is downgraded, and the next scan
		// recovers silently.
		s.logger.Warn("remote listing failed, scanning against empty view", "folder", folderID, "error", err)
		listing = nil
	}

	m := newMatcher(listing)
	res := &ScanResult{}

	for _, ch := range chapters {
		updated := *ch
		changed := false

		if f := m.match(ch, ch.RemoteTextID, ch.TextName, ".txt", isTextName); f != nil {
			m.claimText(f, ch.Idx)
			if updated.RemoteTextID != f.ID {
				updated.RemoteTextID = f.ID
				changed = true
			}
			if updated.TextName != f.Name {
				updated.TextName = f.Name
				changed = true
			}
			if !updated.TextReady {
				updated.TextReady = true
				changed = true
			}
		} else {
			res.MissingTextIDs = append(res.MissingTextIDs, ch.ID)
		}

		if f := m.match(ch, ch.RemoteAudioID, ch.AudioName, ".mp3", isAudioName); f != nil {
			m.claimAudio(f, ch.Idx)
			if updated.RemoteAudioID != f.ID {
				updated.RemoteAudioID = f.ID
				changed = true
			}
			if updated.AudioName != f.Name {
				updated.AudioName = f.Name
				changed = true
			}
			if !updated.AudioReady {
				updated.AudioReady = true
				changed = true
			}
		} else {
			res.MissingAudioIDs = append(res.MissingAudioIDs, ch.ID)
		}

		if changed {
			res.UpdatedChapters = append(res.UpdatedChapters, updated)
		}
	}

	// Classify what no chapter claimed. Housekeeping files (cover art,
	// manifests, images) are expected and ignored; a file whose name or
	// inferred index collides with a claimed one is a duplicate; the rest
	// are stray.
	for i := range listing {
		f := &listing[i]
		if f.IsFolder {
			continue
		}
		res.TotalChecked++
		if m.claimedIDs[f.ID] {
			continue
		}
		if isHousekeepingName(f.Name) {
			continue
		}
		if m.claimedNames[f.Name] {
			res.Duplicates = append(res.Duplicates, *f)
			continue
		}
		if idx, ok := inferIndexFromName(f.Name); ok {
			if (isTextName(f.Name) && m.claimedTextIdx[idx]) || (isAudioName(f.Name) && m.claimedAudioIdx[idx]) {
				res.Duplicates = append(res.Duplicates, *f)
				continue
			}
		}
		res.StrayFiles = append(res.StrayFiles, *f)
	}

	s.logger.Info("scan complete", "folder", folderID,
		"checked", res.TotalChecked, "updated", len(res.UpdatedChapters),
		"stray", len(res.StrayFiles), "duplicates", len(res.Duplicates))
	return res, nil
}

// matcher holds one immutable listing and the claims made against it
// during a single scan.
type matcher struct {
	listing []RemoteFile
	byID    map[string]*RemoteFile
	byName  map[string]*RemoteFile

	claimedIDs      map[string]bool
	claimedNames    map[string]bool
	claimedTextIdx  map[int]bool
	claimedAudioIdx map[int]bool
}

func newMatcher(listing []RemoteFile) *matcher {
	m := &matcher{
		listing:         listing,
		byID:            make(map[string]*RemoteFile, len(listing)),
		byName:          make(map[string]*RemoteFile, len(listing)),
		claimedIDs:      make(map[string]bool),
		claimedNames:    make(map[string]bool),
		claimedTextIdx:  make(map[int]bool),
		claimedAudioIdx: make(map[int]bool),
	}
	for i := range listing {
		f := &listing[i]
		if f.IsFolder {
			continue
		}
		m.byID[f.ID] = f
		// First occurrence wins when the backend allows duplicate names.
		if _, ok := m.byName[f.Name]; !ok {
			m.byName[f.Name] = f
		}
	}
	return m
}

// match runs the three tiers for one chapter and one content class and
// stops at the first unclaimed hit.
func (m *matcher) match(ch *model.Chapter, storedID, storedName, ext string, classFits func(string) bool) *RemoteFile {
	if storedID != "" {
		if f := m.byID[storedID]; f != nil && !m.claimedIDs[f.ID] {
			return f
		}
	}

	for _, name := range []string{storedName, chapterBaseName(ch) + ext} {
		if name == "" {
			continue
		}
		if f := m.byName[name]; f != nil && !m.claimedIDs[f.ID] {
			return f
		}
	}

	for i := range m.listing {
		f := &m.listing[i]
		if f.IsFolder || m.claimedIDs[f.ID] || !classFits(f.Name) {
			continue
		}
		if idx, ok := inferIndexFromName(f.Name); ok && idx == ch.Idx {
			return f
		}
	}
	return nil
}

func (m *matcher) claimText(f *RemoteFile, idx int) {
	m.claimedIDs[f.ID] = true
	m.claimedNames[f.Name] = true
	m.claimedTextIdx[idx] = true
}

func (m *matcher) claimAudio(f *RemoteFile, idx int) {
	m.claimedIDs[f.ID] = true
	m.claimedNames[f.Name] = true
	m.claimedAudioIdx[idx] = true
}
