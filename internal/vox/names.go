package vox

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Mangusthvile/talevox/internal/model"
)

// Product is the artifact name prefix for backup archives.
const Product = "talevox"

// pointerName is the fixed filename of the remote pointer object.
const pointerName = Product + "-backup-pointer.json"

// artifactTimeLayout is the timestamp embedded in artifact names.
const artifactTimeLayout = "2006-01-02-150405"

// artifactPattern gates retention: only names produced by ArtifactName are
// ever considered backup artifacts, so unrelated files are never pruned.
var artifactPattern = regexp.MustCompile(`^` + Product + `-backup-\d{4}-\d{2}-\d{2}-\d{6}\.zip$`)

// ArtifactName returns the archive filename for a backup created at t.
func ArtifactName(t time.Time) string {
	return fmt.Sprintf("%s-backup-%s.zip", Product, t.Format(artifactTimeLayout))
}

// IsArtifactName reports whether name follows the backup artifact naming
// convention.
func IsArtifactName(name string) bool {
	return artifactPattern.MatchString(name)
}

// Folder manifest filenames, stored under the meta subfolder of a book's
// remote root.
const (
	bookManifestName      = "book.json"
	inventoryManifestName = "inventory.json"
)

// Content classes for reconciliation. Matching by heuristic index only
// considers remote files whose extension fits the expected class.
var (
	textExts  = map[string]bool{".txt": true, ".md": true}
	audioExts = map[string]bool{".mp3": true, ".wav": true, ".m4a": true}
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}
)

func isTextName(name string) bool {
	return textExts[strings.ToLower(path.Ext(name))]
}

func isAudioName(name string) bool {
	return audioExts[strings.ToLower(path.Ext(name))]
}

// isHousekeepingName reports whether a remote filename is layout or cover
// material. Such files are expected in a book folder and are never
// classified as stray.
func isHousekeepingName(name string) bool {
	lower := strings.ToLower(name)
	if lower == bookManifestName || lower == inventoryManifestName || lower == pointerName {
		return true
	}
	ext := path.Ext(lower)
	if imageExts[ext] {
		return true
	}
	return strings.TrimSuffix(lower, ext) == "cover"
}

var (
	chapterIndexRe = regexp.MustCompile(`(?i)\bchapter[ _-]*(\d{1,4})\b`)
	leadingIndexRe = regexp.MustCompile(`^\s*(\d{1,4})\b`)
)

// inferIndexFromName extracts a chapter ordinal from a remote filename.
// An explicit chapter word ("Chapter 12.mp3") wins over leading digits
// ("003 - Title.txt"). Returns false when no ordinal is present.
func inferIndexFromName(name string) (int, bool) {
	base := strings.TrimSuffix(name, path.Ext(name))
	if m := chapterIndexRe.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	if m := leadingIndexRe.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// nameSanitizer strips characters that are unsafe in remote filenames.
var nameSanitizer = regexp.MustCompile(`[\\/:*?"<>|]+`)

func sanitizeName(s string) string {
	s = nameSanitizer.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// chapterBaseName builds the canonical filename stem for a chapter from
// its index and title. Used both when uploading and when matching by
// constructed name.
func chapterBaseName(ch *model.Chapter) string {
	title := sanitizeName(ch.Title)
	if title == "" {
		title = "Untitled"
	}
	return fmt.Sprintf("%03d - %s", ch.Idx, title)
}

// chapterTextName returns the chapter's remembered text filename, or the
// constructed one when nothing is remembered.
func chapterTextName(ch *model.Chapter) string {
	if ch.TextName != "" {
		return ch.TextName
	}
	return chapterBaseName(ch) + ".txt"
}

// chapterAudioName returns the chapter's remembered audio filename, or the
// constructed one when nothing is remembered.
func chapterAudioName(ch *model.Chapter) string {
	if ch.AudioName != "" {
		return ch.AudioName
	}
	return chapterBaseName(ch) + ".mp3"
}
