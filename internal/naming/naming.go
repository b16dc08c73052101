// Package naming derives filesystem-safe names and the destination layout
// for converted audiobooks.
package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrMissingTags is returned when the artist or title tag needed to derive
// the destination directory is absent.
var ErrMissingTags = errors.New("naming: required artist/title tags missing")

var (
	unsafeChars     = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	underscoreRun   = regexp.MustCompile(`_+`)
	chapterFileName = regexp.MustCompile(`^\d{2,} - .+\.\w+$`)
	splitFileName   = regexp.MustCompile(`^Chapter \d+`)
)

// Sanitize maps s onto the alphabet [a-zA-Z0-9._-]. Accented characters
// are reduced to their ASCII base, quotes are dropped, every other byte
// becomes an underscore and underscore runs collapse. The result never
// contains a path separator and is never "", "." or "..".
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if r > unicode.MaxASCII || r == '\'' || r == '"' {
			continue
		}
		b.WriteRune(r)
	}

	out := unsafeChars.ReplaceAllString(b.String(), "_")
	out = underscoreRun.ReplaceAllString(out, "_")

	if strings.Trim(out, ".") == "" {
		return "_"
	}
	return out
}

// OutputRoot returns the directory all books are written under. Mono
// output goes to a sibling tree suffixed with "-mono".
func OutputRoot(outdir string, mono bool) string {
	outdir = filepath.Clean(outdir)
	if mono {
		return outdir + "-mono"
	}
	return outdir
}

// DestDir returns <root>/<artist>/<title> with both components sanitized.
// Slashes in the title become dashes before sanitizing.
func DestDir(root, artist, title string) (string, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return "", fmt.Errorf("%w (artist=%q, title=%q)", ErrMissingTags, artist, title)
	}
	return filepath.Join(root, Sanitize(artist), Sanitize(strings.ReplaceAll(title, "/", "-"))), nil
}

// ChapterFileName returns "NN - <title>.<ext>" for the 1-based index.
// Underscores left by sanitizing are shown as spaces.
func ChapterFileName(index int, title, ext string) string {
	safe := strings.ReplaceAll(Sanitize(title), "_", " ")
	return fmt.Sprintf("%02d - %s.%s", index, safe, ext)
}

// IntermediateName returns the whole-book file name for input with the
// extension replaced by ext.
func IntermediateName(input, ext string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + ext
}

// AlreadyProcessed reports whether dir already holds chapter outputs from
// either splitting strategy. A missing directory is not processed.
func AlreadyProcessed(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read destination %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsChapterFile(e.Name()) {
			return true, nil
		}
	}
	return false, nil
}

// IsChapterFile reports whether name matches a chapter output pattern.
func IsChapterFile(name string) bool {
	return chapterFileName.MatchString(name) || splitFileName.MatchString(name)
}
