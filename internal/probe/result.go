package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the probed structure of one input file. It is never modified
// after Parse returns.
type Result struct {
	Format   Format
	Chapters []Chapter
	// Programs is passed through without interpretation.
	Programs json.RawMessage

	raw map[string]any
}

// Format holds container-level metadata.
type Format struct {
	Filename string
	// Duration is the container duration in seconds, 0 when unknown.
	Duration float64
	// BitRate is the source bit rate exactly as reported, empty when unknown.
	BitRate string
	Tags    map[string]string
}

// Tag returns the trimmed value of a container tag. Keys are matched
// case-insensitively.
func (f Format) Tag(name string) string {
	return lookup(f.Tags, name)
}

// Chapter is one chapter as reported by ffprobe.
type Chapter struct {
	ID    int64
	Start float64
	End   float64
	Tags  map[string]string
}

// Title returns the chapter title tag, or "Chapter n" when absent.
func (c Chapter) Title(n int) string {
	if t := lookup(c.Tags, "title"); t != "" {
		return t
	}
	return fmt.Sprintf("Chapter %d", n)
}

// Duration returns the chapter length in seconds.
func (c Chapter) Duration() float64 {
	return c.End - c.Start
}

// Snapshot serializes the normalized document with sorted keys and
// four-space indentation.
func (r *Result) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r.raw); err != nil {
		return nil, fmt.Errorf("encode metadata snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func lookup(tags map[string]string, name string) string {
	if v, ok := tags[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range tags {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
