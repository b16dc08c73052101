// Package probe reads container, chapter and program metadata from
// encrypted audiobooks with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/maauso/aaxsplit/internal/command"
)

// Static errors for probing.
var (
	// ErrNotFound is returned when the input file does not exist.
	ErrNotFound = errors.New("probe: input file not found")
	// ErrProbe is returned when ffprobe fails or its output cannot be parsed.
	ErrProbe = errors.New("probe: metadata probe failed")
)

var (
	editionSuffix = regexp.MustCompile(`\s*\((Una|A)bridged\)`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Prober extracts metadata from an input file.
type Prober interface {
	Probe(ctx context.Context, secret, path string) (*Result, error)
}

// FFprobe implements Prober using the ffprobe CLI.
type FFprobe struct {
	ffprobePath string
	runner      command.Runner
}

// NewFFprobe creates a new FFprobe.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobe(ffprobePath string, runner command.Runner) *FFprobe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobe{ffprobePath: ffprobePath, runner: runner}
}

// Invocation builds the ffprobe command for path.
func (p *FFprobe) Invocation(secret, path string) command.Invocation {
	return command.Invocation{
		Path: p.ffprobePath,
		Args: []string{
			"-v", "error",
			"-activation_bytes", secret,
			"-i", path,
			"-of", "json",
			"-show_chapters",
			"-show_programs",
			"-show_format",
		},
	}
}

// Probe implements Prober.
func (p *FFprobe) Probe(ctx context.Context, secret, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", ErrProbe, path, err)
	}

	out, err := p.runner.Output(ctx, p.Invocation(secret, path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbe, err)
	}

	return Parse(Normalize(out))
}

// Normalize strips the "(Abridged)" and "(Unabridged)" edition markers and
// collapses whitespace runs to a single space.
func Normalize(raw []byte) []byte {
	out := editionSuffix.ReplaceAll(raw, nil)
	return whitespaceRun.ReplaceAll(out, []byte(" "))
}

// document mirrors the subset of the ffprobe JSON output that is interpreted.
type document struct {
	Format struct {
		Filename string            `json:"filename"`
		Duration string            `json:"duration"`
		BitRate  string            `json:"bit_rate"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Chapters []struct {
		ID        int64             `json:"id"`
		StartTime string            `json:"start_time"`
		EndTime   string            `json:"end_time"`
		Tags      map[string]string `json:"tags"`
	} `json:"chapters"`
	Programs json.RawMessage `json:"programs"`
}

// Parse decodes normalized ffprobe JSON into a Result.
func Parse(data []byte) (*Result, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrProbe, err)
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrProbe, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrProbe)
	}

	res := &Result{
		Format: Format{
			Filename: doc.Format.Filename,
			Duration: parseSeconds(doc.Format.Duration),
			BitRate:  strings.TrimSpace(doc.Format.BitRate),
			Tags:     doc.Format.Tags,
		},
		Programs: doc.Programs,
		raw:      raw,
	}

	for i, ch := range doc.Chapters {
		start, err := strconv.ParseFloat(strings.TrimSpace(ch.StartTime), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter %d start_time %q", ErrProbe, i+1, ch.StartTime)
		}
		end, err := strconv.ParseFloat(strings.TrimSpace(ch.EndTime), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter %d end_time %q", ErrProbe, i+1, ch.EndTime)
		}
		res.Chapters = append(res.Chapters, Chapter{
			ID:    ch.ID,
			Start: start,
			End:   end,
			Tags:  ch.Tags,
		})
	}

	return res, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

var _ Prober = (*FFprobe)(nil)
