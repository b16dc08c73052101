package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/maauso/aaxsplit/internal/command"
)

// Mp3spltSplitter implements Splitter with mp3splt, cutting MP3 frames
// without re-encoding. Output files are named "Chapter N.mp3".
type Mp3spltSplitter struct {
	mp3spltPath string
	runner      command.Runner
}

// NewMp3spltSplitter creates a new Mp3spltSplitter.
// If mp3spltPath is empty, it defaults to "mp3splt" (found in PATH).
func NewMp3spltSplitter(mp3spltPath string, runner command.Runner) *Mp3spltSplitter {
	if mp3spltPath == "" {
		mp3spltPath = "mp3splt"
	}
	return &Mp3spltSplitter{mp3spltPath: mp3spltPath, runner: runner}
}

// tagEscaper replaces the -g list delimiters, which mp3splt has no escape
// for. Arguments bypass the shell, so quotes pass through unchanged.
var tagEscaper = strings.NewReplacer(",", " ", "[", " ", "]", " ")

// Split implements Splitter.
func (s *Mp3spltSplitter) Split(ctx context.Context, req Request) (Result, error) {
	cuts := Boundaries(BinarySplit, req.Meta)
	res := Result{Strategy: BinarySplit, Chapters: len(req.Meta.Chapters)}
	if cuts.Empty() {
		return res, nil
	}

	if err := s.runner.Run(ctx, s.Invocation(req, cuts.Points)); err != nil {
		return res, fmt.Errorf("%w: %w", ErrSplitFailed, err)
	}
	return res, nil
}

// Invocation builds the mp3splt command for req and the encoded points.
func (s *Mp3spltSplitter) Invocation(req Request, points []string) command.Invocation {
	tags := req.Meta.Format
	artist := valueOr(tags.Tag("artist"), "Unknown")
	title := valueOr(tags.Tag("title"), "Unknown")

	tagList := fmt.Sprintf("r%%[@N=1,@a=%s,@b=%s,@y=%s,@t=Chapter @n,@g=183]",
		tagEscaper.Replace(artist),
		tagEscaper.Replace(title),
		tagEscaper.Replace(tags.Tag("date")),
	)

	args := []string{
		"-T", "12",
		"-o", "Chapter @n",
		"-g", tagList,
		"-d", req.DestDir,
		req.Source,
	}
	return command.Invocation{Path: s.mp3spltPath, Args: append(args, points...)}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var _ Splitter = (*Mp3spltSplitter)(nil)
