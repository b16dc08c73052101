// Package audio splits a transcoded audiobook into chapter files.
package audio

import (
	"context"
	"errors"

	"github.com/maauso/aaxsplit/internal/media"
	"github.com/maauso/aaxsplit/internal/probe"
)

// ErrSplitFailed is returned when one or more chapters could not be written.
var ErrSplitFailed = errors.New("audio: chapter split failed")

// Request describes splitting one book.
type Request struct {
	// Source is the transcoded whole-book file.
	Source string
	// DestDir receives the chapter files.
	DestDir string
	Format  media.Format
	Meta    *probe.Result
	// Cover is the extracted cover image, empty when none is available.
	Cover     string
	Overwrite bool
}

// Result summarizes a split.
type Result struct {
	Strategy Strategy
	// Chapters is the number of chapters attempted.
	Chapters int
	// Files lists the chapter files written. It is empty for strategies
	// where the splitting tool names its own outputs.
	Files []string
}

// Splitter defines the interface for cutting a book into chapters.
type Splitter interface {
	// Split writes one file per chapter of req.Meta into req.DestDir.
	// A book without chapters is a successful no-op.
	Split(ctx context.Context, req Request) (Result, error)
}

// ChapterSplitter dispatches to the binary splitter for formats that
// support it and to the stream-copy splitter otherwise.
type ChapterSplitter struct {
	streamCopy Splitter
	binary     Splitter
}

// NewChapterSplitter creates a ChapterSplitter.
func NewChapterSplitter(streamCopy, binary Splitter) *ChapterSplitter {
	return &ChapterSplitter{streamCopy: streamCopy, binary: binary}
}

// Split implements Splitter.
func (c *ChapterSplitter) Split(ctx context.Context, req Request) (Result, error) {
	strategy := StrategyFor(req.Format)
	if len(req.Meta.Chapters) == 0 {
		return Result{Strategy: strategy}, nil
	}
	if strategy == BinarySplit {
		return c.binary.Split(ctx, req)
	}
	return c.streamCopy.Split(ctx, req)
}

var _ Splitter = (*ChapterSplitter)(nil)
