package audio

import (
	"fmt"
	"math"

	"github.com/maauso/aaxsplit/internal/media"
	"github.com/maauso/aaxsplit/internal/probe"
)

// Strategy selects how a transcoded book is cut into chapters.
type Strategy int

const (
	// StreamCopy re-runs ffmpeg once per chapter with a seek and a duration.
	StreamCopy Strategy = iota
	// BinarySplit cuts the compressed stream at explicit split points.
	BinarySplit
)

func (s Strategy) String() string {
	if s == BinarySplit {
		return "binary-split"
	}
	return "stream-copy"
}

// StrategyFor returns the strategy used for format.
func StrategyFor(format media.Format) Strategy {
	if format.BinarySplit() {
		return BinarySplit
	}
	return StreamCopy
}

// Segment is one chapter cut by seeking to Start and reading Duration seconds.
type Segment struct {
	// Index is the 1-based chapter ordinal.
	Index    int
	Title    string
	Start    float64
	Duration float64
}

// Cuts holds the chapter boundaries for one strategy. Only the field
// matching the strategy is populated.
type Cuts struct {
	Segments []Segment
	// Points are chapter starts followed by the end of the last chapter,
	// encoded with FormatSplitPoint.
	Points []string
}

// Empty reports whether there is nothing to split.
func (c Cuts) Empty() bool {
	return len(c.Segments) == 0 && len(c.Points) == 0
}

// Boundaries derives chapter boundaries from the probed chapters. A book
// without chapters yields empty Cuts.
func Boundaries(strategy Strategy, res *probe.Result) Cuts {
	chapters := res.Chapters
	if len(chapters) == 0 {
		return Cuts{}
	}

	if strategy == BinarySplit {
		points := make([]string, 0, len(chapters)+1)
		for _, ch := range chapters {
			points = append(points, FormatSplitPoint(ch.Start))
		}
		// The splitter cannot infer end of stream.
		points = append(points, FormatSplitPoint(chapters[len(chapters)-1].End))
		return Cuts{Points: points}
	}

	segments := make([]Segment, 0, len(chapters))
	for i, ch := range chapters {
		segments = append(segments, Segment{
			Index:    i + 1,
			Title:    ch.Title(i + 1),
			Start:    ch.Start,
			Duration: ch.Duration(),
		})
	}
	return Cuts{Segments: segments}
}

// FormatSplitPoint encodes seconds as minutes.SS.hh, the split point
// syntax understood by mp3splt. 125.5 becomes "2.05.50".
func FormatSplitPoint(seconds float64) string {
	hundredths := int64(math.Round(seconds * 100))
	if hundredths < 0 {
		hundredths = 0
	}
	minutes := hundredths / 6000
	secs := (hundredths % 6000) / 100
	frac := hundredths % 100
	return fmt.Sprintf("%d.%02d.%02d", minutes, secs, frac)
}
