package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maauso/aaxsplit/internal/command"
	"github.com/maauso/aaxsplit/internal/naming"
)

// FFmpegSplitter implements Splitter by re-running ffmpeg once per chapter
// with an input seek and a duration limit.
type FFmpegSplitter struct {
	ffmpegPath string
	runner     command.Runner
	reporters  command.ReporterFactory
}

// NewFFmpegSplitter creates a new FFmpegSplitter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
// reporters may be nil to disable the chapter counter.
func NewFFmpegSplitter(ffmpegPath string, runner command.Runner, reporters command.ReporterFactory) *FFmpegSplitter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegSplitter{ffmpegPath: ffmpegPath, runner: runner, reporters: reporters}
}

// Split implements Splitter. Every chapter is attempted; failures are
// joined and reported together.
func (s *FFmpegSplitter) Split(ctx context.Context, req Request) (Result, error) {
	cuts := Boundaries(StreamCopy, req.Meta)
	res := Result{Strategy: StreamCopy, Chapters: len(cuts.Segments)}
	if cuts.Empty() {
		return res, nil
	}

	var reporter command.Reporter
	if s.reporters != nil && !command.IsDryRun(s.runner) {
		reporter = s.reporters("Splitting chapters")
	}

	embedCover := req.Format.EmbedsCover() && fileExists(req.Cover)
	total := len(cuts.Segments)

	var errs []error
	for _, seg := range cuts.Segments {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		output := filepath.Join(req.DestDir, naming.ChapterFileName(seg.Index, seg.Title, req.Format.Extension))
		inv := s.chapterInvocation(req, seg, total, output, embedCover)

		if err := s.runner.Run(ctx, inv); err != nil {
			errs = append(errs, fmt.Errorf("chapter %d (%s): %w", seg.Index, seg.Title, err))
		} else {
			res.Files = append(res.Files, output)
		}

		if reporter != nil {
			reporter.Set(seg.Index * 100 / total)
		}
	}
	if reporter != nil {
		reporter.Finish()
	}

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", ErrSplitFailed, errors.Join(errs...))
	}
	return res, nil
}

// chapterInvocation builds the ffmpeg command for one chapter. Seek and
// duration are input options so the cover input is not affected.
func (s *FFmpegSplitter) chapterInvocation(req Request, seg Segment, total int, output string, embedCover bool) command.Invocation {
	overwrite := "-n"
	if req.Overwrite {
		overwrite = "-y"
	}

	args := []string{
		"-nostdin",
		"-loglevel", "error",
		overwrite,
		"-ss", formatSeconds(seg.Start),
		"-t", formatSeconds(seg.Duration),
		"-i", req.Source,
	}
	if embedCover {
		args = append(args,
			"-i", req.Cover,
			"-map", "0:a",
			"-map", "1:v",
			"-c:v", "copy",
			"-disposition:v:0", "attached_pic",
		)
	}
	args = append(args, "-c:a", req.Format.Codec, "-map_metadata", "-1")

	// The full tag set is always written; absent source tags become empty values.
	tags := req.Meta.Format
	for _, kv := range [][2]string{
		{"title", seg.Title},
		{"artist", tags.Tag("artist")},
		{"album", tags.Tag("title")},
		{"album_artist", tags.Tag("album_artist")},
		{"date", tags.Tag("date")},
		{"genre", tags.Tag("genre")},
	} {
		args = append(args, "-metadata", kv[0]+"="+kv[1])
	}
	args = append(args, "-metadata", fmt.Sprintf("track=%d/%d", seg.Index, total), output)

	return command.Invocation{Path: s.ffmpegPath, Args: args}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Verify interface implementation at compile time.
var _ Splitter = (*FFmpegSplitter)(nil)
