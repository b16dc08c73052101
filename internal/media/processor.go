// Package media builds and runs the ffmpeg invocations that decrypt,
// transcode and extract cover art from audiobooks.
package media

import (
	"context"

	"github.com/maauso/aaxsplit/internal/command"
)

// Processor defines the whole-book media operations.
type Processor interface {
	// Transcode decrypts req.Input and encodes it into req.Output using the
	// codec of req.Format. The returned Outcome tells whether progress was
	// tracked for the run.
	Transcode(ctx context.Context, req TranscodeRequest) (command.Outcome, error)

	// ExtractCover writes the embedded cover image to req.Output.
	// Errors wrap ErrCoverExtraction.
	ExtractCover(ctx context.Context, req CoverRequest) error
}
