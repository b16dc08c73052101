package media

import (
	"errors"

	"github.com/maauso/aaxsplit/internal/command"
)

// ErrCoverExtraction is returned when the embedded cover cannot be written.
var ErrCoverExtraction = errors.New("media: cover extraction failed")

// CoverFileName is the file the cover image is extracted to.
const CoverFileName = "cover.jpg"

// CoverRequest describes extracting the embedded cover image.
type CoverRequest struct {
	Secret    string
	Input     string
	Output    string
	Overwrite bool
}

// BuildCoverExtract returns the ffmpeg invocation copying the attached
// picture of req.Input to req.Output without re-encoding.
func BuildCoverExtract(ffmpegPath string, req CoverRequest) command.Invocation {
	return command.Invocation{
		Path: ffmpegPath,
		Args: []string{
			"-loglevel", "error",
			"-stats",
			"-activation_bytes", req.Secret,
			"-n",
			"-i", req.Input,
			"-an",
			"-codec:v", "copy",
			req.Output,
		},
	}
}
