package media

import (
	"strconv"
	"strings"

	"github.com/maauso/aaxsplit/internal/command"
	"github.com/maauso/aaxsplit/internal/probe"
)

// TranscodeRequest describes one whole-book transcode.
type TranscodeRequest struct {
	Secret string
	Input  string
	Output string
	// Format is the output format name.
	Format string
	Mono   bool
	// Overwrite replaces an existing output instead of refusing to write.
	Overwrite bool
	Meta      *probe.Result
}

// forwardedTags lists container tags copied onto the transcoded file, in order.
var forwardedTags = []string{"title", "artist", "album_artist", "album", "date", "genre", "copyright"}

// BuildTranscode returns the ffmpeg invocation that decrypts and encodes
// req.Input into req.Output.
func BuildTranscode(ffmpegPath string, req TranscodeRequest) (command.Invocation, error) {
	format, err := Lookup(req.Format)
	if err != nil {
		return command.Invocation{}, err
	}

	channels := "2"
	bitRate := req.Meta.Format.BitRate
	if req.Mono {
		channels = "1"
		bitRate = MonoBitRate(bitRate)
	}

	args := []string{
		"-loglevel", "error",
		"-stats",
		"-activation_bytes", req.Secret,
		"-n",
		"-i", req.Input,
		"-vn",
		"-codec:a", format.Codec,
	}
	if bitRate != "" {
		args = append(args, "-ab", bitRate)
	}
	args = append(args, "-ac", channels, "-map_metadata", "-1")
	args = append(args, bookTags(req.Meta)...)
	args = append(args, "-metadata", "track=1/1", req.Output)

	return command.Invocation{Path: ffmpegPath, Args: args}, nil
}

// bookTags returns -metadata pairs for every container tag that is present.
// The album falls back to the container title.
func bookTags(meta *probe.Result) []string {
	var args []string
	for _, key := range forwardedTags {
		value := meta.Format.Tag(key)
		if key == "album" && value == "" {
			value = meta.Format.Tag("title")
		}
		if value == "" {
			continue
		}
		args = append(args, "-metadata", key+"="+value)
	}
	return args
}

// MonoBitRate halves a bit rate and renders it as a decimal ("128000"
// becomes "64000.0"). An empty or non-numeric rate yields "".
func MonoBitRate(bitRate string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(bitRate), 64)
	if err != nil || v <= 0 {
		return ""
	}
	s := strconv.FormatFloat(v/2, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
