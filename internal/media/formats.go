package media

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupportedFormat is returned when a format name is not in the table.
var ErrUnsupportedFormat = errors.New("media: unsupported output format")

// Format describes how an output format is encoded and stored.
type Format struct {
	// Name is the user-facing format selector.
	Name string
	// Codec is the ffmpeg audio encoder, or "copy" to keep the source stream.
	Codec string
	// Extension is the output file extension without the dot.
	Extension string
	// Container is the container family, which selects the split strategy.
	Container string
}

var formats = map[string]Format{
	"mp3":  {Name: "mp3", Codec: "libmp3lame", Extension: "mp3", Container: "mp3"},
	"aac":  {Name: "aac", Codec: "copy", Extension: "m4a", Container: "m4a"},
	"m4a":  {Name: "m4a", Codec: "copy", Extension: "m4a", Container: "m4a"},
	"m4b":  {Name: "m4b", Codec: "copy", Extension: "m4a", Container: "m4b"},
	"flac": {Name: "flac", Codec: "flac", Extension: "flac", Container: "flac"},
	"opus": {Name: "opus", Codec: "libopus", Extension: "opus", Container: "opus"},
}

// Lookup returns the Format registered under name.
func Lookup(name string) (Format, error) {
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// Names returns all supported format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EmbedsCover reports whether chapter files of this format carry the
// cover image as an attached picture.
func (f Format) EmbedsCover() bool {
	switch f.Name {
	case "aac", "m4a", "m4b":
		return true
	default:
		return false
	}
}

// BinarySplit reports whether chapters are cut directly from the
// compressed stream instead of being re-extracted with ffmpeg.
func (f Format) BinarySplit() bool {
	return f.Container == "mp3"
}
