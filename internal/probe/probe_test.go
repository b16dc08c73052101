package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/aaxsplit/internal/command"
)

const sampleOutput = `{
    "programs": [ ],
    "chapters": [
        {
            "id": 0,
            "time_base": "1/1000",
            "start_time": "0.000000",
            "end_time": "62.500000",
            "tags": { "title": "Opening  Credits" }
        },
        {
            "id": 1,
            "time_base": "1/1000",
            "start_time": "62.500000",
            "end_time": "125.500000",
            "tags": { }
        }
    ],
    "format": {
        "filename": "book.aax",
        "duration": "125.500000",
        "bit_rate": "128000",
        "tags": {
            "artist": "Jane Doe",
            "title": "The Book (Unabridged)",
            "Genre": "Fiction"
        }
    }
}`

type stubRunner struct {
	out  []byte
	err  error
	seen []command.Invocation
}

func (s *stubRunner) Run(ctx context.Context, inv command.Invocation) error {
	_, err := s.Output(ctx, inv)
	return err
}

func (s *stubRunner) Output(_ context.Context, inv command.Invocation) ([]byte, error) {
	s.seen = append(s.seen, inv)
	return s.out, s.err
}

func touch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.aax")
	require.NoError(t, os.WriteFile(path, []byte("aax"), 0o644))
	return path
}

func TestFFprobe_Probe(t *testing.T) {
	path := touch(t)
	runner := &stubRunner{out: []byte(sampleOutput)}

	res, err := NewFFprobe("", runner).Probe(context.Background(), "1a2b3c4d", path)
	require.NoError(t, err)

	require.Len(t, runner.seen, 1)
	assert.Equal(t, "ffprobe", runner.seen[0].Path)
	assert.Equal(t, []string{
		"-v", "error",
		"-activation_bytes", "1a2b3c4d",
		"-i", path,
		"-of", "json",
		"-show_chapters", "-show_programs", "-show_format",
	}, runner.seen[0].Args)

	assert.Equal(t, "The Book", res.Format.Tag("title"))
	assert.Equal(t, "Jane Doe", res.Format.Tag("artist"))
	assert.Equal(t, "Fiction", res.Format.Tag("genre"))
	assert.Equal(t, "", res.Format.Tag("date"))
	assert.Equal(t, "128000", res.Format.BitRate)
	assert.InDelta(t, 125.5, res.Format.Duration, 1e-9)

	require.Len(t, res.Chapters, 2)
	assert.Equal(t, "Opening Credits", res.Chapters[0].Title(1))
	assert.Equal(t, "Chapter 2", res.Chapters[1].Title(2))
	assert.InDelta(t, 63.0, res.Chapters[1].Duration(), 1e-9)
	assert.JSONEq(t, `[]`, string(res.Programs))
}

func TestFFprobe_ProbeErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		runner := &stubRunner{}
		_, err := NewFFprobe("", runner).Probe(context.Background(), "x", filepath.Join(t.TempDir(), "nope.aax"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, runner.seen, "ffprobe must not run for a missing file")
	})

	t.Run("tool failure", func(t *testing.T) {
		toolErr := &command.ToolError{ExitCode: 1, Stderr: "Invalid data", Err: errors.New("exit status 1")}
		_, err := NewFFprobe("", &stubRunner{err: toolErr}).Probe(context.Background(), "x", touch(t))
		assert.ErrorIs(t, err, ErrProbe)
		assert.ErrorIs(t, err, command.ErrToolFailed)
	})

	t.Run("unparseable output", func(t *testing.T) {
		_, err := NewFFprobe("", &stubRunner{out: []byte("not json")}).Probe(context.Background(), "x", touch(t))
		assert.ErrorIs(t, err, ErrProbe)
	})

	t.Run("empty output", func(t *testing.T) {
		_, err := NewFFprobe("", &stubRunner{}).Probe(context.Background(), "x", touch(t))
		assert.ErrorIs(t, err, ErrProbe)
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unabridged", `"title": "Dune (Unabridged)"`, `"title": "Dune"`},
		{"abridged", `"title": "Dune  (Abridged)"`, `"title": "Dune"`},
		{"whitespace", "a\n\t  b", "a b"},
		{"untouched", `"title": "Bridges"`, `"title": "Bridges"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Normalize([]byte(tt.in))))
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("no chapters", func(t *testing.T) {
		res, err := Parse([]byte(`{"format":{"tags":{"artist":"A","title":"B"}}}`))
		require.NoError(t, err)
		assert.Empty(t, res.Chapters)
		assert.Equal(t, "", res.Format.BitRate)
		assert.Zero(t, res.Format.Duration)
	})

	t.Run("bad chapter time", func(t *testing.T) {
		_, err := Parse([]byte(`{"chapters":[{"id":0,"start_time":"x","end_time":"1"}]}`))
		assert.ErrorIs(t, err, ErrProbe)
	})

	t.Run("null document", func(t *testing.T) {
		_, err := Parse([]byte(`null`))
		assert.ErrorIs(t, err, ErrProbe)
	})
}

func TestResult_Snapshot(t *testing.T) {
	res, err := Parse(Normalize([]byte(`{"format":{"tags":{"title":"B <1> (Abridged)","artist":"A"},"bit_rate":"64000"},"chapters":[]}`)))
	require.NoError(t, err)

	snap, err := res.Snapshot()
	require.NoError(t, err)

	want := `{
    "chapters": [],
    "format": {
        "bit_rate": "64000",
        "tags": {
            "artist": "A",
            "title": "B <1>"
        }
    }
}
`
	assert.Equal(t, want, string(snap))
}
