package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReporter captures every reported percentage.
type recordingReporter struct {
	mu       sync.Mutex
	values   []int
	finished bool
}

func (r *recordingReporter) Set(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, p)
}

func (r *recordingReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
}

// countingRunner counts plain executions.
type countingRunner struct {
	runs int
	err  error
}

func (c *countingRunner) Run(context.Context, Invocation) error {
	c.runs++
	return c.err
}

func (c *countingRunner) Output(context.Context, Invocation) ([]byte, error) {
	c.runs++
	return nil, c.err
}

func assertMonotonic(t *testing.T, values []int) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		assert.Greater(t, values[i], values[i-1], "progress moved backwards at %d: %v", i, values)
	}
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"01:02:03.500000", 3723.5},
		{"00:00:00.000000", 0},
		{"2:05.5", 125.5},
		{"42.25", 42.25},
		{" 7 ", 7},
		{"N/A", 0},
		{"", 0},
		{"1:2:3:4", 0},
		{"aa:10", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseTimestamp(tt.in), 1e-9)
		})
	}
}

func TestWithProgress(t *testing.T) {
	t.Run("replaces loglevel", func(t *testing.T) {
		inv := Invocation{Path: "ffmpeg", Args: []string{"-loglevel", "error", "-stats", "-i", "in.aax", "out.m4a"}}
		got := WithProgress(inv)
		assert.Equal(t, []string{"-progress", "pipe:1", "-loglevel", "quiet", "-stats", "-i", "in.aax", "out.m4a"}, got.Args)
		assert.Equal(t, "error", inv.Args[1])
	})

	t.Run("adds loglevel", func(t *testing.T) {
		got := WithProgress(Invocation{Path: "ffmpeg", Args: []string{"-i", "in.aax"}})
		assert.Equal(t, []string{"-progress", "pipe:1", "-loglevel", "quiet", "-i", "in.aax"}, got.Args)
	})
}

func TestTracker(t *testing.T) {
	t.Run("monotonic and ends at 100", func(t *testing.T) {
		rep := &recordingReporter{}
		tr := newTracker(100, rep)
		stream := strings.Join([]string{
			"frame=0",
			"out_time=00:00:10.000000",
			"out_time=00:00:05.000000",
			"out_time=00:00:10.500000",
			"out_time=garbage",
			"out_time=00:00:55.000000",
			"progress=continue",
			"out_time=00:05:00.000000",
			"progress=end",
			"out_time=00:00:01.000000",
		}, "\n")

		require.NoError(t, tr.consume(strings.NewReader(stream)))
		tr.finish()

		assert.Equal(t, []int{10, 55, 100}, rep.values)
		assert.True(t, rep.finished)
	})

	t.Run("finish forces 100 without end marker", func(t *testing.T) {
		rep := &recordingReporter{}
		tr := newTracker(200, rep)
		require.NoError(t, tr.consume(strings.NewReader("out_time=00:00:50.000000\n")))
		tr.finish()
		assertMonotonic(t, rep.values)
		assert.Equal(t, []int{25, 100}, rep.values)
	})

	t.Run("scan failure", func(t *testing.T) {
		rep := &recordingReporter{}
		tr := newTracker(10, rep)
		err := tr.consume(io.MultiReader(strings.NewReader("out_time=00:00:05.0\n"), errReader{}))
		assert.Error(t, err)
		assert.Equal(t, []int{50}, rep.values)
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestProgressRunner_PlainMode(t *testing.T) {
	inv := Invocation{Path: "ffmpeg", Args: []string{"-i", "x"}}

	t.Run("no reporter", func(t *testing.T) {
		plain := &countingRunner{}
		outcome, err := NewProgressRunner(plain).Run(context.Background(), inv, 100, nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomePlain, outcome)
		assert.Equal(t, 1, plain.runs)
	})

	t.Run("unknown duration", func(t *testing.T) {
		plain := &countingRunner{err: &ToolError{Invocation: inv, ExitCode: 1, Err: errors.New("exit status 1")}}
		outcome, err := NewProgressRunner(plain).Run(context.Background(), inv, 0, &recordingReporter{})
		assert.ErrorIs(t, err, ErrToolFailed)
		assert.Equal(t, OutcomePlain, outcome)
	})

	t.Run("dry run never tracks", func(t *testing.T) {
		rep := &recordingReporter{}
		dry := NewDryRunner(slog.New(slog.NewTextHandler(io.Discard, nil)))
		outcome, err := NewProgressRunner(dry).Run(context.Background(), inv, 100, rep)
		require.NoError(t, err)
		assert.Equal(t, OutcomePlain, outcome)
		assert.Empty(t, rep.values)
	})
}

func TestProgressRunner_Tracked(t *testing.T) {
	script := writeScript(t, `
case "$1" in -progress) ;; *) echo "missing -progress" >&2; exit 9 ;; esac
echo "out_time=00:00:02.000000"
echo "out_time=00:00:01.000000"
echo "out_time=00:00:06.000000"
echo "progress=end"
exit 0`)

	rep := &recordingReporter{}
	runner := NewProgressRunner(NewExecRunner())
	outcome, err := runner.Run(context.Background(), Invocation{Path: script, Args: []string{"-loglevel", "error"}}, 8, rep)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTracked, outcome)
	assert.Equal(t, []int{25, 75, 100}, rep.values)
	assert.True(t, rep.finished)
}

func TestProgressRunner_TrackedFailure(t *testing.T) {
	script := writeScript(t, `
echo "out_time=00:00:01.000000"
echo "Conversion failed!" >&2
exit 1`)

	rep := &recordingReporter{}
	outcome, err := NewProgressRunner(NewExecRunner()).Run(context.Background(), Invocation{Path: script}, 4, rep)

	assert.Equal(t, OutcomeTracked, outcome)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.Contains(t, toolErr.Error(), "Conversion failed!")
	assertMonotonic(t, rep.values)
}

func TestProgressRunner_DegradesWhenStartFails(t *testing.T) {
	plain := &countingRunner{}
	rep := &recordingReporter{}
	inv := Invocation{Path: "/nonexistent/ffmpeg-binary"}

	outcome, err := NewProgressRunner(plain).Run(context.Background(), inv, 10, rep)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDegraded, outcome)
	assert.Equal(t, 1, plain.runs)
	assert.Empty(t, rep.values)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "plain", OutcomePlain.String())
	assert.Equal(t, "tracked", OutcomeTracked.String())
	assert.Equal(t, "degraded", OutcomeDegraded.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
