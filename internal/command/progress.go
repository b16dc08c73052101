package command

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Reporter receives completion percentages in the range [0, 100].
type Reporter interface {
	Set(percent int)
	Finish()
}

// ReporterFactory creates a Reporter for a labelled operation.
// A nil factory, or one returning nil, disables progress tracking.
type ReporterFactory func(label string) Reporter

// Outcome describes how a ProgressRunner executed a command.
type Outcome int

const (
	// OutcomePlain means the command ran without progress tracking.
	OutcomePlain Outcome = iota
	// OutcomeTracked means progress was parsed for the whole run.
	OutcomeTracked
	// OutcomeDegraded means progress tracking failed and the command
	// completed without it.
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlain:
		return "plain"
	case OutcomeTracked:
		return "tracked"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// ProgressRunner runs ffmpeg invocations while parsing the machine
// readable progress stream requested with "-progress pipe:1".
type ProgressRunner struct {
	plain Runner
	// live is false when plain does not execute anything (dry run).
	live bool
}

// NewProgressRunner creates a ProgressRunner that falls back to plain.
func NewProgressRunner(plain Runner) *ProgressRunner {
	return &ProgressRunner{plain: plain, live: !IsDryRun(plain)}
}

// Run executes inv. Progress is tracked only when reporter is non-nil and
// total is positive; otherwise the command runs through the plain Runner.
//
// A failure to set up or read the progress stream never fails the call:
// the command still completes and OutcomeDegraded is returned. A non-zero
// exit is returned as a *ToolError in every mode.
func (p *ProgressRunner) Run(ctx context.Context, inv Invocation, total float64, reporter Reporter) (Outcome, error) {
	if reporter == nil || total <= 0 || !p.live {
		return OutcomePlain, p.plain.Run(ctx, inv)
	}

	tracked := WithProgress(inv)

	// #nosec G204 - arguments are built by this program, never through a shell
	cmd := exec.CommandContext(ctx, tracked.Path, tracked.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return OutcomeDegraded, p.plain.Run(ctx, inv)
	}
	if err := cmd.Start(); err != nil {
		return OutcomeDegraded, p.plain.Run(ctx, inv)
	}

	outcome := OutcomeTracked
	t := newTracker(total, reporter)
	if err := t.consume(stdout); err != nil {
		outcome = OutcomeDegraded
	}
	// Keep the pipe drained so the process cannot block on a full buffer.
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := cmd.Wait()
	t.finish()

	if waitErr != nil {
		if ctx.Err() != nil {
			return outcome, fmt.Errorf("%s cancelled: %w", inv.Name(), ctx.Err())
		}
		return outcome, newToolError(inv, stderr.String(), waitErr)
	}
	return outcome, nil
}

// WithProgress returns a copy of inv that writes progress key=value lines
// to stdout and suppresses log output.
func WithProgress(inv Invocation) Invocation {
	rest := make([]string, 0, len(inv.Args))
	quieted := false
	for i := 0; i < len(inv.Args); i++ {
		if inv.Args[i] == "-loglevel" && i+1 < len(inv.Args) {
			rest = append(rest, "-loglevel", "quiet")
			quieted = true
			i++
			continue
		}
		rest = append(rest, inv.Args[i])
	}

	args := []string{"-progress", "pipe:1"}
	if !quieted {
		args = append(args, "-loglevel", "quiet")
	}
	return Invocation{Path: inv.Path, Args: append(args, rest...)}
}

// ParseTimestamp converts an ffmpeg time value to seconds. It accepts
// H:MM:SS.ms, M:SS.ms and bare seconds. Unparseable input yields 0.
func ParseTimestamp(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0
		}
		total = total*60 + v
	}
	return total
}

// tracker turns progress lines into monotonic percentages.
type tracker struct {
	total    float64
	last     int
	reporter Reporter
}

func newTracker(total float64, reporter Reporter) *tracker {
	return &tracker{total: total, reporter: reporter}
}

func (t *tracker) consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if t.observe(scanner.Text()) {
			break
		}
	}
	return scanner.Err()
}

// observe handles one line and reports whether the stream has ended.
func (t *tracker) observe(line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}

	switch key {
	case "out_time":
		t.advance(percentOf(ParseTimestamp(value), t.total))
	case "progress":
		if value == "end" {
			t.advance(100)
			return true
		}
	}
	return false
}

func (t *tracker) advance(pct int) {
	if pct <= t.last {
		return
	}
	t.last = pct
	t.reporter.Set(pct)
}

func (t *tracker) finish() {
	t.advance(100)
	t.reporter.Finish()
}

func percentOf(current, total float64) int {
	if total <= 0 || current <= 0 {
		return 0
	}
	ratio := current / total
	if ratio > 1 {
		ratio = 1
	}
	return int(ratio * 100)
}
