// Package command runs external tools (ffprobe, ffmpeg, mp3splt) from
// structured argument vectors. Commands are plain data until a Runner
// executes them, so builders can be tested without the tools installed.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrToolFailed matches any *ToolError via errors.Is.
var ErrToolFailed = errors.New("command: tool invocation failed")

// secretFlags lists arguments whose following value must never be logged.
var secretFlags = map[string]bool{
	"-activation_bytes": true,
}

// Invocation is a fully built external command.
type Invocation struct {
	// Path is the program to execute, resolved through PATH when not absolute.
	Path string
	// Args are the arguments, excluding the program itself.
	Args []string
}

// Name returns the base name of the program.
func (i Invocation) Name() string {
	return filepath.Base(i.Path)
}

// Masked returns a copy with secret argument values replaced.
func (i Invocation) Masked() Invocation {
	args := make([]string, len(i.Args))
	copy(args, i.Args)
	for n := 0; n < len(args)-1; n++ {
		if secretFlags[args[n]] {
			args[n+1] = "********"
			n++
		}
	}
	return Invocation{Path: i.Path, Args: args}
}

// String renders the masked command line, quoting arguments with spaces.
func (i Invocation) String() string {
	masked := i.Masked()
	parts := make([]string, 0, len(masked.Args)+1)
	parts = append(parts, quote(masked.Path))
	for _, a := range masked.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// Runner executes invocations and blocks until the process exits.
type Runner interface {
	// Run executes inv and returns a *ToolError on a non-zero exit.
	Run(ctx context.Context, inv Invocation) error

	// Output executes inv and returns its stdout.
	Output(ctx context.Context, inv Invocation) ([]byte, error)
}

// ToolError represents a failed external tool run, including captured stderr.
type ToolError struct {
	Invocation Invocation
	ExitCode   int
	Stderr     string
	Err        error
}

func (e *ToolError) Error() string {
	detail := lastLine(e.Stderr)
	if detail == "" {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Invocation.Name(), e.ExitCode, detail)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Is reports ErrToolFailed as a match.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolFailed
}

func newToolError(inv Invocation, stderr string, err error) *ToolError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ToolError{
		Invocation: inv.Masked(),
		ExitCode:   code,
		Stderr:     stderr,
		Err:        err,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	// stderr receives a live copy of tool diagnostics when set.
	stderr io.Writer
}

// ExecOption configures an ExecRunner.
type ExecOption func(*ExecRunner)

// WithStderr tees tool stderr to w in addition to capturing it.
func WithStderr(w io.Writer) ExecOption {
	return func(r *ExecRunner) {
		r.stderr = w
	}
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner(opts ...ExecOption) *ExecRunner {
	r := &ExecRunner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	// #nosec G204 - arguments are built by this program, never through a shell
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)

	var stderr bytes.Buffer
	cmd.Stderr = r.stderrWriter(&stderr)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", inv.Name(), ctx.Err())
		}
		return newToolError(inv, stderr.String(), err)
	}
	return nil
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, inv Invocation) ([]byte, error) {
	// #nosec G204 - arguments are built by this program, never through a shell
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = r.stderrWriter(&stderr)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", inv.Name(), ctx.Err())
		}
		return nil, newToolError(inv, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

func (r *ExecRunner) stderrWriter(buf *bytes.Buffer) io.Writer {
	if r.stderr == nil {
		return buf
	}
	return io.MultiWriter(buf, r.stderr)
}

// DryRunner logs invocations instead of executing them.
type DryRunner struct {
	logger *slog.Logger
}

// NewDryRunner creates a DryRunner that logs through logger.
func NewDryRunner(logger *slog.Logger) *DryRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunner{logger: logger}
}

// Run implements Runner.
func (r *DryRunner) Run(_ context.Context, inv Invocation) error {
	r.logger.Info("dry run", slog.String("cmd", inv.String()))
	return nil
}

// Output implements Runner. It always returns empty output.
func (r *DryRunner) Output(ctx context.Context, inv Invocation) ([]byte, error) {
	return nil, r.Run(ctx, inv)
}

// IsDryRun reports whether r only logs invocations.
func IsDryRun(r Runner) bool {
	_, ok := r.(*DryRunner)
	return ok
}

// Compile-time interface checks.
var (
	_ Runner = (*ExecRunner)(nil)
	_ Runner = (*DryRunner)(nil)
)
