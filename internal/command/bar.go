package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Bar is a Reporter drawing a terminal progress bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar creates a 0..100 bar written to w.
func NewBar(w io.Writer, label string) *Bar {
	return &Bar{bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)}
}

// Set implements Reporter.
func (b *Bar) Set(percent int) {
	_ = b.bar.Set(percent)
}

// Finish implements Reporter.
func (b *Bar) Finish() {
	_ = b.bar.Finish()
}

// BarFactory returns a ReporterFactory drawing bars on f, or nil when f is
// not an interactive terminal.
func BarFactory(f *os.File) ReporterFactory {
	if !Interactive(f) {
		return nil
	}
	return func(label string) Reporter {
		return NewBar(f, label)
	}
}

// Interactive reports whether f is attached to a terminal.
func Interactive(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var _ Reporter = (*Bar)(nil)
