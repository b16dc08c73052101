// Package deps verifies that the external tools a run needs are installed.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/maauso/aaxsplit/internal/config"
	"github.com/maauso/aaxsplit/internal/media"
)

// ErrMissingBinary is returned by Verify when a required tool is absent.
var ErrMissingBinary = errors.New("deps: required binary not found")

// Requirement defines an external tool the converter relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the tools a run with cfg will invoke. mp3splt is only
// needed when mp3 output is actually split.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "ffprobe", Command: cfg.FFprobePath, Description: "reads container metadata and chapters"},
		{Name: "ffmpeg", Command: cfg.FFmpegPath, Description: "decrypts, transcodes and cuts audio"},
	}

	format, err := media.Lookup(cfg.Format)
	splits := !cfg.MetadataOnly && !cfg.CoverOnly && !cfg.Single
	if err == nil && format.BinarySplit() && splits {
		reqs = append(reqs, Requirement{
			Name:        "mp3splt",
			Command:     cfg.Mp3spltPath,
			Description: "splits mp3 output at chapter points",
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Verify returns ErrMissingBinary naming every unavailable non-optional
// requirement, or nil when all of them resolve.
func Verify(statuses []Status) error {
	var missing []string
	for _, s := range statuses {
		if s.Available || s.Optional {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", s.Name, s.Detail))
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingBinary, strings.Join(missing, ", "))
}
