// Package id provides unique identifier generation for jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: job-<first uuid group>-<rest of uuid without dashes>
// Example: job-6f1c2a7e-94d04b2b8e1f4c0a9d3e5b7a1c2d3e4f
func Generate() string {
	u := uuid.New().String()
	head, rest, _ := strings.Cut(u, "-")
	return "job-" + head + "-" + strings.ReplaceAll(rest, "-", "")
}

// Short returns the leading group of a generated ID for compact display.
func Short(jobID string) string {
	trimmed := strings.TrimPrefix(jobID, "job-")
	head, _, _ := strings.Cut(trimmed, "-")
	return head
}
