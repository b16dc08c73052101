package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/maauso/aaxsplit/internal/job"
	"github.com/maauso/aaxsplit/internal/job/id"
)

// summaryColumns lists the summary headers; right-aligned ones are numeric.
var summaryColumns = []struct {
	header string
	right  bool
}{
	{"#", true},
	{"Job", false},
	{"File", false},
	{"Status", false},
	{"Chapters", true},
	{"Output", false},
	{"Time", true},
	{"Details", false},
}

// renderSummary lists one row per input followed by a totals line.
func renderSummary(jobs []*job.Job) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(summaryColumns))
	configs := make([]table.ColumnConfig, len(summaryColumns))
	for i, c := range summaryColumns {
		header[i] = c.header
		align := text.AlignLeft
		if c.right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	counts := map[job.Status]int{}
	rows := 0
	for _, j := range jobs {
		if j == nil {
			continue
		}
		status := j.GetStatus()
		counts[status]++
		rows++

		details := j.Note
		if status == job.StatusFailed {
			details = j.Error
		}
		chapters := "-"
		if j.Chapters > 0 {
			chapters = strconv.Itoa(j.Chapters)
		}
		tw.AppendRow(table.Row{
			j.Seq,
			id.Short(j.ID),
			filepath.Base(j.Input),
			string(status),
			chapters,
			valueOr(j.DestDir, "-"),
			j.Elapsed().Round(time.Second).String(),
			details,
		})
	}

	return fmt.Sprintf("%s\n%d file(s): %d completed, %d skipped, %d failed",
		tw.Render(),
		rows,
		counts[job.StatusCompleted],
		counts[job.StatusSkipped],
		counts[job.StatusFailed],
	)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
