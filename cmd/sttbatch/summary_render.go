package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"sttbatch/internal/workflow"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

type summaryJSON struct {
	*workflow.Summary
	DurationSeconds float64                  `json:"duration_seconds"`
	Counts          map[workflow.Outcome]int `json:"counts"`
}

func renderSummary(cmd *cobra.Command, summary *workflow.Summary, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, summaryJSON{
			Summary:         summary,
			DurationSeconds: summary.Duration().Seconds(),
			Counts:          summary.Counts(),
		})
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if len(summary.Files) == 0 {
		fmt.Fprintln(out, "No input files found")
		return nil
	}

	rows := make([][]string, 0, len(summary.Files))
	for _, file := range summary.Files {
		detail := file.Location
		if file.Error != "" {
			detail = file.Error
		}
		rows = append(rows, []string{
			file.SourceFile,
			outcomeLabel(file.Outcome, colorize),
			strconv.Itoa(file.Attempts),
			file.JobID,
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Outcome", "Attempts", "Job", "Output / Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintln(out, summaryLine(summary))
	return nil
}

func summaryLine(summary *workflow.Summary) string {
	parts := make([]string, 0, len(workflow.Outcomes))
	for _, outcome := range workflow.Outcomes {
		if n := summary.Count(outcome); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, outcome))
		}
	}
	line := fmt.Sprintf("%d files in %s over %d passes: %s",
		len(summary.Files),
		summary.Duration().Round(time.Second),
		summary.Passes,
		strings.Join(parts, ", "),
	)
	if summary.Interrupted {
		line += " (interrupted)"
	}
	return line
}

func outcomeLabel(outcome workflow.Outcome, colorize bool) string {
	label := string(outcome)
	if !colorize {
		return label
	}
	if color := outcomeColor(outcome); color != "" {
		return color + label + ansiReset
	}
	return label
}

func outcomeColor(outcome workflow.Outcome) string {
	switch outcome {
	case workflow.OutcomeCompleted:
		return ansiGreen
	case workflow.OutcomeAbandoned, workflow.OutcomeDropped, workflow.OutcomeSkipped:
		return ansiYellow
	case workflow.OutcomeLost:
		return ansiRed
	case workflow.OutcomeOutstanding:
		return ansiBlue
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
