// Package logging assembles structured slog loggers and formatting helpers used
// across sttbatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator code can tag log
// lines with run IDs, source files, and job IDs. Console output is written for
// humans (one header line per event, indented fields); the optional log file
// always receives JSON.
package logging
