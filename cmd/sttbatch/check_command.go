package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sttbatch/internal/config"
	"sttbatch/internal/objectstore"
	"sttbatch/internal/preflight"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, Watson credentials and object storage before a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			results, err := runPreflight(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				renderPreflight(cmd, results)
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print check results as JSON")
	return cmd
}

func runPreflight(ctx context.Context, cfg *config.Config) ([]preflight.Result, error) {
	store, err := openObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var bucket preflight.Bucket
	if store != nil {
		bucket = store
	}
	return preflight.RunAll(ctx, cfg, bucket), nil
}

// openObjectStore returns nil when neither the source nor the sink uses S3.
func openObjectStore(ctx context.Context, cfg *config.Config) (*objectstore.Store, error) {
	if cfg.Source.Kind != config.SourceS3 && cfg.Sink.Kind != config.SinkS3 {
		return nil, nil
	}
	store, err := objectstore.New(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	return store, nil
}

func renderPreflight(cmd *cobra.Command, results []preflight.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, r := range results {
		fmt.Fprintln(out, renderStatusLine(r.Name, r.Passed, r.Detail, colorize))
	}
}

func renderStatusLine(label string, passed bool, message string, colorize bool) string {
	status, color := "ERROR", ansiRed
	if passed {
		status, color = "OK", ansiGreen
	}
	text := fmt.Sprintf("[%s]", status)
	if message != "" {
		text = fmt.Sprintf("[%s] %s", status, message)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", text)
	if colorize {
		return color + base + ansiReset
	}
	return base
}
