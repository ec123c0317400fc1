package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sttbatch/internal/config"
	"sttbatch/internal/logging"
	"sttbatch/internal/notifications"
	"sttbatch/internal/preflight"
	"sttbatch/internal/runlock"
	"sttbatch/internal/services"
	"sttbatch/internal/services/watson"
	"sttbatch/internal/sink"
	"sttbatch/internal/source"
	"sttbatch/internal/workflow"
)

// runOptions holds per-invocation overrides of the workflow section.
type runOptions struct {
	concurrency  int
	maxAttempts  int
	pollInterval int
	json         bool
	preflight    bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 0, "Parallel status checks per pass (overrides workflow.concurrency)")
	cmd.Flags().IntVar(&o.maxAttempts, "max-attempts", 0, "Submissions per file before giving up, 0 for unlimited (overrides workflow.max_attempts)")
	cmd.Flags().IntVar(&o.pollInterval, "poll-interval", 0, "Seconds between passes (overrides workflow.poll_interval)")
	cmd.Flags().BoolVar(&o.json, "json", false, "Print the run summary as JSON")
	cmd.Flags().BoolVar(&o.preflight, "preflight", false, "Run readiness checks first and abort if any fails")
}

// apply copies cfg with any flags the user set.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	out := *cfg
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		if o.concurrency <= 0 {
			return nil, errors.New("--concurrency must be positive")
		}
		out.Workflow.Concurrency = o.concurrency
	}
	if flags.Changed("max-attempts") {
		if o.maxAttempts < 0 {
			return nil, errors.New("--max-attempts must be >= 0")
		}
		out.Workflow.MaxAttempts = o.maxAttempts
	}
	if flags.Changed("poll-interval") {
		if o.pollInterval <= 0 {
			return nil, errors.New("--poll-interval must be positive")
		}
		out.Workflow.PollInterval = o.pollInterval
	}
	return &out, nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transcribe every input file and wait for all jobs to resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runBatch(cmd *cobra.Command, ctx *commandContext, opts *runOptions) error {
	baseCfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := opts.apply(cmd, baseCfg)
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	logger, logPath, err := logging.NewRunLogger(cfg, time.Now().UTC().Format("20060102T150405"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			return fmt.Errorf("another sttbatch run holds %s", cfg.LockPath())
		}
		return err
	}
	defer lock.Release()

	runCtx := services.WithRunID(signalCtx, runID)

	store, err := openObjectStore(runCtx, cfg)
	if err != nil {
		return err
	}
	var reader source.ObjectReader
	var writer sink.ObjectWriter
	var bucket preflight.Bucket
	if store != nil {
		reader, writer, bucket = store, store, store
	}

	if opts.preflight {
		results := preflight.RunAll(runCtx, cfg, bucket)
		if failed := preflight.Failed(results); len(failed) > 0 {
			renderPreflight(cmd, results)
			return fmt.Errorf("preflight: %d of %d checks failed", len(failed), len(results))
		}
	}

	src, err := source.FromConfig(cfg, reader)
	if err != nil {
		return err
	}
	out, err := sink.FromConfig(cfg, writer)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			logging.WarnWithContext(logger, "sink close failed", "sink_close_failed",
				logging.Error(closeErr),
				logging.String(logging.FieldImpact, "buffered transcripts may not be flushed"),
			)
		}
	}()

	notifier, err := notifications.NewService(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "notifications disabled", "notifications_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.nats_url"),
			logging.String(logging.FieldImpact, "run events will not be published"),
		)
		notifier = notifications.NewNoop()
	}
	defer notifier.Close()

	client := watson.NewClient(watsonConfig(cfg), watson.WithLogger(logger))

	orchestrator := workflow.NewOrchestrator(workflow.Dependencies{
		Client:   client,
		Source:   src,
		Sink:     out,
		Notifier: notifier,
		Logger:   logger,
	}, workflow.SettingsFromConfig(cfg))

	summary, runErr := orchestrator.Run(runCtx)
	if summary != nil {
		if err := renderSummary(cmd, summary, opts.json); err != nil {
			return err
		}
	}
	if runErr != nil {
		if errors.Is(runErr, workflow.ErrInterrupted) && summary != nil {
			return fmt.Errorf("%w: %d still outstanding", runErr, summary.Count(workflow.OutcomeOutstanding))
		}
		return runErr
	}
	return nil
}

func watsonConfig(cfg *config.Config) watson.Config {
	return watson.Config{
		EndpointURL:       cfg.Watson.EndpointURL,
		APIKey:            cfg.Watson.APIKey,
		Model:             cfg.Watson.Model,
		ContentType:       cfg.Watson.ContentType,
		TimeoutSeconds:    cfg.Watson.TimeoutSeconds,
		RequestsPerSecond: cfg.Watson.RequestsPerSecond,
		SubmitRetries:     cfg.Watson.SubmitRetries,
	}
}
