package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sttbatch/internal/config"
	"sttbatch/internal/logging"
	"sttbatch/internal/notifications"
	"sttbatch/internal/registry"
	"sttbatch/internal/services"
	"sttbatch/internal/sink"
	"sttbatch/internal/source"
	"sttbatch/internal/transcription"
)

// ErrInterrupted is returned by Run when the context was cancelled before the
// registry drained.
var ErrInterrupted = errors.New("run interrupted with jobs outstanding")

const (
	defaultConcurrency = 4
	defaultCallTimeout = 30 * time.Second
)

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Client   transcription.Client
	Source   source.Source
	Sink     sink.Sink
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Settings tune pacing and fan-out.
type Settings struct {
	PollInterval time.Duration
	Concurrency  int
	CallTimeout  time.Duration
	// SubmitTimeout bounds one Submit call including the client's own
	// retries. Zero takes the client's SubmitBudget, or CallTimeout.
	SubmitTimeout time.Duration
	// MaxAttempts caps submissions per file; 0 disables the cap.
	MaxAttempts int
}

// submitBudgeter is implemented by clients that retry inside Submit.
type submitBudgeter interface {
	SubmitBudget() time.Duration
}

// SettingsFromConfig maps the workflow and watson sections to Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		PollInterval: cfg.PollInterval(),
		Concurrency:  cfg.Workflow.Concurrency,
		CallTimeout:  cfg.CallTimeout(),
		MaxAttempts:  cfg.Workflow.MaxAttempts,
	}
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithPause replaces the inter-pass wait; tests use it to skip real sleeps.
func WithPause(pause func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if pause != nil {
			o.pause = pause
		}
	}
}

// WithClock overrides the time source used for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator owns the registry for one run.
type Orchestrator struct {
	client   transcription.Client
	source   source.Source
	sink     sink.Sink
	notifier notifications.Service
	logger   *slog.Logger
	registry *registry.Registry
	settings Settings

	pause func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.Mutex
	results  map[string]*FileResult
	passes   int
	progress *logging.ProgressSampler
}

// NewOrchestrator wires the collaborators. A nil notifier or logger is
// replaced with a no-op.
func NewOrchestrator(deps Dependencies, settings Settings, opts ...Option) *Orchestrator {
	if settings.Concurrency <= 0 {
		settings.Concurrency = defaultConcurrency
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = defaultCallTimeout
	}
	if settings.SubmitTimeout <= 0 {
		settings.SubmitTimeout = settings.CallTimeout
		if budgeter, ok := deps.Client.(submitBudgeter); ok && budgeter.SubmitBudget() > settings.SubmitTimeout {
			settings.SubmitTimeout = budgeter.SubmitBudget()
		}
	}
	if settings.PollInterval < 0 {
		settings.PollInterval = 0
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	o := &Orchestrator{
		client:   deps.Client,
		source:   deps.Source,
		sink:     deps.Sink,
		notifier: notifier,
		logger:   logging.NewComponentLogger(deps.Logger, "workflow"),
		registry: registry.New(),
		settings: settings,
		pause:    sleepContext,
		now:      time.Now,
		results:  make(map[string]*FileResult),
		progress: logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the live registry for inspection.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Run lists the source, seeds the registry and polls until it is empty or
// ctx is cancelled. Listing failures are returned before any submission.
// Cancellation lets the current pass finish and returns ErrInterrupted along
// with the summary.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	started := o.now()
	logger := logging.WithContext(ctx, o.logger)

	names, err := o.source.List(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "listing inputs failed", "source_list_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the input directory or bucket prefix and its permissions"),
		)
		o.publish(ctx, notifications.EventError, notifications.Payload{
			"context": "listing inputs",
			"error":   err.Error(),
		})
		return nil, err
	}

	logger.Info("batch started", logging.Int("files", len(names)))
	o.publish(ctx, notifications.EventRunStarted, notifications.Payload{"files": len(names)})

	o.Seed(ctx, names)

	interrupted := ctx.Err() != nil
	for !interrupted && !o.registry.Empty() {
		// The pass itself ignores cancellation so no transition is cut short.
		o.RunPass(context.WithoutCancel(ctx))
		if o.registry.Empty() {
			break
		}
		if err := o.pause(ctx, o.settings.PollInterval); err != nil {
			interrupted = true
		}
	}

	if interrupted {
		o.logOutstanding(ctx)
	}
	summary := o.summary(started, interrupted)
	logger.Info("batch finished",
		logging.Int("passes", summary.Passes),
		logging.Int("completed", summary.Count(OutcomeCompleted)),
		logging.Int("abandoned", summary.Count(OutcomeAbandoned)),
		logging.Int("dropped", summary.Count(OutcomeDropped)),
		logging.Int("lost", summary.Count(OutcomeLost)),
		logging.Int("skipped", summary.Count(OutcomeSkipped)),
		logging.Int("outstanding", summary.Count(OutcomeOutstanding)),
		logging.Duration("elapsed", summary.Duration()),
	)
	o.publish(ctx, notifications.EventRunCompleted, summary.payload())

	if interrupted {
		return summary, ErrInterrupted
	}
	return summary, nil
}

func (o *Orchestrator) logOutstanding(ctx context.Context) {
	for _, entry := range o.registry.Snapshot() {
		jobCtx := services.WithJobID(services.WithSourceFile(ctx, entry.SourceFile), entry.JobID)
		logging.WarnWithContext(logging.WithContext(jobCtx, o.logger), "job left outstanding at shutdown", "job_outstanding",
			logging.Int(logging.FieldAttempt, entry.Attempts),
			logging.String(logging.FieldErrorHint, "the remote job may still finish; fetch it by job id or rerun the batch"),
			logging.String(logging.FieldImpact, "no transcript is written for this file in this run"),
		)
	}
}

func (o *Orchestrator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		o.logger.Debug("notification failed",
			logging.String(logging.FieldEventType, string(event)),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.settings.CallTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
