package workflow

import (
	"context"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"sttbatch/internal/logging"
	"sttbatch/internal/registry"
	"sttbatch/internal/services"
	"sttbatch/internal/sink"
)

// Seed submits every name exactly once. Files that cannot be read are
// skipped and files whose submission fails are dropped; neither enters the
// registry. Once ctx is cancelled no new submission starts, but submissions
// already under way complete so their job ids are recorded. Output names are
// planned first so inputs sharing a stem keep separate transcripts.
func (o *Orchestrator) Seed(ctx context.Context, names []string) {
	o.planOutputs(names)
	for _, name := range names {
		o.record(name, func(r *FileResult) {
			r.Outcome = OutcomeOutstanding
		})
	}

	detached := context.WithoutCancel(ctx)
	var group errgroup.Group
	group.SetLimit(o.settings.Concurrency)
	for _, name := range names {
		if ctx.Err() != nil {
			o.record(name, func(r *FileResult) {
				r.Outcome = OutcomeSkipped
				r.Error = "interrupted before submission"
			})
			continue
		}
		group.Go(func() error {
			o.seedOne(detached, name)
			return nil
		})
	}
	_ = group.Wait()

	o.logger.Info("seeding complete",
		logging.Int("submitted", o.registry.Len()),
		logging.Int("files", len(names)),
	)
}

// planOutputs lets the sink rename outputs whose names would collide, such as
// "a.mp3" and "a.wav" both becoming "a.txt".
func (o *Orchestrator) planOutputs(names []string) {
	planner, ok := o.sink.(sink.Planner)
	if !ok {
		return
	}
	renamed := planner.Plan(names)
	for _, source := range slices.Sorted(maps.Keys(renamed)) {
		logging.WarnWithContext(o.logger, "output name collides with another input; keeping audio extension", "output_name_collision",
			logging.String(logging.FieldSourceFile, source),
			logging.String("output_name", renamed[source]),
			logging.String(logging.FieldErrorHint, "rename inputs that differ only by extension to get plain output names"),
		)
	}
}

func (o *Orchestrator) seedOne(ctx context.Context, name string) {
	ctx = services.WithSourceFile(ctx, name)
	logger := logging.WithContext(ctx, o.logger)

	audio, err := o.read(ctx, name)
	if err != nil {
		logging.WarnWithContext(logger, "input skipped; read failed", "source_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check the file exists and is readable"),
			logging.String(logging.FieldImpact, "file is not transcribed in this run"),
		)
		o.record(name, func(r *FileResult) {
			r.Outcome = OutcomeSkipped
			r.Error = err.Error()
		})
		return
	}

	jobID, err := o.submit(ctx, name, audio)
	if err != nil {
		logging.WarnWithContext(logger, "submission failed; file dropped", "submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check the recognition endpoint, credentials and quota, then rerun"),
			logging.String(logging.FieldImpact, "file is not transcribed in this run"),
		)
		o.record(name, func(r *FileResult) {
			r.Outcome = OutcomeDropped
			r.Attempts = 1
			r.Error = err.Error()
		})
		return
	}

	entry := registry.Entry{JobID: jobID, SourceFile: name, Attempts: 1, SubmittedAt: o.now()}
	if err := o.registry.Insert(entry); err != nil {
		logging.ErrorWithContext(logger, "registry rejected new job", "registry_insert_failed",
			logging.Error(err),
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldErrorHint, "the service returned a job id that is already tracked"),
		)
		o.record(name, func(r *FileResult) {
			r.Outcome = OutcomeDropped
			r.JobID = jobID
			r.Attempts = 1
			r.Error = err.Error()
		})
		return
	}
	o.record(name, func(r *FileResult) {
		r.JobID = jobID
		r.Attempts = 1
	})
	logger.Info("audio submitted",
		logging.String(logging.FieldJobID, jobID),
		logging.Int(logging.FieldAttempt, 1),
	)
}

func (o *Orchestrator) read(ctx context.Context, name string) ([]byte, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.source.Read(callCtx, name)
}

func (o *Orchestrator) submit(ctx context.Context, name string, audio []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.settings.SubmitTimeout)
	defer cancel()
	return o.client.Submit(callCtx, name, audio)
}
