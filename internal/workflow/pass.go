package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"sttbatch/internal/logging"
	"sttbatch/internal/notifications"
	"sttbatch/internal/registry"
	"sttbatch/internal/services"
	"sttbatch/internal/transcription"
)

// RunPass checks every job in a snapshot of the registry once and applies
// its transition. Jobs inserted during the pass wait for the next one.
func (o *Orchestrator) RunPass(ctx context.Context) {
	o.mu.Lock()
	o.passes++
	pass := o.passes
	o.mu.Unlock()

	snapshot := o.registry.Snapshot()
	logger := o.logger.With(logging.Int(logging.FieldPass, pass))
	logger.Debug("pass started", logging.Int("outstanding", len(snapshot)))

	var group errgroup.Group
	group.SetLimit(o.settings.Concurrency)
	for _, entry := range snapshot {
		group.Go(func() error {
			o.transition(ctx, logger, entry)
			return nil
		})
	}
	_ = group.Wait()

	remaining := o.registry.Len()
	if o.progress.ShouldLog(o.percentResolved(), "polling") {
		logger.Info("batch progress",
			logging.Int("outstanding", remaining),
			logging.String("resolved", fmt.Sprintf("%.0f%%", o.percentResolved())),
		)
	}
	logger.Debug("pass finished", logging.Int("outstanding", remaining))
}

func (o *Orchestrator) transition(ctx context.Context, passLogger *slog.Logger, entry registry.Entry) {
	ctx = services.WithJobID(services.WithSourceFile(ctx, entry.SourceFile), entry.JobID)
	logger := logging.WithContext(ctx, passLogger).With(logging.Int(logging.FieldAttempt, entry.Attempts))

	status, err := o.fetchStatus(ctx, entry.JobID)
	if err != nil {
		hint := "the job is re-checked next pass"
		switch {
		case services.Timeout(err):
			hint = "the status check timed out; raise watson.timeout_seconds if this persists"
		case services.Kind(err) == "not_found":
			hint = "the service does not know this job id; it may have expired"
		}
		logging.WarnWithContext(logger, "status check failed", "status_check_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, hint),
		)
		o.record(entry.SourceFile, func(r *FileResult) {
			r.Error = err.Error()
		})
		return
	}

	switch status.State {
	case transcription.StateWaiting, transcription.StateProcessing:
		logger.Debug("job pending", logging.String(logging.FieldState, status.State.String()))
	case transcription.StateCompleted:
		o.finalize(ctx, logger, entry, status.Transcript)
	case transcription.StateFailed:
		if o.settings.MaxAttempts > 0 && entry.Attempts >= o.settings.MaxAttempts {
			o.abandon(ctx, logger, entry)
			return
		}
		o.resubmit(ctx, logger, entry)
	default:
		logging.WarnWithContext(logger, "job reported an unrecognized state", "status_unknown",
			logging.String(logging.FieldState, status.State.String()),
			logging.String(logging.FieldErrorHint, "the job is re-checked next pass"),
		)
	}
}

// finalize persists the transcript and removes the job. A persistence failure
// still removes the job because the remote result has been consumed.
func (o *Orchestrator) finalize(ctx context.Context, logger *slog.Logger, entry registry.Entry, transcript string) {
	location, err := o.write(ctx, entry.SourceFile, transcript)
	if _, removed := o.registry.Remove(entry.JobID); !removed {
		logger.Debug("completed job already gone from registry")
	}
	if err != nil {
		logging.ErrorWithContext(logger, "transcript could not be saved and is lost", "transcript_lost",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Alert("data_loss"),
			logging.String(logging.FieldErrorHint, "fix the output location and rerun the batch for this file"),
			logging.String(logging.FieldImpact, "the completed transcript is discarded"),
		)
		o.record(entry.SourceFile, func(r *FileResult) {
			r.Outcome = OutcomeLost
			r.JobID = entry.JobID
			r.Attempts = entry.Attempts
			r.Error = err.Error()
		})
		o.publish(ctx, notifications.EventTranscriptLost, notifications.Payload{
			"source_file": entry.SourceFile,
			"job_id":      entry.JobID,
			"error":       err.Error(),
		})
		return
	}
	o.record(entry.SourceFile, func(r *FileResult) {
		r.Outcome = OutcomeCompleted
		r.JobID = entry.JobID
		r.Attempts = entry.Attempts
		r.Location = location
		r.Error = ""
	})
	logger.Info("transcript saved",
		logging.String("location", location),
		logging.Int("characters", len(transcript)),
	)
}

func (o *Orchestrator) abandon(ctx context.Context, logger *slog.Logger, entry registry.Entry) {
	o.registry.Remove(entry.JobID)
	logging.WarnWithContext(logger, "job failed at attempt ceiling; abandoned", "job_abandoned",
		logging.Int("max_attempts", o.settings.MaxAttempts),
		logging.String(logging.FieldErrorHint, "inspect the audio file; raise workflow.max_attempts to keep retrying"),
		logging.String(logging.FieldImpact, "file is not transcribed in this run"),
	)
	o.record(entry.SourceFile, func(r *FileResult) {
		r.Outcome = OutcomeAbandoned
		r.JobID = entry.JobID
		r.Attempts = entry.Attempts
		r.Error = "remote job failed"
	})
	o.publish(ctx, notifications.EventJobAbandoned, notifications.Payload{
		"source_file": entry.SourceFile,
		"job_id":      entry.JobID,
		"attempts":    entry.Attempts,
	})
}

// resubmit replaces a failed job with a fresh submission of the same file.
// If the file cannot be read or submitted it is dropped from the registry.
func (o *Orchestrator) resubmit(ctx context.Context, logger *slog.Logger, entry registry.Entry) {
	drop := func(msg, eventType string, err error) {
		o.registry.Remove(entry.JobID)
		logging.WarnWithContext(logger, msg, eventType,
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "rerun the batch once the cause is fixed"),
			logging.String(logging.FieldImpact, "file is not transcribed in this run"),
		)
		o.record(entry.SourceFile, func(r *FileResult) {
			r.Outcome = OutcomeDropped
			r.JobID = entry.JobID
			r.Attempts = entry.Attempts
			r.Error = err.Error()
		})
	}

	audio, err := o.read(ctx, entry.SourceFile)
	if err != nil {
		drop("failed job dropped; input unreadable", "resubmit_read_failed", err)
		return
	}
	jobID, err := o.submit(ctx, entry.SourceFile, audio)
	if err != nil {
		drop("failed job dropped; resubmission failed", "resubmit_failed", err)
		return
	}

	next := registry.Entry{
		JobID:       jobID,
		SourceFile:  entry.SourceFile,
		Attempts:    entry.Attempts + 1,
		SubmittedAt: o.now(),
	}
	if err := o.registry.Replace(entry.JobID, next); err != nil {
		drop("failed job dropped; registry rejected replacement", "registry_replace_failed", err)
		return
	}
	o.record(entry.SourceFile, func(r *FileResult) {
		r.JobID = jobID
		r.Attempts = next.Attempts
		r.Error = ""
	})
	logger.Info("failed job resubmitted",
		logging.String("new_job_id", jobID),
		logging.Int("next_attempt", next.Attempts),
	)
}

func (o *Orchestrator) fetchStatus(ctx context.Context, jobID string) (transcription.Status, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.client.FetchStatus(callCtx, jobID)
}

func (o *Orchestrator) write(ctx context.Context, sourceFile, transcript string) (string, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.sink.Write(callCtx, sourceFile, transcript)
}
