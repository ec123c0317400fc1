package preflight

import (
	"context"

	"sttbatch/internal/config"
	"sttbatch/internal/services/watson"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Bucket is the object store surface the S3 check needs.
type Bucket interface {
	Ping(ctx context.Context) error
	Bucket() string
}

// RunAll executes every check that applies to cfg. bucket may be nil when
// neither the source nor the sink uses S3.
func RunAll(ctx context.Context, cfg *config.Config, bucket Bucket) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if cfg.Source.Kind == config.SourceDir {
		results = append(results, CheckDirectoryAccess("Input directory", cfg.Paths.InputDir, false))
	}
	switch cfg.Sink.Kind {
	case config.SinkFile:
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir, true))
	case config.SinkSQLite:
		results = append(results, CheckSQLiteTarget(cfg.Sink.SQLitePath))
	}
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir, true))

	client := watson.NewClient(watson.Config{
		EndpointURL:    cfg.Watson.EndpointURL,
		APIKey:         cfg.Watson.APIKey,
		Model:          cfg.Watson.Model,
		TimeoutSeconds: cfg.Watson.TimeoutSeconds,
	})
	results = append(results, CheckWatson(ctx, client, cfg.Watson.Model))

	if cfg.Source.Kind == config.SourceS3 || cfg.Sink.Kind == config.SinkS3 {
		results = append(results, CheckBucket(ctx, bucket))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
