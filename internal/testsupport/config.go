package testsupport

import (
	"path/filepath"
	"testing"

	"sttbatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Watson credentials point at a placeholder endpoint; use WithWatsonEndpoint
// to aim the client at an httptest server.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input_files")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output_files")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Sink.SQLitePath = filepath.Join(base, "state", "transcripts.db")
	cfgVal.Watson.EndpointURL = "http://127.0.0.1:9/instances/test"
	cfgVal.Watson.APIKey = "test-key"
	cfgVal.Watson.Model = "en-US_BroadbandModel"
	cfgVal.Watson.RequestsPerSecond = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWatsonEndpoint overrides the recognition service URL.
func WithWatsonEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watson.EndpointURL = url
	}
}

// WithSink selects the sink kind.
func WithSink(kind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sink.Kind = kind
	}
}

// WithWorkflow overrides fan-out and the attempt ceiling.
func WithWorkflow(concurrency, maxAttempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Concurrency = concurrency
		b.cfg.Workflow.MaxAttempts = maxAttempts
	}
}

// WithInputFiles writes audio fixtures into the input directory.
func WithInputFiles(names ...string) ConfigOption {
	return func(b *configBuilder) {
		WriteAudioFiles(b.t, b.cfg.Paths.InputDir, names...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
