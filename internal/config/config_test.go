package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/config"
	"sttbatch/internal/services"
)

func setWatsonEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WATSON_STT_ENDPOINT_URL", "https://stt.example.com/instances/abc/")
	t.Setenv("WATSON_STT_API_KEY", "secret")
	t.Setenv("MODEL_NAME_STT", "en-US_BroadbandModel")
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaultsUseEnvCredentials(t *testing.T) {
	setWatsonEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_STATE_HOME", "")
	work := t.TempDir()
	chdir(t, work)

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, resolved)
	assert.False(t, exists)

	assert.Equal(t, "https://stt.example.com/instances/abc", cfg.Watson.EndpointURL)
	assert.Equal(t, "secret", cfg.Watson.APIKey)
	assert.Equal(t, "en-US_BroadbandModel", cfg.Watson.Model)
	assert.Equal(t, "audio/mp3", cfg.Watson.ContentType)

	wantInput, err := filepath.Abs("input_files")
	require.NoError(t, err)
	assert.Equal(t, wantInput, cfg.Paths.InputDir)
	assert.Equal(t, filepath.Join(tempHome, ".local", "state", "sttbatch"), cfg.Paths.StateDir)
	assert.Equal(t, config.SourceDir, cfg.Source.Kind)
	assert.Equal(t, config.SinkFile, cfg.Sink.Kind)
	assert.Equal(t, ".txt", cfg.Sink.Extension)
	assert.Equal(t, config.DefaultIncludePatterns, cfg.Source.Include)
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.CallTimeout())
	assert.Equal(t, 0, cfg.Workflow.MaxAttempts)
	assert.Equal(t, 14, cfg.Logging.RetentionDays)

	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	_, err = os.Stat(cfg.Paths.InputDir)
	assert.True(t, errors.Is(err, os.ErrNotExist), "input directory must not be created")
}

func TestLoadCustomPath(t *testing.T) {
	setWatsonEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sttbatch.toml")

	type payload struct {
		Watson struct {
			Model string `toml:"model"`
		} `toml:"watson"`
		Workflow struct {
			PollInterval int `toml:"poll_interval"`
			Concurrency  int `toml:"concurrency"`
			MaxAttempts  int `toml:"max_attempts"`
		} `toml:"workflow"`
		Sink struct {
			Kind      string `toml:"kind"`
			Extension string `toml:"extension"`
		} `toml:"sink"`
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.Watson.Model = "en-GB_Multimedia"
	custom.Workflow.PollInterval = 3
	custom.Workflow.Concurrency = 8
	custom.Workflow.MaxAttempts = 5
	custom.Sink.Kind = "SQLite"
	custom.Sink.Extension = "md"
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")

	data, err := toml.Marshal(custom)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0o644))

	cfg, resolved, exists, err := config.Load(configPath)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, "en-GB_Multimedia", cfg.Watson.Model, "file value wins over env")
	assert.Equal(t, 3*time.Second, cfg.PollInterval())
	assert.Equal(t, 8, cfg.Workflow.Concurrency)
	assert.Equal(t, 5, cfg.Workflow.MaxAttempts)
	assert.Equal(t, config.SinkSQLite, cfg.Sink.Kind)
	assert.Equal(t, ".md", cfg.Sink.Extension)
	assert.Equal(t, filepath.Join(tempDir, "out", "transcripts.db"), cfg.Sink.SQLitePath)
}

func TestLoadMissingCredentialsIsConfigurationError(t *testing.T) {
	t.Setenv("WATSON_STT_ENDPOINT_URL", "")
	t.Setenv("WATSON_STT_API_KEY", "")
	t.Setenv("MODEL_NAME_STT", "")
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	_, _, _, err := config.Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.Contains(t, err.Error(), "watson.endpoint_url")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	setWatsonEnv(t)
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[workflow\npoll_interval = "), 0o644))

	_, _, _, err := config.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestValidateRules(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Watson.EndpointURL = "https://stt.example.com"
		cfg.Watson.APIKey = "k"
		cfg.Watson.Model = "m"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"relative endpoint", func(c *config.Config) { c.Watson.EndpointURL = "stt.example.com" }, "watson.endpoint_url"},
		{"missing key", func(c *config.Config) { c.Watson.APIKey = "" }, "watson.api_key"},
		{"missing model", func(c *config.Config) { c.Watson.Model = "" }, "watson.model"},
		{"unknown source", func(c *config.Config) { c.Source.Kind = "ftp" }, "source.kind"},
		{"bad pattern", func(c *config.Config) { c.Source.Include = []string{"[a-"} }, "not a valid glob"},
		{"unknown sink", func(c *config.Config) { c.Sink.Kind = "stdout" }, "sink.kind"},
		{"s3 without bucket", func(c *config.Config) { c.Sink.Kind = config.SinkS3 }, "s3.bucket"},
		{"half credentials", func(c *config.Config) {
			c.Source.Kind = config.SourceS3
			c.S3.Bucket = "b"
			c.S3.AccessKeyID = "id"
		}, "must be set together"},
		{"zero poll interval", func(c *config.Config) { c.Workflow.PollInterval = 0 }, "workflow.poll_interval"},
		{"zero concurrency", func(c *config.Config) { c.Workflow.Concurrency = 0 }, "workflow.concurrency"},
		{"negative attempts", func(c *config.Config) { c.Workflow.MaxAttempts = -1 }, "workflow.max_attempts"},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(envPath, []byte("WATSON_STT_API_KEY=from-file\nMODEL_NAME_STT=file-model\n"), 0o600))
	t.Setenv("WATSON_STT_API_KEY", "from-env")
	t.Setenv("MODEL_NAME_STT", "")
	require.NoError(t, os.Unsetenv("MODEL_NAME_STT"))

	resolved, loaded, err := config.LoadEnvFile(envPath)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, envPath, resolved)
	assert.Equal(t, "from-env", os.Getenv("WATSON_STT_API_KEY"))
	assert.Equal(t, "file-model", os.Getenv("MODEL_NAME_STT"))
}

func TestLoadEnvFileMissing(t *testing.T) {
	chdir(t, t.TempDir())
	_, loaded, err := config.LoadEnvFile("")
	require.NoError(t, err)
	assert.False(t, loaded)

	_, _, err = config.LoadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestCreateSampleIsLoadable(t *testing.T) {
	setWatsonEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	cfg, _, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 4, cfg.Workflow.Concurrency)
}
