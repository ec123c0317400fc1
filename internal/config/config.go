package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"sttbatch/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Source selects where audio inputs are listed from.
type Source struct {
	Kind       string   `toml:"kind"` // dir or s3
	Include    []string `toml:"include"`
	Exclude    []string `toml:"exclude"`
	SkipHidden bool     `toml:"skip_hidden"`
}

// Sink selects where finished transcripts are written.
type Sink struct {
	Kind       string `toml:"kind"` // file, sqlite or s3
	Extension  string `toml:"extension"`
	SQLitePath string `toml:"sqlite_path"`
}

// S3 contains object storage settings shared by the s3 source and sink.
type S3 struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	Profile         string `toml:"profile"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	ForcePathStyle  bool   `toml:"force_path_style"`
	InputPrefix     string `toml:"input_prefix"`
	OutputPrefix    string `toml:"output_prefix"`
}

// Watson contains the speech-to-text service connection settings.
type Watson struct {
	EndpointURL       string  `toml:"endpoint_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	ContentType       string  `toml:"content_type"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	SubmitRetries     int     `toml:"submit_retries"`
}

// Workflow contains orchestrator pacing and fan-out settings.
type Workflow struct {
	PollInterval int `toml:"poll_interval"`
	Concurrency  int `toml:"concurrency"`
	// MaxAttempts caps submissions per file; 0 keeps resubmitting failed jobs forever.
	MaxAttempts int `toml:"max_attempts"`
}

// Notifications contains ntfy and NATS delivery settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NATSURL        string `toml:"nats_url"`
	NATSSubject    string `toml:"nats_subject"`
	RunEvents      bool   `toml:"run_events"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// RetentionDays prunes per-run log files older than this; 0 keeps them all.
	RetentionDays int `toml:"retention_days"`
}

// Config encapsulates all configuration values for sttbatch.
//
// Configuration sections by subsystem:
//   - Paths: input/output directories, log and state locations
//   - Source: input listing (local directory or S3 prefix)
//   - Sink: transcript destination (files, SQLite archive or S3 prefix)
//   - S3: object storage connection shared by source and sink
//   - Watson: speech-to-text endpoint, credentials and model
//   - Workflow: poll interval, fan-out and attempt ceiling
//   - Notifications: ntfy push notifications and NATS events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Sink          Sink          `toml:"sink"`
	S3            S3            `toml:"s3"`
	Watson        Watson        `toml:"watson"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Every failure is tagged as a configuration error.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, configError("resolve", err)
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, configError("open", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, configError("parse", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, configError("normalize", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, configError("validate", err)
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadEnvFile merges KEY=value pairs from a dotenv file into the process
// environment without overriding variables that are already set. An empty path
// means ".env" in the working directory; a missing default file is not an error.
func LoadEnvFile(path string) (string, bool, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultEnvFile
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, configError("env file", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return expanded, false, nil
		}
		return "", false, configError("env file", err)
	}
	if err := godotenv.Load(expanded); err != nil {
		return "", false, configError("env file", err)
	}
	return expanded, true, nil
}

func configError(operation string, err error) error {
	return services.Wrap(services.ErrConfiguration, "config", operation, "", err)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sttbatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local directories a run writes into.
// The input directory is never created; a missing input directory is reported
// when the source lists it.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir}
	if c.Sink.Kind == SinkFile {
		dirs = append(dirs, c.Paths.OutputDir)
	}
	if c.Sink.Kind == SinkSQLite {
		dirs = append(dirs, filepath.Dir(c.Sink.SQLitePath))
	}
	if c.Paths.LogDir != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the constant pause between polling passes.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// CallTimeout returns the deadline applied to each remote call.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Watson.TimeoutSeconds) * time.Second
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "sttbatch.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "sttbatch")
	}
	return "~/.local/state/sttbatch"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
