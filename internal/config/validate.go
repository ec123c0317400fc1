package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWatson(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateSink(); err != nil {
		return err
	}
	if err := c.validateS3(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWatson() error {
	if c.Watson.EndpointURL == "" {
		return fmt.Errorf("watson.endpoint_url is required. Set %s in the environment or .env file, or edit %s (create with 'sttbatch config init')", envWatsonEndpoint, c.configHint())
	}
	parsed, err := url.Parse(c.Watson.EndpointURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("watson.endpoint_url must be an absolute http(s) URL, got %q", c.Watson.EndpointURL)
	}
	if c.Watson.APIKey == "" {
		return fmt.Errorf("watson.api_key is required. Set %s in the environment or .env file", envWatsonAPIKey)
	}
	if c.Watson.Model == "" {
		return fmt.Errorf("watson.model is required. Set %s in the environment or .env file", envWatsonModel)
	}
	if c.Watson.TimeoutSeconds <= 0 {
		return errors.New("watson.timeout_seconds must be positive")
	}
	if c.Watson.RequestsPerSecond < 0 {
		return errors.New("watson.requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateSource() error {
	switch c.Source.Kind {
	case SourceDir, SourceS3:
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceDir, SourceS3, c.Source.Kind)
	}
	for _, pattern := range append(append([]string{}, c.Source.Include...), c.Source.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("source pattern %q is not a valid glob", pattern)
		}
	}
	return nil
}

func (c *Config) validateSink() error {
	switch c.Sink.Kind {
	case SinkFile, SinkSQLite, SinkS3:
	default:
		return fmt.Errorf("sink.kind must be one of %q, %q, %q, got %q", SinkFile, SinkSQLite, SinkS3, c.Sink.Kind)
	}
	if strings.ContainsAny(c.Sink.Extension, `/\`) {
		return errors.New("sink.extension must not contain path separators")
	}
	return nil
}

func (c *Config) validateS3() error {
	if c.Source.Kind != SourceS3 && c.Sink.Kind != SinkS3 {
		return nil
	}
	if c.S3.Bucket == "" {
		return errors.New("s3.bucket must be set when source.kind or sink.kind is s3")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return errors.New("s3.access_key_id and s3.secret_access_key must be set together")
	}
	if c.S3.Endpoint != "" {
		parsed, err := url.Parse(c.S3.Endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("s3.endpoint must be an absolute URL, got %q", c.S3.Endpoint)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.concurrency":          c.Workflow.Concurrency,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.MaxAttempts < 0 {
		return errors.New("workflow.max_attempts must be >= 0 (0 disables the ceiling)")
	}
	return nil
}

func (c *Config) configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
