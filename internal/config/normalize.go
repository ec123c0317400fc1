package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	if err := c.normalizeSink(); err != nil {
		return err
	}
	c.normalizeS3()
	c.normalizeWatson()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		c.Paths.InputDir = defaultInputDir
	}
	if c.Paths.InputDir, err = expandPath(strings.TrimSpace(c.Paths.InputDir)); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = SourceDir
	}
	c.Source.Include = trimPatterns(c.Source.Include)
	if len(c.Source.Include) == 0 {
		c.Source.Include = append([]string(nil), DefaultIncludePatterns...)
	}
	c.Source.Exclude = trimPatterns(c.Source.Exclude)
}

func (c *Config) normalizeSink() error {
	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	if c.Sink.Kind == "" {
		c.Sink.Kind = SinkFile
	}
	c.Sink.Extension = strings.TrimSpace(c.Sink.Extension)
	if c.Sink.Extension == "" {
		c.Sink.Extension = defaultTranscriptExt
	}
	if !strings.HasPrefix(c.Sink.Extension, ".") {
		c.Sink.Extension = "." + c.Sink.Extension
	}
	c.Sink.SQLitePath = strings.TrimSpace(c.Sink.SQLitePath)
	if c.Sink.SQLitePath == "" {
		c.Sink.SQLitePath = filepath.Join(c.Paths.OutputDir, defaultSQLiteName)
	}
	var err error
	if c.Sink.SQLitePath, err = expandPath(c.Sink.SQLitePath); err != nil {
		return fmt.Errorf("sink.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeS3() {
	c.S3.Bucket = strings.TrimSpace(c.S3.Bucket)
	c.S3.Region = strings.TrimSpace(c.S3.Region)
	c.S3.Endpoint = strings.TrimRight(strings.TrimSpace(c.S3.Endpoint), "/")
	c.S3.Profile = strings.TrimSpace(c.S3.Profile)
	c.S3.AccessKeyID = strings.TrimSpace(c.S3.AccessKeyID)
	if c.S3.AccessKeyID == "" {
		if value, ok := os.LookupEnv(envS3AccessKeyID); ok {
			c.S3.AccessKeyID = strings.TrimSpace(value)
		}
	}
	c.S3.SecretAccessKey = strings.TrimSpace(c.S3.SecretAccessKey)
	if c.S3.SecretAccessKey == "" {
		if value, ok := os.LookupEnv(envS3SecretAccessKey); ok {
			c.S3.SecretAccessKey = strings.TrimSpace(value)
		}
	}
	c.S3.InputPrefix = normalizePrefix(c.S3.InputPrefix)
	c.S3.OutputPrefix = normalizePrefix(c.S3.OutputPrefix)
}

func (c *Config) normalizeWatson() {
	c.Watson.EndpointURL = strings.TrimSpace(c.Watson.EndpointURL)
	if c.Watson.EndpointURL == "" {
		if value, ok := os.LookupEnv(envWatsonEndpoint); ok {
			c.Watson.EndpointURL = strings.TrimSpace(value)
		}
	}
	c.Watson.EndpointURL = strings.TrimRight(c.Watson.EndpointURL, "/")
	c.Watson.APIKey = strings.TrimSpace(c.Watson.APIKey)
	if c.Watson.APIKey == "" {
		if value, ok := os.LookupEnv(envWatsonAPIKey); ok {
			c.Watson.APIKey = strings.TrimSpace(value)
		}
	}
	c.Watson.Model = strings.TrimSpace(c.Watson.Model)
	if c.Watson.Model == "" {
		if value, ok := os.LookupEnv(envWatsonModel); ok {
			c.Watson.Model = strings.TrimSpace(value)
		}
	}
	c.Watson.ContentType = strings.TrimSpace(c.Watson.ContentType)
	if c.Watson.ContentType == "" {
		c.Watson.ContentType = defaultWatsonContentType
	}
	if c.Watson.SubmitRetries < 0 {
		c.Watson.SubmitRetries = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.NATSURL = strings.TrimSpace(c.Notifications.NATSURL)
	if c.Notifications.NATSURL == "" {
		if value, ok := os.LookupEnv(envNATSURL); ok {
			c.Notifications.NATSURL = strings.TrimSpace(value)
		}
	}
	c.Notifications.NATSSubject = strings.TrimSpace(c.Notifications.NATSSubject)
	if c.Notifications.NATSSubject == "" {
		c.Notifications.NATSSubject = defaultNATSSubject
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func trimPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	seen := make(map[string]struct{}, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, ok := seen[pattern]; ok {
			continue
		}
		seen[pattern] = struct{}{}
		out = append(out, pattern)
	}
	return out
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
