package config

const (
	SourceDir = "dir"
	SourceS3  = "s3"

	SinkFile   = "file"
	SinkSQLite = "sqlite"
	SinkS3     = "s3"
)

const (
	defaultConfigPath        = "~/.config/sttbatch/config.toml"
	defaultEnvFile           = ".env"
	defaultInputDir          = "input_files"
	defaultOutputDir         = "output_files"
	defaultTranscriptExt     = ".txt"
	defaultSQLiteName        = "transcripts.db"
	defaultWatsonContentType = "audio/mp3"
	defaultWatsonTimeout     = 30
	defaultWatsonRPS         = 5.0
	defaultWatsonRetries     = 3
	defaultPollInterval      = 1
	defaultConcurrency       = 4
	defaultNotifyTimeout     = 10
	defaultNATSSubject       = "sttbatch.events"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 14
	envWatsonEndpoint        = "WATSON_STT_ENDPOINT_URL"
	envWatsonAPIKey          = "WATSON_STT_API_KEY"
	envWatsonModel           = "MODEL_NAME_STT"
	envNtfyTopic             = "STTBATCH_NTFY_TOPIC"
	envNATSURL               = "STTBATCH_NATS_URL"
	envS3AccessKeyID         = "STTBATCH_S3_ACCESS_KEY_ID"
	envS3SecretAccessKey     = "STTBATCH_S3_SECRET_ACCESS_KEY"
)

// DefaultIncludePatterns lists the audio containers the recognition service accepts.
var DefaultIncludePatterns = []string{"*.mp3", "*.mpeg", "*.wav", "*.flac", "*.ogg", "*.opus", "*.webm"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir(),
		},
		Source: Source{
			Kind:       SourceDir,
			Include:    append([]string(nil), DefaultIncludePatterns...),
			SkipHidden: true,
		},
		Sink: Sink{
			Kind:      SinkFile,
			Extension: defaultTranscriptExt,
		},
		Watson: Watson{
			ContentType:       defaultWatsonContentType,
			TimeoutSeconds:    defaultWatsonTimeout,
			RequestsPerSecond: defaultWatsonRPS,
			SubmitRetries:     defaultWatsonRetries,
		},
		Workflow: Workflow{
			PollInterval: defaultPollInterval,
			Concurrency:  defaultConcurrency,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			NATSSubject:    defaultNATSSubject,
			RunEvents:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
