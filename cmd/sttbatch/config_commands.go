package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sttbatch/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set WATSON_STT_ENDPOINT_URL, WATSON_STT_API_KEY and MODEL_NAME_STT (or the [watson] keys) before running sttbatch.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and print the resolved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if _, err := os.Stat(ctx.configPath); err != nil {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}

			rows := [][]string{
				{"Source", describeSource(cfg)},
				{"Sink", describeSink(cfg)},
				{"Watson endpoint", cfg.Watson.EndpointURL},
				{"Watson model", cfg.Watson.Model},
				{"Poll interval", cfg.PollInterval().String()},
				{"Concurrency", fmt.Sprint(cfg.Workflow.Concurrency)},
				{"Max attempts", maxAttemptsLabel(cfg.Workflow.MaxAttempts)},
				{"Call timeout", cfg.CallTimeout().String()},
				{"ntfy", yesNo(cfg.Notifications.NtfyTopic != "")},
				{"NATS", yesNo(cfg.Notifications.NATSURL != "")},
				{"Lock file", cfg.LockPath()},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, nil))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func describeSource(cfg *config.Config) string {
	if cfg.Source.Kind == config.SourceS3 {
		return fmt.Sprintf("s3://%s/%s", cfg.S3.Bucket, cfg.S3.InputPrefix)
	}
	return cfg.Paths.InputDir
}

func describeSink(cfg *config.Config) string {
	switch cfg.Sink.Kind {
	case config.SinkSQLite:
		return "sqlite " + cfg.Sink.SQLitePath
	case config.SinkS3:
		return fmt.Sprintf("s3://%s/%s", cfg.S3.Bucket, cfg.S3.OutputPrefix)
	default:
		return cfg.Paths.OutputDir
	}
}

func maxAttemptsLabel(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
