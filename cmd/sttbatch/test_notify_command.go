package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sttbatch/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to every configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if cfg.Notifications.NtfyTopic == "" && cfg.Notifications.NATSURL == "" {
				fmt.Fprintln(out, "No notification channels configured")
				return nil
			}
			notifier, err := notifications.NewService(cfg)
			if err != nil {
				return err
			}
			defer notifier.Close()
			if err := notifier.Publish(cmd.Context(), notifications.EventTestNotification, notifications.Payload{}); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
