package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/farm-marketplace/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume-events",
	Short: "Append account events from the broker to the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := queue.NewConsumer(cfg.RabbitURL, cfg.EventsQueue, cfg.EventsLogDir, logger)
		logger.Info("consuming account events", "queue", cfg.EventsQueue, "log_dir", cfg.EventsLogDir)
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
