package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwarner/jobscout/internal/daemon"
	"github.com/mwarner/jobscout/internal/digest"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scan/digest daemon",
	Long:  "Run scans and digests on the configured cron schedules; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	d := daemon.New(a.orch, a.gate,
		a.cfg.Daemon.ScanSchedule,
		a.cfg.Daemon.DigestSchedule,
		digest.Options{
			MinScore:  a.cfg.Scan.MinMatchScore,
			SendEmpty: a.cfg.Digest.SendEmpty,
		},
		a.logger,
	)

	if err := d.Run(ctx); err != nil {
		return err
	}

	a.logger.Info("goodbye")
	return nil
}
