// Package daemon runs scheduled scan sessions and digests until shutdown.
package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/mwarner/jobscout/internal/digest"
	"github.com/mwarner/jobscout/internal/scan"
)

// Daemon drives the orchestrator and digest gate on cron schedules.
type Daemon struct {
	orch       *scan.Orchestrator
	gate       scan.DigestSender
	scanSpec   string
	digestSpec string
	digestOpts digest.Options
	logger     *slog.Logger
}

// New creates a daemon. Either schedule may be empty to disable that job.
func New(orch *scan.Orchestrator, gate scan.DigestSender, scanSpec, digestSpec string, digestOpts digest.Options, logger *slog.Logger) *Daemon {
	return &Daemon{
		orch:       orch,
		gate:       gate,
		scanSpec:   scanSpec,
		digestSpec: digestSpec,
		digestOpts: digestOpts,
		logger:     logger,
	}
}

// Run registers the schedules and blocks until ctx is cancelled. It returns
// nil on graceful shutdown; in-flight jobs are allowed to finish.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New()

	if d.scanSpec != "" {
		if _, err := c.AddFunc(d.scanSpec, func() { d.runScan(ctx) }); err != nil {
			return fmt.Errorf("invalid scan schedule %q: %w", d.scanSpec, err)
		}
	}
	if d.digestSpec != "" {
		if _, err := c.AddFunc(d.digestSpec, func() { d.runDigest(ctx) }); err != nil {
			return fmt.Errorf("invalid digest schedule %q: %w", d.digestSpec, err)
		}
	}
	if d.scanSpec == "" && d.digestSpec == "" {
		return fmt.Errorf("daemon requires at least one schedule")
	}

	d.logger.Info("daemon started",
		"scan_schedule", d.scanSpec,
		"digest_schedule", d.digestSpec,
	)

	c.Start()
	<-ctx.Done()

	d.logger.Info("shutting down daemon")
	<-c.Stop().Done()
	return nil
}

// runScan kicks off a session and waits for it, so overlapping cron fires
// collapse into the orchestrator's single-flight rejection.
func (d *Daemon) runScan(ctx context.Context) {
	session, err := d.orch.StartScan(ctx, scan.StartRequest{})
	if err != nil {
		d.logger.Warn("scheduled scan not started", "error", err)
		return
	}

	d.logger.Info("scheduled scan started", "session", session.ID())
	select {
	case <-ctx.Done():
	case <-session.Done():
		d.logger.Info("scheduled scan finished", "session", session.ID(), "status", session.State())
	}
}

func (d *Daemon) runDigest(ctx context.Context) {
	report, err := d.gate.Send(ctx, d.digestOpts)
	if err != nil {
		d.logger.Error("scheduled digest failed", "error", err)
		return
	}
	d.logger.Info("scheduled digest complete", "eligible", len(report.Eligible), "sent", report.Sent)
}
