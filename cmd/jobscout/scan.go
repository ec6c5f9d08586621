package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwarner/jobscout/internal/scan"
)

var (
	scanURL      string
	scanNoNotify bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle now",
	Long:  "Walk the configured searches, deep-scan unscanned postings, and send the digest. Ctrl-C requests cooperative cancellation; completed work is kept.",
	RunE:  func(cmd *cobra.Command, args []string) error { return runScan(false) },
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Re-scan every known posting",
	Long:  "Clear scan state on all postings (digest history is kept) and run a full cycle.",
	RunE:  func(cmd *cobra.Command, args []string) error { return runScan(true) },
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, rescanCmd} {
		c.Flags().StringVar(&scanURL, "url", "", "scan a single ad-hoc search URL instead of the saved searches")
		c.Flags().BoolVar(&scanNoNotify, "no-notify", false, "skip the digest and failure notification")
		rootCmd.AddCommand(c)
	}
}

func runScan(force bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	session, err := a.orch.StartScan(ctx, scan.StartRequest{
		AdHocURL:    scanURL,
		ForceRescan: force,
		NoNotify:    scanNoNotify,
	})
	if err != nil {
		return err
	}
	a.logger.Info("scan session started", "session", session.ID())

	// First signal cancels cooperatively; the session still drains to a
	// terminal state before we report.
	go func() {
		<-ctx.Done()
		if a.orch.Cancel() {
			a.logger.Warn("cancellation requested, finishing current batch")
		}
	}()

	<-session.Done()
	printSessionResult(session)

	if session.State() == scan.StateFailed {
		os.Exit(1)
	}
	return nil
}

func printSessionResult(session *scan.Session) {
	snap := session.Snapshot()

	fmt.Printf("session %s: %s\n", snap.ID, snap.Status)
	fmt.Printf("  sources scanned: %d\n", len(snap.ScannedSources))
	fmt.Printf("  postings found:  %d\n", snap.TotalFound)
	fmt.Printf("  deep scans:      %d/%d (%d errors)\n",
		snap.DeepScan.Completed, snap.DeepScan.Total, snap.DeepScan.Errors)
	for _, w := range snap.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if snap.Error != "" {
		fmt.Printf("  error: %s\n", snap.Error)
	}
}
