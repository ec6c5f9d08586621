package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwarner/jobscout/internal/digest"
)

var (
	digestMinScore    float64
	digestIncludeSent bool
	digestSendEmpty   bool
	digestDryRun      bool
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Assemble and send the digest now",
	Long:  "Send all unsent matched postings to the configured notifier. Postings are only marked sent after a confirmed delivery.",
	RunE:  runDigest,
}

func init() {
	digestCmd.Flags().Float64Var(&digestMinScore, "min-score", 0, "override the configured match threshold")
	digestCmd.Flags().BoolVar(&digestIncludeSent, "include-sent", false, "re-include postings already digested")
	digestCmd.Flags().BoolVar(&digestSendEmpty, "send-empty", false, "send the digest even when nothing matched")
	digestCmd.Flags().BoolVar(&digestDryRun, "dry-run", false, "print what would be sent without sending or marking")
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	minScore := digestMinScore
	if minScore == 0 {
		minScore = a.cfg.Scan.MinMatchScore
	}

	report, err := a.gate.Send(ctx, digest.Options{
		MinScore:    minScore,
		IncludeSent: digestIncludeSent || a.cfg.Digest.IncludeSent,
		SendEmpty:   digestSendEmpty || a.cfg.Digest.SendEmpty,
		DryRun:      digestDryRun,
	})
	if err != nil {
		return err
	}

	if digestDryRun {
		fmt.Printf("dry run: %d posting(s) eligible\n", len(report.Eligible))
		return nil
	}
	if report.Sent {
		fmt.Printf("digest sent: %d posting(s)\n", len(report.Eligible))
	} else {
		fmt.Println("nothing to send")
	}
	return nil
}
