package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session and index statistics",
	RunE:  runStatus,
}

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List postings whose deep scan failed, grouped by error kind",
	RunE:  runFailed,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(failedCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rep, err := a.orch.Status(ctx)
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("session: %s\n", rep.Session.Status)
	if rep.Session.DeepScan.Total > 0 {
		fmt.Printf("  deep scans: %d/%d (%d errors)\n",
			rep.Session.DeepScan.Completed, rep.Session.DeepScan.Total, rep.Session.DeepScan.Errors)
	}
	fmt.Printf("index: %d postings (%d scanned, %d pending, %d errors, %d sent)\n",
		rep.Index.Total, rep.Index.Scanned, rep.Index.Pending, rep.Index.Errors, rep.Index.Sent)
	if rep.Index.LastScan != nil {
		fmt.Printf("last scan: %s\n", rep.Index.LastScan.Format("2006-01-02 15:04"))
	}
	return nil
}

func runFailed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ix, err := a.store.Load(ctx)
	if err != nil {
		return err
	}

	byKind := ix.FailedByKind()
	if len(byKind) == 0 {
		fmt.Println("no failed scans")
		return nil
	}

	for kind, postings := range byKind {
		fmt.Printf("%s (%d):\n", kind, len(postings))
		for _, p := range postings {
			title := p.Title
			if title == "" {
				title = p.URL
			}
			msg := ""
			if p.ScanError != nil {
				msg = p.ScanError.Message
			}
			fmt.Printf("  %s — %s\n", title, msg)
		}
	}
	return nil
}
