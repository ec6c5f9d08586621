package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mwarner/jobscout/internal/model"
	"github.com/mwarner/jobscout/internal/review"
)

var reviewMinScore float64

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse matched postings and scan failures interactively",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().Float64Var(&reviewMinScore, "min-score", 0, "only show matches at or above this score")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
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

	var matched []model.Posting
	for _, p := range ix.Matched(reviewMinScore) {
		matched = append(matched, *p)
	}

	var failed []model.Posting
	for _, group := range ix.FailedByKind() {
		for _, p := range group {
			failed = append(failed, *p)
		}
	}

	return review.Run(matched, failed)
}
