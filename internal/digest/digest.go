// Package digest selects qualified postings and performs an idempotent,
// at-least-once notification: postings are marked as sent only after the
// notifier confirms delivery, so a failed send naturally retries the same
// eligible set on the next call.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwarner/jobscout/internal/index"
	"github.com/mwarner/jobscout/internal/model"
)

// Options controls one digest send.
type Options struct {
	MinScore    float64
	IncludeSent bool // resend postings already marked sentInDigest
	SendEmpty   bool // deliver an empty notice when nothing is eligible
	DryRun      bool // select and report, but neither send nor mark
}

// Report summarizes what a send did.
type Report struct {
	Eligible []model.Posting
	Sent     bool
}

// Gate reads the last persisted index, applies the eligibility predicate,
// and drives the notifier.
type Gate struct {
	store    index.Store
	notifier model.Notifier
	logger   *slog.Logger
}

// NewGate creates a digest gate.
func NewGate(store index.Store, notifier model.Notifier, logger *slog.Logger) *Gate {
	return &Gate{store: store, notifier: notifier, logger: logger}
}

// Send builds the eligible set (scanned, completed, score >= MinScore, and
// not previously sent unless IncludeSent), sorted score-descending, delivers
// it, and on confirmed success marks every included posting sent in one
// batched index rewrite. A delivery failure marks nothing, so the next call
// resends the identical set. Zero eligible postings is a valid outcome, not
// an error.
func (g *Gate) Send(ctx context.Context, opts Options) (Report, error) {
	ix, err := g.store.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("loading index for digest: %w", err)
	}

	var eligible []*model.Posting
	for _, p := range ix.Matched(opts.MinScore) {
		if !opts.IncludeSent && p.SentInDigest {
			continue
		}
		eligible = append(eligible, p)
	}

	rep := Report{Eligible: make([]model.Posting, len(eligible))}
	for i, p := range eligible {
		rep.Eligible[i] = *p
	}

	if len(eligible) == 0 && !opts.SendEmpty {
		g.logger.Info("digest: nothing eligible", "min_score", opts.MinScore)
		return rep, nil
	}

	if opts.DryRun {
		g.logger.Info("digest dry run", "eligible", len(eligible))
		return rep, nil
	}

	if err := g.notifier.SendDigest(ctx, rep.Eligible); err != nil {
		// No postings are marked: the same set stays eligible for a retry.
		return rep, fmt.Errorf("sending digest: %w", err)
	}
	rep.Sent = true

	now := time.Now()
	for _, p := range eligible {
		p.SentInDigest = true
		p.DigestSentDate = &now
	}
	ix.LastUpdate = now
	if err := g.store.Save(ctx, ix); err != nil {
		// Delivery happened but the marks did not stick; the next digest
		// will resend. At-least-once, never a silent drop.
		return rep, fmt.Errorf("recording digest marks: %w", err)
	}

	g.logger.Info("digest sent", "postings", len(eligible), "min_score", opts.MinScore)
	return rep, nil
}
