package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mwarner/jobscout/internal/digest"
	"github.com/mwarner/jobscout/internal/identity"
	"github.com/mwarner/jobscout/internal/index"
	"github.com/mwarner/jobscout/internal/model"
)

// ErrScanActive is returned when a scan request arrives while a session is
// already non-idle. The rejection is synchronous and mutates nothing.
var ErrScanActive = errors.New("a scan session is already active")

// DigestSender is the slice of the digest gate the orchestrator drives on a
// completed session.
type DigestSender interface {
	Send(ctx context.Context, opts digest.Options) (digest.Report, error)
}

// Options is the orchestrator's static configuration.
type Options struct {
	SearchURLs    []string
	Profile       string
	Criteria      string
	MaxDeepScans  int           // cap on postings handed to the pool per cycle
	TargetPause   time.Duration // polite pause between search targets
	MinMatchScore float64       // digest threshold used after a completed scan
}

// StartRequest parameterizes one scan run.
type StartRequest struct {
	AdHocURL    string // single ad-hoc target instead of the saved searches
	ForceRescan bool   // reset scanned=false on every existing posting first
	NoNotify    bool   // suppress digest / failure notification
}

// Orchestrator is the top-level state machine. It accepts at most one
// non-idle session at a time; that single-flight gate is the sole source of
// write serialization for the index, so no locking is needed within a run.
type Orchestrator struct {
	search   model.SearchProvider
	pool     *Pool
	store    index.Store
	gate     DigestSender
	notifier model.Notifier
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	active *Session
}

// NewOrchestrator wires an orchestrator with its collaborators.
func NewOrchestrator(search model.SearchProvider, pool *Pool, store index.Store, gate DigestSender, notifier model.Notifier, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.MaxDeepScans <= 0 {
		opts.MaxDeepScans = 10
	}
	return &Orchestrator{
		search:   search,
		pool:     pool,
		store:    store,
		gate:     gate,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// StartScan accepts a scan request and runs the cycle on a new goroutine.
// It returns ErrScanActive when a session is already in flight.
func (o *Orchestrator) StartScan(ctx context.Context, req StartRequest) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil && !o.active.State().Terminal() {
		return nil, ErrScanActive
	}
	s := newSession()
	o.active = s
	go o.run(ctx, s, req)
	return s, nil
}

// Cancel requests cooperative cancellation of the active session. Returns
// false when no session is in flight.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil || o.active.State().Terminal() {
		return false
	}
	o.active.Cancel()
	return true
}

// StatusReport is the externally visible view: the current (or last)
// session plus summary statistics from the last persisted index snapshot.
type StatusReport struct {
	Session Snapshot    `json:"session"`
	Index   index.Stats `json:"index"`
}

// Status returns the current session snapshot and index statistics. Readers
// only ever see the last persisted index state.
func (o *Orchestrator) Status(ctx context.Context) (StatusReport, error) {
	o.mu.Lock()
	s := o.active
	o.mu.Unlock()

	rep := StatusReport{Session: Snapshot{Status: StateIdle}}
	if s != nil {
		rep.Session = s.Snapshot()
	}

	ix, err := o.store.Load(ctx)
	if err != nil {
		return rep, fmt.Errorf("loading index for status: %w", err)
	}
	rep.Index = ix.Stats()
	return rep, nil
}

// run drives one full cycle: search phase, deep-scan phase, then digest or
// failure notification. The index is persisted wholesale at phase
// boundaries, never per posting.
func (o *Orchestrator) run(ctx context.Context, s *Session, req StartRequest) {
	ix, err := o.store.Load(ctx)
	if err != nil {
		o.fail(ctx, s, nil, fmt.Errorf("loading index: %w", err), req)
		return
	}

	if ix.ProfileChanged(o.opts.Profile) {
		// Stale scores are the orchestrator's call to deal with; surface the
		// fact and leave forcing a rescan to the operator.
		warn := "candidate profile changed since last scan; existing match scores are stale (run rescan to refresh)"
		o.logger.Warn(warn)
		s.addWarning(warn)
	}

	if req.ForceRescan {
		ix.ResetScans()
		o.logger.Info("rescan requested, cleared scan state on all postings", "postings", len(ix.Postings))
	}

	targets := o.opts.SearchURLs
	if req.AdHocURL != "" {
		targets = []string{req.AdHocURL}
	}
	if len(targets) == 0 {
		o.fail(ctx, s, ix, errors.New("no search targets configured"), req)
		return
	}

	s.setState(StateRunning)
	if !o.searchPhase(ctx, s, ix, targets, req) {
		return
	}

	if s.Cancelled() {
		o.finishCancelled(ctx, s, ix)
		return
	}

	now := time.Now()
	ix.LastScanDate = &now
	if err := o.store.Save(ctx, ix); err != nil {
		o.fail(ctx, s, nil, fmt.Errorf("persisting index after search phase: %w", err), req)
		return
	}

	o.deepScanPhase(ctx, s, ix)

	if err := o.store.Save(ctx, ix); err != nil {
		o.fail(ctx, s, nil, fmt.Errorf("persisting index after deep scan: %w", err), req)
		return
	}

	if s.Cancelled() {
		s.finish(StateCancelled, nil)
		o.logger.Info("scan cancelled", "session", s.ID(), "completed", s.Snapshot().DeepScan.Completed)
		return
	}

	s.finish(StateCompleted, nil)
	snap := s.Snapshot()
	o.logger.Info("scan completed",
		"session", snap.ID,
		"sources", len(snap.ScannedSources),
		"found", snap.TotalFound,
		"deep_scanned", snap.DeepScan.Completed,
		"errors", snap.DeepScan.Errors,
	)

	if !req.NoNotify && o.gate != nil {
		if _, err := o.gate.Send(ctx, digest.Options{MinScore: o.opts.MinMatchScore}); err != nil {
			// Notifier trouble never changes the session's terminal status.
			o.logger.Error("post-scan digest failed", "error", err)
		}
	}
}

// searchPhase pulls listings from every target and merges them. Returns
// false when the session reached a terminal state.
func (o *Orchestrator) searchPhase(ctx context.Context, s *Session, ix *index.Index, targets []string, req StartRequest) bool {
	for i, target := range targets {
		if s.Cancelled() {
			o.finishCancelled(ctx, s, ix)
			return false
		}

		listings, err := o.search.Search(ctx, target)
		if err != nil {
			var authErr *model.AuthRequiredError
			if errors.As(err, &authErr) {
				// Continuing would waste calls against a provider that
				// cannot authenticate.
				o.persistBestEffort(ctx, ix)
				o.fail(ctx, s, nil, err, req)
				return false
			}
			warn := fmt.Sprintf("search target %s: %v", target, err)
			o.logger.Warn("search target failed, continuing", "target", target, "error", err)
			s.addWarning(warn)
			continue
		}

		batch := make([]model.Posting, len(listings))
		now := time.Now()
		for j, l := range listings {
			batch[j] = model.Posting{
				ID:           identity.DeriveID(l.URL),
				URL:          l.URL,
				Title:        l.Title,
				Company:      l.Company,
				Location:     l.Location,
				SourceQuery:  target,
				DiscoveredAt: now,
				PostedAt:     l.Posted,
			}
		}
		added, updated := ix.Merge(batch, false)
		s.addSource(target)
		s.addFound(len(listings))
		o.logger.Info("search target merged",
			"target", target,
			"listings", len(listings),
			"added", added,
			"updated", updated,
		)

		if i < len(targets)-1 && o.opts.TargetPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.opts.TargetPause):
			}
		}
	}
	return true
}

// deepScanPhase hands the capped unscanned set to the worker pool and
// applies its events to the session.
func (o *Orchestrator) deepScanPhase(ctx context.Context, s *Session, ix *index.Index) {
	unscanned := ix.Unscanned()
	if len(unscanned) > o.opts.MaxDeepScans {
		unscanned = unscanned[:o.opts.MaxDeepScans]
	}

	s.setState(StateDeepScanning)
	s.setProgressTotal(len(unscanned))
	if len(unscanned) == 0 {
		return
	}

	events := make(chan Event, 1)
	var drain sync.WaitGroup
	drain.Add(1)
	go func() {
		defer drain.Done()
		for e := range events {
			switch e.Type {
			case EventJobStarted:
				s.jobStarted(e.PostingID)
			case EventJobFinished:
				s.jobFinished(e.ErrKind != "")
			case EventBatchFinished:
				o.logger.Debug("deep scan batch finished", "batch", e.Batch)
			}
		}
	}()

	o.pool.Run(ctx, unscanned, o.opts.Profile, o.opts.Criteria, s, events)
	close(events)
	drain.Wait()
}

// fail moves the session to failed, optionally persisting merged progress,
// and emits a failure notification unless suppressed.
func (o *Orchestrator) fail(ctx context.Context, s *Session, ix *index.Index, err error, req StartRequest) {
	if ix != nil {
		o.persistBestEffort(ctx, ix)
	}
	s.finish(StateFailed, err)
	o.logger.Error("scan failed", "session", s.ID(), "error", err)

	if !req.NoNotify && o.notifier != nil {
		if nerr := o.notifier.SendFailure(ctx, err); nerr != nil {
			o.logger.Error("failure notification failed", "error", nerr)
		}
	}
}

func (o *Orchestrator) finishCancelled(ctx context.Context, s *Session, ix *index.Index) {
	o.persistBestEffort(ctx, ix)
	s.finish(StateCancelled, nil)
	o.logger.Info("scan cancelled", "session", s.ID())
}

func (o *Orchestrator) persistBestEffort(ctx context.Context, ix *index.Index) {
	if err := o.store.Save(ctx, ix); err != nil {
		o.logger.Error("persisting partial progress failed", "error", err)
	}
}
