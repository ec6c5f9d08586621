package scan

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/mwarner/jobscout/internal/model"
	"github.com/mwarner/jobscout/internal/score"
)

// EventType classifies worker pool events.
type EventType string

const (
	EventJobStarted    EventType = "job_started"
	EventJobFinished   EventType = "job_finished"
	EventBatchFinished EventType = "batch_finished"
)

// Event is published by the pool after each job and batch boundary. The
// orchestrator owns the channel and applies events to the session, keeping
// the pool decoupled from any status surface.
type Event struct {
	Type      EventType
	PostingID string
	Batch     int
	ErrKind   model.ErrorKind // set when a job finished in error
	Message   string
}

// Pool deep-scans unscanned postings in fixed-size batches. All jobs in a
// batch run concurrently; the next batch only starts once every job in the
// previous one has resolved, with a short pause in between to respect
// external rate limits.
type Pool struct {
	fetcher     model.PageFetcher
	scorer      *score.Scorer
	concurrency int
	jobTimeout  time.Duration
	batchPause  time.Duration
	logger      *slog.Logger
}

// NewPool creates a worker pool. concurrency values below 1 are raised to 1.
func NewPool(fetcher model.PageFetcher, scorer *score.Scorer, concurrency int, jobTimeout, batchPause time.Duration, logger *slog.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	return &Pool{
		fetcher:     fetcher,
		scorer:      scorer,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		batchPause:  batchPause,
		logger:      logger,
	}
}

// Run processes postings in order, mutating each in place: on any outcome
// the posting ends up scanned=true, so it is never silently retried. The
// cancel token is checked before each batch and before starting each job,
// never mid-call. Each goroutine touches only its own posting; shared
// progress flows through events.
func (p *Pool) Run(ctx context.Context, postings []*model.Posting, profile, criteria string, cancel CancelToken, events chan<- Event) {
	batchNo := 0
	for start := 0; start < len(postings); start += p.concurrency {
		if p.stopped(ctx, cancel) {
			return
		}
		batchNo++

		end := min(start+p.concurrency, len(postings))
		var wg sync.WaitGroup
		for _, posting := range postings[start:end] {
			if p.stopped(ctx, cancel) {
				break
			}
			wg.Add(1)
			go func(pst *model.Posting) {
				defer wg.Done()
				p.scanOne(ctx, pst, profile, criteria, events)
			}(posting)
		}
		wg.Wait()

		publish(events, Event{Type: EventBatchFinished, Batch: batchNo})

		if end < len(postings) && p.batchPause > 0 && !p.stopped(ctx, cancel) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.batchPause):
			}
		}
	}
}

func (p *Pool) stopped(ctx context.Context, cancel CancelToken) bool {
	return ctx.Err() != nil || (cancel != nil && cancel.Cancelled())
}

type scanOutcome struct {
	page model.Page
	res  score.Result
	err  error
}

// scanOne fetches and scores a single posting, racing the fetch+score
// sequence against the per-job wall-clock timeout. A timeout converts to a
// classified error rather than hanging the batch.
func (p *Pool) scanOne(ctx context.Context, pst *model.Posting, profile, criteria string, events chan<- Event) {
	publish(events, Event{Type: EventJobStarted, PostingID: pst.ID})

	jctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	done := make(chan scanOutcome, 1)
	go func() {
		page, err := p.fetcher.Fetch(jctx, pst.URL)
		if err != nil {
			done <- scanOutcome{err: err}
			return
		}
		done <- scanOutcome{page: page, res: p.scorer.Score(jctx, page, profile, criteria)}
	}()

	var out scanOutcome
	select {
	case out = <-done:
	case <-jctx.Done():
		out = scanOutcome{err: jctx.Err()}
	}

	now := time.Now()
	pst.Scanned = true
	pst.ScanDate = &now

	if out.err != nil {
		kind := classifyErr(out.err)
		zero := 0.0
		pst.ScanStatus = model.ScanFailed
		pst.MatchScore = &zero
		pst.MatchReason = ""
		pst.ScanError = &model.ScanError{Kind: kind, Message: out.err.Error(), Timestamp: now}
		p.logger.Warn("deep scan failed",
			"posting", pst.ID,
			"kind", string(kind),
			"error", out.err,
		)
		publish(events, Event{Type: EventJobFinished, PostingID: pst.ID, ErrKind: kind, Message: out.err.Error()})
		return
	}

	pst.ScanStatus = model.ScanCompleted
	applyResult(pst, out.page, out.res)
	sc := out.res.Score
	pst.MatchScore = &sc
	pst.MatchReason = out.res.Reason

	p.logger.Debug("deep scan completed",
		"posting", pst.ID,
		"score", out.res.Score,
		"fallback", out.res.Fallback,
	)
	publish(events, Event{Type: EventJobFinished, PostingID: pst.ID})
}

// applyResult overlays the scorer's extracted fields onto the posting.
// LLM-extracted values take precedence over scraped ones; empty extraction
// fields leave the scraped values alone.
func applyResult(pst *model.Posting, page model.Page, res score.Result) {
	if res.Title != "" {
		pst.Title = res.Title
	} else if pst.Title == "" {
		pst.Title = page.Title
	}
	if res.Company != "" {
		pst.Company = res.Company
	}
	if res.Location != "" {
		pst.Location = res.Location
	}
	if res.Description != "" {
		pst.Description = res.Description
	}
	if len(res.Requirements) > 0 {
		pst.Requirements = res.Requirements
	}
	if res.Salary != "" {
		pst.Salary = res.Salary
	}
}

// classifyErr maps a job failure onto the closed error taxonomy.
func classifyErr(err error) model.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.KindTimeout
	case isExtraction(err):
		return model.KindParse
	case isNetwork(err):
		return model.KindFetch
	default:
		return model.KindUnknown
	}
}

func isExtraction(err error) bool {
	var ee *model.ExtractionError
	return errors.As(err, &ee)
}

func isNetwork(err error) bool {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func publish(events chan<- Event, e Event) {
	if events != nil {
		events <- e
	}
}
