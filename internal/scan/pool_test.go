package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwarner/jobscout/internal/model"
	"github.com/mwarner/jobscout/internal/score"
)

// FakeFetcher serves canned pages, optionally failing or stalling per URL.
type FakeFetcher struct {
	mu          sync.Mutex
	fetched     []string
	errFor      map[string]error
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	onFetch     func(n int) // called with the total fetch count, under mu
}

func (f *FakeFetcher) Fetch(ctx context.Context, url string) (model.Page, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return model.Page{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	n := len(f.fetched)
	if f.onFetch != nil {
		f.onFetch(n)
	}
	err := f.errFor[url]
	f.mu.Unlock()

	if err != nil {
		return model.Page{}, err
	}
	return model.Page{URL: url, Title: "Posting", FullText: "senior golang engineer role"}, nil
}

func (f *FakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// flagToken is a manually flipped cancel token.
type flagToken struct{ flag atomic.Bool }

func (t *flagToken) Cancelled() bool { return t.flag.Load() }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fallbackScorer() *score.Scorer {
	return score.NewScorer(nil, discardLogger())
}

func pendingPostings(n int) []*model.Posting {
	out := make([]*model.Posting, n)
	for i := range out {
		out[i] = &model.Posting{
			ID:         fmt.Sprintf("p%d", i),
			URL:        fmt.Sprintf("https://x/jobs/view/%d", i),
			ScanStatus: model.ScanPending,
		}
	}
	return out
}

func TestRunScansEverythingOnceNoCancel(t *testing.T) {
	fetcher := &FakeFetcher{}
	pool := NewPool(fetcher, fallbackScorer(), 2, time.Minute, 0, discardLogger())
	postings := pendingPostings(5)

	pool.Run(context.Background(), postings, "golang engineer", "", nil, nil)

	for _, p := range postings {
		if !p.Scanned || p.ScanStatus != model.ScanCompleted {
			t.Errorf("posting %s: scanned=%v status=%q", p.ID, p.Scanned, p.ScanStatus)
		}
		if p.MatchScore == nil {
			t.Errorf("posting %s: nil score after scan", p.ID)
		}
	}
	if fetcher.count() != 5 {
		t.Errorf("fetch count = %d, want 5", fetcher.count())
	}
}

func TestRunBoundedConcurrency(t *testing.T) {
	fetcher := &FakeFetcher{delay: 20 * time.Millisecond}
	pool := NewPool(fetcher, fallbackScorer(), 2, time.Minute, 0, discardLogger())

	pool.Run(context.Background(), pendingPostings(6), "go", "", nil, nil)

	if max := fetcher.maxInFlight.Load(); max > 2 {
		t.Errorf("max in-flight fetches = %d, want <= 2", max)
	}
}

func TestRunFailureStillMarksScanned(t *testing.T) {
	fetchErr := &model.HTTPError{StatusCode: 503}
	parseErr := &model.ExtractionError{URL: "u", Err: errors.New("bad shape")}
	fetcher := &FakeFetcher{errFor: map[string]error{
		"https://x/jobs/view/0": fetchErr,
		"https://x/jobs/view/1": parseErr,
		"https://x/jobs/view/2": errors.New("weird"),
	}}
	pool := NewPool(fetcher, fallbackScorer(), 3, time.Minute, 0, discardLogger())
	postings := pendingPostings(3)

	pool.Run(context.Background(), postings, "go", "", nil, nil)

	wantKinds := []model.ErrorKind{model.KindFetch, model.KindParse, model.KindUnknown}
	for i, p := range postings {
		if !p.Scanned || p.ScanStatus != model.ScanFailed {
			t.Errorf("posting %s: scanned=%v status=%q, want scanned error", p.ID, p.Scanned, p.ScanStatus)
		}
		if p.MatchScore == nil || *p.MatchScore != 0 {
			t.Errorf("posting %s: score = %v, want 0", p.ID, p.MatchScore)
		}
		if p.ScanError == nil || p.ScanError.Kind != wantKinds[i] {
			t.Errorf("posting %s: error kind = %+v, want %q", p.ID, p.ScanError, wantKinds[i])
		}
	}
}

func TestRunTimeoutClassified(t *testing.T) {
	fetcher := &FakeFetcher{delay: 200 * time.Millisecond}
	pool := NewPool(fetcher, fallbackScorer(), 1, 20*time.Millisecond, 0, discardLogger())
	postings := pendingPostings(1)

	pool.Run(context.Background(), postings, "go", "", nil, nil)

	p := postings[0]
	if !p.Scanned || p.ScanError == nil || p.ScanError.Kind != model.KindTimeout {
		t.Errorf("timeout not classified: %+v", p.ScanError)
	}
}

func TestRunCancelAfterFirstBatch(t *testing.T) {
	token := &flagToken{}
	fetcher := &FakeFetcher{}
	// Flip the token while batch 1 is resolving; batches 2 and 3 never start.
	fetcher.onFetch = func(n int) {
		if n == 1 {
			token.flag.Store(true)
		}
	}
	pool := NewPool(fetcher, fallbackScorer(), 1, time.Minute, 0, discardLogger())
	postings := pendingPostings(3)

	pool.Run(context.Background(), postings, "go", "", token, nil)

	if !postings[0].Scanned {
		t.Error("batch 1 posting not scanned")
	}
	if postings[1].Scanned || postings[2].Scanned {
		t.Error("postings after cancellation were scanned")
	}
	if fetcher.count() != 1 {
		t.Errorf("fetch count = %d, want 1", fetcher.count())
	}
}

func TestRunPublishesEvents(t *testing.T) {
	fetcher := &FakeFetcher{errFor: map[string]error{
		"https://x/jobs/view/1": errors.New("nope"),
	}}
	pool := NewPool(fetcher, fallbackScorer(), 2, time.Minute, 0, discardLogger())
	postings := pendingPostings(3)

	events := make(chan Event, 32)
	pool.Run(context.Background(), postings, "go", "", nil, events)
	close(events)

	var started, finished, errored, batches int
	for e := range events {
		switch e.Type {
		case EventJobStarted:
			started++
		case EventJobFinished:
			finished++
			if e.ErrKind != "" {
				errored++
			}
		case EventBatchFinished:
			batches++
		}
	}
	if started != 3 || finished != 3 {
		t.Errorf("events started/finished = %d/%d, want 3/3", started, finished)
	}
	if errored != 1 {
		t.Errorf("errored events = %d, want 1", errored)
	}
	if batches != 2 {
		t.Errorf("batch events = %d, want 2", batches)
	}
}
