package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mwarner/jobscout/internal/model"
)

type scriptedFetcher struct {
	calls int
	errs  []error
	page  model.Page
}

func (s *scriptedFetcher) Fetch(ctx context.Context, url string) (model.Page, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return model.Page{}, s.errs[s.calls-1]
	}
	return s.page, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch_SucceedsAfterTransientErrors(t *testing.T) {
	inner := &scriptedFetcher{
		errs: []error{
			&model.HTTPError{StatusCode: 503},
			&model.HTTPError{StatusCode: 500},
		},
		page: model.Page{FullText: "ok"},
	}
	f := NewFetcher(inner, 2, time.Millisecond, discardLogger())

	page, err := f.Fetch(context.Background(), "https://acme.example/jobs/view/1/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.FullText != "ok" {
		t.Errorf("unexpected page: %+v", page)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	inner := &scriptedFetcher{
		errs: []error{
			&model.HTTPError{StatusCode: 503},
			&model.HTTPError{StatusCode: 503},
			&model.HTTPError{StatusCode: 503},
		},
	}
	f := NewFetcher(inner, 2, time.Millisecond, discardLogger())

	_, err := f.Fetch(context.Background(), "https://acme.example/jobs/view/1/")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestFetch_NonRetryableErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"not found", &model.HTTPError{StatusCode: 404}},
		{"auth wall", &model.AuthRequiredError{URL: "https://acme.example/authwall"}},
		{"extraction", &model.ExtractionError{URL: "https://acme.example/jobs/view/1/", Err: errors.New("no text")}},
		{"cancelled", context.Canceled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inner := &scriptedFetcher{errs: []error{tc.err, tc.err, tc.err}}
			f := NewFetcher(inner, 2, time.Millisecond, discardLogger())

			_, err := f.Fetch(context.Background(), "https://acme.example/jobs/view/1/")
			if err == nil {
				t.Fatal("expected error")
			}
			if inner.calls != 1 {
				t.Errorf("expected no retries, got %d attempts", inner.calls)
			}
		})
	}
}

func TestBackoffDelay_HonorsRetryAfter(t *testing.T) {
	f := NewFetcher(nil, 2, time.Second, discardLogger())

	got := f.backoffDelay(1, &model.HTTPError{StatusCode: 429, RetryAfter: 42 * time.Second})
	if got != 42*time.Second {
		t.Errorf("expected Retry-After to win, got %v", got)
	}
}

func TestBackoffDelay_Exponential(t *testing.T) {
	f := NewFetcher(nil, 3, time.Second, discardLogger())

	// attempt 3 => base 4s, jitter keeps it within ±30%.
	got := f.backoffDelay(3, &model.HTTPError{StatusCode: 503})
	if got < 2800*time.Millisecond || got > 5200*time.Millisecond {
		t.Errorf("delay %v outside jitter window for attempt 3", got)
	}
}
