package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mwarner/jobscout/internal/model"
)

// HostLimiter enforces a minimum delay between requests to the same host.
type HostLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: host
	minDelay time.Duration
}

// NewHostLimiter creates a rate limiter that enforces minDelay between
// consecutive requests to the same host.
func NewHostLimiter(minDelay time.Duration) *HostLimiter {
	return &HostLimiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last request to host.
// Returns an error if the context is cancelled while waiting.
func (r *HostLimiter) Wait(ctx context.Context, host string) error {
	r.mu.Lock()
	last, ok := r.lastCall[host]
	now := time.Now()

	if !ok {
		// First request for this host — no wait needed.
		r.lastCall[host] = now
		r.mu.Unlock()
		return nil
	}

	elapsed := now.Sub(last)
	if elapsed >= r.minDelay {
		r.lastCall[host] = now
		r.mu.Unlock()
		return nil
	}

	// Need to wait for the remainder.
	remaining := r.minDelay - elapsed
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", host, ctx.Err())
	case <-time.After(remaining):
	}

	// Record the actual time after waiting.
	r.mu.Lock()
	r.lastCall[host] = time.Now()
	r.mu.Unlock()

	return nil
}

// Fetcher is a decorator that enforces host-level rate limiting before
// delegating to the wrapped PageFetcher.
type Fetcher struct {
	inner   model.PageFetcher
	limiter *HostLimiter
}

// NewFetcher wraps a PageFetcher with host-level rate limiting. All fetchers
// hitting the same hosts should share the same limiter instance.
func NewFetcher(inner model.PageFetcher, limiter *HostLimiter) *Fetcher {
	return &Fetcher{inner: inner, limiter: limiter}
}

// Fetch waits for the rate limiter to allow a request to the page's host,
// then delegates to the wrapped fetcher.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (model.Page, error) {
	if err := f.limiter.Wait(ctx, hostOf(pageURL)); err != nil {
		return model.Page{}, err
	}
	return f.inner.Fetch(ctx, pageURL)
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return pageURL
	}
	return u.Host
}
