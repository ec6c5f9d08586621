package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mwarner/jobscout/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearch_Pagination(t *testing.T) {
	total := 5
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := 0
		fmt.Sscanf(r.URL.Query().Get("start"), "%d", &start)

		var jobs []listingJSON
		for i := start; i < total && i < start+2; i++ {
			jobs = append(jobs, listingJSON{
				Title:    fmt.Sprintf("Engineer %d", i),
				Company:  "Acme",
				Location: "Remote",
				URL:      fmt.Sprintf("https://acme.example/jobs/view/%d/", 1000+i),
				PostedAt: "2026-08-01T09:00:00Z",
			})
		}
		json.NewEncoder(w).Encode(listingsResponse{Jobs: jobs, Total: total})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), discardLogger())
	listings, err := c.Search(context.Background(), srv.URL+"/listings?q=backend")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != total {
		t.Fatalf("expected %d listings, got %d", total, len(listings))
	}
	if listings[0].Title != "Engineer 0" || listings[4].Title != "Engineer 4" {
		t.Errorf("unexpected listing order: %v", listings)
	}
	if listings[0].Posted == nil || !listings[0].Posted.Equal(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("expected parsed posted date, got %v", listings[0].Posted)
	}
}

func TestSearch_AuthCheckpoint999(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(999)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), discardLogger())
	_, err := c.Search(context.Background(), srv.URL+"/listings")

	var authErr *model.AuthRequiredError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthRequiredError, got %v", err)
	}
}

func TestSearch_AuthCheckpointRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/authwall" {
			w.Write([]byte(`<html>sign in</html>`))
			return
		}
		http.Redirect(w, r, "/authwall", http.StatusFound)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), discardLogger())
	_, err := c.Search(context.Background(), srv.URL+"/listings")

	var authErr *model.AuthRequiredError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthRequiredError, got %v", err)
	}
}

func TestSearch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>definitely not json</html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), discardLogger())
	_, err := c.Search(context.Background(), srv.URL+"/listings")

	var extractErr *model.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestSearch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), discardLogger())
	_, err := c.Search(context.Background(), srv.URL+"/listings")

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 30*time.Second {
		t.Errorf("expected Retry-After 30s, got %v", httpErr.RetryAfter)
	}
}

func TestFetch_ExtractsText(t *testing.T) {
	page := `<html><head><title>Backend Engineer &amp; SRE</title>
		<script>var tracker = "noise";</script>
		<style>.hidden { display: none; }</style></head>
		<body><h1>Backend Engineer</h1><p>Build distributed systems in Go.</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	p := NewPageClient(srv.Client(), discardLogger())
	got, err := p.Fetch(context.Background(), srv.URL+"/jobs/view/123/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Backend Engineer & SRE" {
		t.Errorf("unexpected title: %q", got.Title)
	}
	if got.FullText != "Backend Engineer & SRE Backend Engineer Build distributed systems in Go." {
		t.Errorf("unexpected content: %q", got.FullText)
	}
}

func TestFetch_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><script>only = "scripts";</script></body></html>`))
	}))
	defer srv.Close()

	p := NewPageClient(srv.Client(), discardLogger())
	_, err := p.Fetch(context.Background(), srv.URL+"/jobs/view/123/")

	var extractErr *model.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPageClient(srv.Client(), discardLogger())
	_, err := p.Fetch(context.Background(), srv.URL+"/jobs/view/123/")

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", httpErr.StatusCode)
	}
}
