// Package search holds the HTTP collaborators the scan core pulls listings
// and posting content through.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mwarner/jobscout/internal/model"
)

// Listing endpoints paginate with a start offset; maxPages bounds how deep a
// single target is walked.
const defaultMaxPages = 10

// Client pulls raw listings from a board-style JSON listings endpoint.
type Client struct {
	httpClient *http.Client
	maxPages   int
	logger     *slog.Logger
}

// NewClient creates a search provider over the given HTTP client.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{httpClient: httpClient, maxPages: defaultMaxPages, logger: logger}
}

// listingsResponse is the expected listings endpoint shape.
type listingsResponse struct {
	Jobs  []listingJSON `json:"jobs"`
	Total int           `json:"total"`
}

type listingJSON struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	URL      string `json:"url"`
	PostedAt string `json:"postedAt"`
}

// Search walks the paginated listings endpoint at target and normalizes the
// results. An authentication/verification checkpoint surfaces as
// *model.AuthRequiredError; an unexpected response shape as
// *model.ExtractionError.
func (c *Client) Search(ctx context.Context, target string) ([]model.Listing, error) {
	var all []model.Listing

	for page := 0; page < c.maxPages; page++ {
		pageURL, err := withStart(target, len(all))
		if err != nil {
			return nil, &model.ExtractionError{URL: target, Err: err}
		}

		resp, total, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		for _, j := range resp {
			l := model.Listing{
				Title:    j.Title,
				Company:  j.Company,
				Location: j.Location,
				URL:      j.URL,
			}
			if j.PostedAt != "" {
				if t, err := time.Parse(time.RFC3339, j.PostedAt); err == nil {
					l.Posted = &t
				}
			}
			all = append(all, l)
		}

		if len(resp) == 0 || (total > 0 && len(all) >= total) {
			break
		}
	}

	c.logger.Debug("search target walked", "target", target, "listings", len(all))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]listingJSON, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("search request for %s: %w", pageURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search request for %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if isAuthCheckpoint(resp) {
		return nil, 0, &model.AuthRequiredError{URL: pageURL}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, 0, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, &model.HTTPError{StatusCode: resp.StatusCode}
	}

	var body listingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, &model.ExtractionError{URL: pageURL, Err: err}
	}
	return body.Jobs, body.Total, nil
}

// isAuthCheckpoint detects a login/verification wall: the provider's
// non-standard 999 status, or a redirect that landed on an auth page.
func isAuthCheckpoint(resp *http.Response) bool {
	if resp.StatusCode == 999 {
		return true
	}
	if resp.Request == nil || resp.Request.URL == nil {
		return false
	}
	path := strings.ToLower(resp.Request.URL.Path)
	return strings.Contains(path, "login") ||
		strings.Contains(path, "authwall") ||
		strings.Contains(path, "checkpoint")
}

// withStart returns target with its pagination offset set.
func withStart(target string, offset int) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("start", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
