package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mwarner/jobscout/internal/model"
)

// Pages larger than this are truncated before scoring; posting bodies are
// small and anything beyond it is boilerplate.
const maxPageBytes = 512 * 1024

// PageClient fetches a single posting page and reduces it to scoring input.
type PageClient struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPageClient creates a posting page fetcher over the given HTTP client.
func NewPageClient(httpClient *http.Client, logger *slog.Logger) *PageClient {
	return &PageClient{httpClient: httpClient, logger: logger}
}

// Fetch downloads the posting at url and returns its text content.
func (p *PageClient) Fetch(ctx context.Context, url string) (model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Page{}, fmt.Errorf("page request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return model.Page{}, fmt.Errorf("page request for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if isAuthCheckpoint(resp) {
		return model.Page{}, &model.AuthRequiredError{URL: url}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return model.Page{}, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return model.Page{}, &model.HTTPError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return model.Page{}, fmt.Errorf("reading page %s: %w", url, err)
	}

	text := extractText(string(raw))
	if strings.TrimSpace(text) == "" {
		return model.Page{}, &model.ExtractionError{URL: url, Err: fmt.Errorf("no text content")}
	}

	page := model.Page{
		Title:    extractTitle(string(raw)),
		URL:      url,
		FullText: text,
	}
	p.logger.Debug("page fetched", "url", url, "bytes", len(raw))
	return page, nil
}
