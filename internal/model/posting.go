package model

import (
	"context"
	"time"
)

// ScanStatus tracks the outcome of a posting's deep scan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "error"
)

// ErrorKind is the closed taxonomy of per-posting scan failures.
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindFetch   ErrorKind = "fetch_error"
	KindParse   ErrorKind = "parse_error"
	KindUnknown ErrorKind = "unknown"
)

// ScanError records why a posting's deep scan failed.
type ScanError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Posting is one discovered job listing with its identity, scan state,
// match results, and digest bookkeeping.
type Posting struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	Location     string     `json:"location,omitempty"`
	SourceQuery  string     `json:"sourceQuery,omitempty"`
	DiscoveredAt time.Time  `json:"discoveredAt"`
	PostedAt     *time.Time `json:"postedAt,omitempty"`

	Scanned    bool       `json:"scanned"`
	ScanStatus ScanStatus `json:"scanStatus,omitempty"`
	ScanDate   *time.Time `json:"scanDate,omitempty"`
	ScanError  *ScanError `json:"scanError,omitempty"`

	// MatchScore is non-nil only once the posting has been scanned.
	MatchScore   *float64 `json:"matchScore,omitempty"`
	MatchReason  string   `json:"matchReason,omitempty"`
	Description  string   `json:"description,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	Salary       string   `json:"salary,omitempty"`

	SentInDigest   bool       `json:"sentInDigest"`
	DigestSentDate *time.Time `json:"digestSentDate,omitempty"`
}

// Score returns the match score, or 0 when the posting has not been scored.
func (p *Posting) Score() float64 {
	if p.MatchScore == nil {
		return 0
	}
	return *p.MatchScore
}

// Listing is one raw search result before it is merged into the index.
type Listing struct {
	Title    string     `json:"title"`
	Company  string     `json:"company"`
	Location string     `json:"location"`
	URL      string     `json:"url"`
	Posted   *time.Time `json:"posted,omitempty"`
}

// Page is the fetched full content of a single posting.
type Page struct {
	Title    string
	URL      string
	FullText string
}

// SearchProvider turns one search target URL into raw listings.
// It may fail with *AuthRequiredError when the source demands a
// login/verification checkpoint.
type SearchProvider interface {
	Search(ctx context.Context, url string) ([]Listing, error)
}

// PageFetcher retrieves the full content of a single posting.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// ScoringProvider submits posting content and the candidate profile to an
// LLM and returns the raw response text. No structural guarantee on the
// returned string; callers must parse defensively.
type ScoringProvider interface {
	Score(ctx context.Context, content, profile, criteria string) (string, error)
}

// Notifier delivers digests and failure notices to the configured recipient.
type Notifier interface {
	SendDigest(ctx context.Context, postings []Posting) error
	SendFailure(ctx context.Context, sessionErr error) error
}
