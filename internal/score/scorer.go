// Package score judges the relevance of a posting against the candidate
// profile. Scoring is two-tier: an LLM provider produces a structured
// judgment, and a deterministic local scorer takes over on any provider or
// parse failure, so the deep-scan pipeline never stalls on an external
// dependency.
package score

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/mwarner/jobscout/internal/model"
)

// Result is a relevance judgment plus the fields the LLM extracted from the
// posting content. Extraction fields are empty when the fallback produced
// the result.
type Result struct {
	Title        string
	Company      string
	Location     string
	Description  string
	Salary       string
	Requirements []string
	Score        float64
	Reason       string
	Fallback     bool
}

// Scorer wraps a ScoringProvider with defensive parsing and the local
// fallback.
type Scorer struct {
	provider model.ScoringProvider
	logger   *slog.Logger
}

// NewScorer creates a scorer. provider may be nil, in which case every call
// uses the fallback.
func NewScorer(provider model.ScoringProvider, logger *slog.Logger) *Scorer {
	return &Scorer{provider: provider, logger: logger}
}

// Score judges page against the profile. It never returns an error: any
// provider failure, unparseable response, or missing score degrades to the
// fallback scorer.
func (s *Scorer) Score(ctx context.Context, page model.Page, profile, criteria string) Result {
	if s.provider == nil {
		return s.local(page, profile, criteria)
	}

	raw, err := s.provider.Score(ctx, page.FullText, profile, criteria)
	if err != nil {
		s.logger.Warn("scoring provider failed, using fallback", "url", page.URL, "error", err)
		return s.local(page, profile, criteria)
	}

	res, ok := parseResult(raw)
	if !ok {
		s.logger.Warn("unparseable scoring response, using fallback", "url", page.URL)
		return s.local(page, profile, criteria)
	}

	res.Score = clamp01(res.Score)
	return res
}

func (s *Scorer) local(page model.Page, profile, criteria string) Result {
	score, reason := Fallback(page.FullText, profile, criteria)
	return Result{Score: score, Reason: reason, Fallback: true}
}

// flexFloat tolerates a score arriving as a JSON number or a quoted string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// rawResult is the JSON shape the prompt asks the LLM for. Nothing enforces
// it server-side, hence the defensive extraction below.
type rawResult struct {
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	Salary       string    `json:"salary"`
	Requirements []string  `json:"requirements"`
	MatchScore   flexFloat `json:"matchScore"`
	MatchReason  string    `json:"matchReason"`
}

// parseResult cleans raw response text and scans it for the first
// brace-delimited JSON object containing the key "matchScore". Returns
// ok=false when no such object parses.
func parseResult(raw string) (Result, bool) {
	cleaned := cleanRaw(raw)

	for start := 0; ; {
		i := strings.Index(cleaned[start:], "{")
		if i < 0 {
			return Result{}, false
		}
		i += start

		obj, end := balancedObject(cleaned, i)
		if end < 0 {
			return Result{}, false
		}
		start = i + 1

		if !strings.Contains(obj, `"matchScore"`) {
			continue
		}

		var rr rawResult
		if err := json.Unmarshal([]byte(obj), &rr); err != nil {
			continue
		}
		return Result{
			Title:        rr.Title,
			Company:      rr.Company,
			Location:     rr.Location,
			Description:  rr.Description,
			Salary:       rr.Salary,
			Requirements: rr.Requirements,
			Score:        float64(rr.MatchScore),
			Reason:       rr.MatchReason,
		}, true
	}
}

// balancedObject returns the brace-balanced object starting at s[i] and the
// index just past its closing brace, honoring JSON string/escape state.
// end is -1 when the object never closes.
func balancedObject(s string, i int) (string, int) {
	depth := 0
	inString := false
	escaped := false
	for j := i; j < len(s); j++ {
		c := s[j]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[i : j+1], j + 1
				}
			}
		}
	}
	return "", -1
}

// cleanRaw normalizes LLM response text before JSON extraction: code fences
// are dropped and control characters are converted to spaces. Providers
// sometimes leak raw newlines into string values; a properly encoded value
// would carry "\n" escapes instead, so spacing out literal control chars
// never corrupts valid JSON.
func cleanRaw(raw string) string {
	raw = strings.ReplaceAll(raw, "```json", " ")
	raw = strings.ReplaceAll(raw, "```", " ")
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < 0x20 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
