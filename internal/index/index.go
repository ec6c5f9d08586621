// Package index holds the deduplicating persistent aggregate of all known
// postings plus scan metadata, and the stores that persist it.
package index

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/mwarner/jobscout/internal/model"
)

// Index is the single persistent aggregate. It is mutated only through
// Merge, ResetScans, and the per-posting updates performed by the worker
// pool and digest gate; the caller owns the read-modify-write cycle against
// the store.
type Index struct {
	Postings     map[string]*model.Posting `json:"postings"`
	LastScanDate *time.Time                `json:"lastScanDate,omitempty"`
	LastUpdate   time.Time                 `json:"lastUpdate"`
	ProfileHash  string                    `json:"profileHash,omitempty"`
}

// New returns an empty index.
func New() *Index {
	return &Index{Postings: make(map[string]*model.Posting)}
}

// Merge overlays incoming postings onto the index. Absent IDs are inserted
// fresh with scanned=false and null match fields. Present IDs get a partial,
// field-level overwrite: only fields carried by the incoming record are
// copied, so prior match results survive repeated searches. With forceRescan
// the merged record's scan state and match fields are additionally cleared
// so the worker pool reprocesses it.
//
// Merging the same batch twice is idempotent aside from LastUpdate.
func (ix *Index) Merge(incoming []model.Posting, forceRescan bool) (added, updated int) {
	for i := range incoming {
		in := &incoming[i]
		existing, ok := ix.Postings[in.ID]
		if !ok {
			fresh := *in
			fresh.Scanned = false
			fresh.ScanStatus = model.ScanPending
			fresh.MatchScore = nil
			fresh.MatchReason = ""
			fresh.ScanError = nil
			if fresh.DiscoveredAt.IsZero() {
				fresh.DiscoveredAt = time.Now()
			}
			ix.Postings[in.ID] = &fresh
			added++
			continue
		}

		overlay(existing, in)
		if forceRescan {
			clearScan(existing)
		}
		updated++
	}
	ix.LastUpdate = time.Now()
	return added, updated
}

// overlay copies only the fields the incoming record carries.
func overlay(dst, src *model.Posting) {
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Company != "" {
		dst.Company = src.Company
	}
	if src.Location != "" {
		dst.Location = src.Location
	}
	if src.SourceQuery != "" {
		dst.SourceQuery = src.SourceQuery
	}
	if src.PostedAt != nil {
		dst.PostedAt = src.PostedAt
	}
}

func clearScan(p *model.Posting) {
	p.Scanned = false
	p.ScanStatus = model.ScanPending
	p.ScanDate = nil
	p.MatchScore = nil
	p.MatchReason = ""
	p.ScanError = nil
}

// ResetScans clears scan state and match fields on every posting so the next
// deep-scan phase reprocesses the whole index. Digest bookkeeping is kept.
func (ix *Index) ResetScans() {
	for _, p := range ix.Postings {
		clearScan(p)
	}
	ix.LastUpdate = time.Now()
}

// Reset empties the index entirely.
func (ix *Index) Reset() {
	ix.Postings = make(map[string]*model.Posting)
	ix.LastScanDate = nil
	ix.ProfileHash = ""
	ix.LastUpdate = time.Now()
}

// Unscanned returns postings with scanned=false, oldest discovery first so
// repeated capped scans make forward progress.
func (ix *Index) Unscanned() []*model.Posting {
	var out []*model.Posting
	for _, p := range ix.Postings {
		if !p.Scanned {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DiscoveredAt.Equal(out[j].DiscoveredAt) {
			return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Matched returns completed postings with matchScore >= minScore, highest
// score first.
func (ix *Index) Matched(minScore float64) []*model.Posting {
	var out []*model.Posting
	for _, p := range ix.Postings {
		if p.Scanned && p.ScanStatus == model.ScanCompleted && p.Score() >= minScore {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score() != out[j].Score() {
			return out[i].Score() > out[j].Score()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FailedByKind groups error-status postings by their scan error kind.
func (ix *Index) FailedByKind() map[model.ErrorKind][]*model.Posting {
	out := make(map[model.ErrorKind][]*model.Posting)
	for _, p := range ix.Postings {
		if p.ScanStatus != model.ScanFailed {
			continue
		}
		kind := model.KindUnknown
		if p.ScanError != nil {
			kind = p.ScanError.Kind
		}
		out[kind] = append(out[kind], p)
	}
	for _, group := range out {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
	}
	return out
}

// Stats summarizes the index for status queries.
type Stats struct {
	Total     int        `json:"total"`
	Scanned   int        `json:"scanned"`
	Pending   int        `json:"pending"`
	Errors    int        `json:"errors"`
	Sent      int        `json:"sent"`
	LastScan  *time.Time `json:"lastScan,omitempty"`
	LastWrite time.Time  `json:"lastWrite"`
}

// Stats returns counts by scan/digest status.
func (ix *Index) Stats() Stats {
	st := Stats{Total: len(ix.Postings), LastScan: ix.LastScanDate, LastWrite: ix.LastUpdate}
	for _, p := range ix.Postings {
		switch {
		case p.ScanStatus == model.ScanFailed:
			st.Errors++
		case p.Scanned:
			st.Scanned++
		default:
			st.Pending++
		}
		if p.SentInDigest {
			st.Sent++
		}
	}
	return st
}

// ProfileChanged hashes profileText, compares it to the stored hash, records
// the new hash, and reports whether it differed. A change means previously
// computed scores are stale under the new profile; whether to force a rescan
// in response is the orchestrator's call, not the index's.
func (ix *Index) ProfileChanged(profileText string) bool {
	h := HashProfile(profileText)
	changed := ix.ProfileHash != "" && ix.ProfileHash != h
	ix.ProfileHash = h
	return changed
}

// HashProfile returns the digest used for profile staleness detection.
func HashProfile(profileText string) string {
	sum := sha256.Sum256([]byte(profileText))
	return fmt.Sprintf("%x", sum)
}
