// Package identity derives stable posting IDs from listing URLs so the same
// listing always merges to the same index record, regardless of pagination
// offsets or tracking parameters.
package identity

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// viewSegment matches the canonical listing path: the last path component is
// either a bare numeric token or a slug ending in "-<digits>", e.g.
// /jobs/view/4012345678 or /jobs/view/senior-engineer-at-acme-4012345678.
var viewSegment = regexp.MustCompile(`/jobs/view/(?:[^/]*?-)?(\d+)/?$`)

// DeriveID extracts the opaque numeric identifier from the known listing URL
// shape. URLs that do not match fall back to a content hash of the full URL,
// so every listing still gets a deterministic, unique key.
func DeriveID(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if m := viewSegment.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	}
	return hashURL(rawURL)
}

// hashURL returns a short hex digest of the full URL. Truncated to 16 hex
// chars; collisions at that length are negligible for a single index.
func hashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(rawURL)))
	return fmt.Sprintf("%x", sum)[:16]
}
