package search

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	scriptRegex  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	titleRegex   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// extractText converts an HTML page to plain text: drops script/style blocks,
// strips tags, unescapes entities, then collapses whitespace.
func extractText(content string) string {
	stripped := scriptRegex.ReplaceAllString(content, " ")
	stripped = htmlTagRegex.ReplaceAllString(stripped, " ")
	plain := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(plain), " ")
}

// extractTitle pulls the document title, if any.
func extractTitle(content string) string {
	m := titleRegex.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(m[1])), " ")
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
