package score

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// highSignalTerms are terms that, when present in both the profile and the
// posting text, indicate a meaningfully stronger fit than generic word
// overlap does. Each match adds a flat bonus on top of the base ratio.
var highSignalTerms = []string{
	"golang",
	"kubernetes",
	"distributed",
	"microservices",
	"terraform",
	"grpc",
	"postgres",
	"remote",
	"senior",
	"staff",
	"backend",
	"infrastructure",
}

const (
	maxProfileTokens = 20
	minTokenLen      = 3
	highSignalBonus  = 0.1
)

// Fallback computes a deterministic relevance score from plain word overlap
// between the profile (plus extra criteria) and the posting text. It always
// succeeds and always returns a score in [0,1]; the reason string enumerates
// exactly which tokens matched so the judgment is auditable.
func Fallback(postingText, profile, criteria string) (float64, string) {
	profileText := strings.ToLower(strings.TrimSpace(profile + " " + criteria))
	postingLower := strings.ToLower(postingText)

	tokens := tokenize(profileText)
	if len(tokens) == 0 {
		return 0, "keyword fallback: no usable profile tokens"
	}

	var matched []string
	for _, tok := range tokens {
		if strings.Contains(postingLower, tok) {
			matched = append(matched, tok)
		}
	}
	base := float64(len(matched)) / float64(len(tokens))

	var bonus float64
	var bonusTerms []string
	for _, term := range highSignalTerms {
		if strings.Contains(profileText, term) && strings.Contains(postingLower, term) {
			bonus += highSignalBonus
			bonusTerms = append(bonusTerms, term)
		}
	}

	final := math.Round(math.Min(1, base+bonus)*100) / 100

	reason := fmt.Sprintf("keyword fallback: %d/%d profile tokens found", len(matched), len(tokens))
	if len(matched) > 0 {
		reason += " (" + strings.Join(matched, ", ") + ")"
	}
	if len(bonusTerms) > 0 {
		reason += fmt.Sprintf("; high-signal bonus +%.1f (%s)",
			float64(len(bonusTerms))*highSignalBonus, strings.Join(bonusTerms, ", "))
	}
	return final, reason
}

// tokenize splits text into distinct lowercase alphanumeric words of length
// >= minTokenLen, keeping first-seen order, capped to maxProfileTokens.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < minTokenLen || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
		if len(tokens) == maxProfileTokens {
			break
		}
	}
	return tokens
}
