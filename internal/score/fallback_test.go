package score

import (
	"strings"
	"testing"
)

func TestFallbackScoreInRange(t *testing.T) {
	cases := []struct {
		name            string
		posting, profile string
	}{
		{"empty everything", "", ""},
		{"empty posting", "", "golang engineer with kubernetes"},
		{"empty profile", "We are hiring a pastry chef.", ""},
		{"full overlap", "senior golang kubernetes engineer", "senior golang kubernetes engineer"},
		{"no overlap", "pastry chef wanted", "golang engineer"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, reason := Fallback(tc.posting, tc.profile, "")
			if score < 0 || score > 1 {
				t.Errorf("score %v out of [0,1]", score)
			}
			if reason == "" {
				t.Error("empty reason")
			}
		})
	}
}

func TestFallbackBaseRatio(t *testing.T) {
	// Profile tokens: quantum, basket, weaving, certification (4 distinct).
	// Posting contains exactly two of them.
	profile := "quantum basket weaving certification"
	posting := "This role involves quantum computing and basket handling."

	score, reason := Fallback(posting, profile, "")
	if score != 0.5 {
		t.Errorf("score = %v, want 0.5 (2/4 tokens)", score)
	}
	if !strings.Contains(reason, "2/4") {
		t.Errorf("reason does not enumerate the ratio: %q", reason)
	}
	if !strings.Contains(reason, "quantum") || !strings.Contains(reason, "basket") {
		t.Errorf("reason does not name matched tokens: %q", reason)
	}
}

func TestFallbackHighSignalBonus(t *testing.T) {
	// One profile token (kubernetes) matches, and it is also a high-signal
	// term present in both texts: base 1.0 already capped, so use a second
	// non-matching token to see the bonus.
	profile := "kubernetes zzzunmatchedtoken"
	posting := "Operating kubernetes clusters at scale."

	score, reason := Fallback(posting, profile, "")
	// base = 1/2 = 0.5, bonus = 0.1 → 0.6
	if score != 0.6 {
		t.Errorf("score = %v, want 0.6", score)
	}
	if !strings.Contains(reason, "high-signal bonus") {
		t.Errorf("reason missing bonus contribution: %q", reason)
	}
}

func TestFallbackCappedAtOne(t *testing.T) {
	profile := "senior backend golang kubernetes distributed remote"
	posting := "Remote senior backend role: golang, kubernetes, distributed systems."

	score, _ := Fallback(posting, profile, "")
	if score != 1 {
		t.Errorf("score = %v, want capped at 1", score)
	}
}

func TestFallbackCriteriaContribute(t *testing.T) {
	posting := "Must have terraform experience."

	without, _ := Fallback(posting, "engineer", "")
	with, _ := Fallback(posting, "engineer", "terraform")
	if with <= without {
		t.Errorf("criteria did not raise score: %v <= %v", with, without)
	}
}

func TestTokenizeRules(t *testing.T) {
	tokens := tokenize("go is a fun language, go go GO language!")
	// "go" and "is" are under the length floor; dedup keeps first "language".
	want := []string{"fun", "language"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("tokens = %v, want %v", tokens, want)
		}
	}
}

func TestTokenizeCap(t *testing.T) {
	var words []string
	for i := 0; i < 40; i++ {
		words = append(words, strings.Repeat("abc", 2)+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	tokens := tokenize(strings.Join(words, " "))
	if len(tokens) > maxProfileTokens {
		t.Errorf("tokenize returned %d tokens, cap is %d", len(tokens), maxProfileTokens)
	}
}
