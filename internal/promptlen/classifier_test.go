package promptlen

import (
	"strings"
	"testing"

	"github.com/relaymesh/promptgate/internal/verdict"
)

func TestClassify_Valid(t *testing.T) {
	v := Classify("Summarize this document.", "openai", DefaultOptions())
	if !v.Valid {
		t.Fatalf("expected valid, errors: %v", v.Errors)
	}
	if v.Action != verdict.ActionAllow {
		t.Errorf("expected allow, got %s", v.Action)
	}
	if v.CharLength != 24 {
		t.Errorf("expected char length 24, got %d", v.CharLength)
	}
	if v.TokenEstimate != 6 {
		t.Errorf("expected token estimate 6, got %d", v.TokenEstimate)
	}
	if v.RecommendedModel != "gpt-4o-mini" {
		t.Errorf("expected cheapest tier, got %s", v.RecommendedModel)
	}
}

func TestClassify_EmptyPrompt(t *testing.T) {
	v := Classify("", "openai", DefaultOptions())
	if v.Valid {
		t.Error("empty prompt must be invalid")
	}
	if v.Action != verdict.ActionBlock {
		t.Errorf("expected block, got %s", v.Action)
	}
	if len(v.Errors) == 0 {
		t.Error("expected errors")
	}
}

func TestClassify_MaxLengthPlusOne(t *testing.T) {
	opts := DefaultOptions()
	v := Classify(strings.Repeat("a", opts.MaxLength+1), "openai", opts)
	if v.Valid {
		t.Error("expected invalid")
	}
	if v.Action != verdict.ActionBlock {
		t.Errorf("expected block, got %s", v.Action)
	}
	if len(v.Errors) == 0 {
		t.Error("expected non-empty errors")
	}
}

func TestClassify_WarnThreshold(t *testing.T) {
	opts := Options{MinLength: 1, MaxLength: 1000, MinTokens: 1, MaxTokens: 128_000, WarnRatio: 0.8}
	v := Classify(strings.Repeat("a", 850), "openai", opts)
	if !v.Valid {
		t.Fatalf("expected valid, errors: %v", v.Errors)
	}
	if v.Action != verdict.ActionWarn {
		t.Errorf("expected warn above 80%% of max, got %s", v.Action)
	}
	if len(v.Warnings) == 0 {
		t.Error("expected warning message")
	}
}

func TestClassify_TokenBuckets(t *testing.T) {
	opts := Options{MinLength: 1, MaxLength: 10_000_000, MinTokens: 1, MaxTokens: 10_000_000, WarnRatio: 0}

	tests := []struct {
		name     string
		chars    int
		provider string
		want     string
	}{
		{"small openai", 100, "openai", "gpt-4o-mini"},
		{"mid openai", 40_000, "openai", "gpt-4o"},
		{"large anthropic", 400_000, "anthropic", "claude-3-opus"},
		{"small anthropic", 2_000, "anthropic", "claude-3-5-haiku"},
		{"mid google", 50_000, "google", "gemini-1.5-flash"},
		{"unknown provider falls back", 100, "acme", "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(strings.Repeat("a", tt.chars), tt.provider, opts)
			if v.RecommendedModel != tt.want {
				t.Errorf("chars=%d provider=%s: got %s, want %s", tt.chars, tt.provider, v.RecommendedModel, tt.want)
			}
		})
	}
}

func TestClassify_OverLargestContext(t *testing.T) {
	opts := Options{MinLength: 1, MaxLength: 10_000_000, MinTokens: 1, MaxTokens: 10_000_000, WarnRatio: 0}
	v := Classify(strings.Repeat("a", 600_000), "anthropic", opts)
	if v.RecommendedModel != "claude-3-opus" {
		t.Errorf("expected largest-context tier, got %s", v.RecommendedModel)
	}
	found := false
	for _, w := range v.Warnings {
		if strings.Contains(w, "chunk") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected chunking warning, got %v", v.Warnings)
	}
}

func TestClassify_TokenEstimateCeil(t *testing.T) {
	tests := []struct {
		chars int
		want  int
	}{
		{1, 1}, {4, 1}, {5, 2}, {8, 2}, {9, 3},
	}
	for _, tt := range tests {
		v := Classify(strings.Repeat("a", tt.chars), "openai", DefaultOptions())
		if v.TokenEstimate != tt.want {
			t.Errorf("chars=%d: token estimate %d, want %d", tt.chars, v.TokenEstimate, tt.want)
		}
	}
}

func TestClassify_MultibyteCountsRunes(t *testing.T) {
	v := Classify("日本語テキスト", "openai", DefaultOptions())
	if v.CharLength != 7 {
		t.Errorf("expected rune count 7, got %d", v.CharLength)
	}
	if !v.Valid {
		t.Error("expected valid")
	}
}
