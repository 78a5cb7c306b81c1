// Package promptlen validates prompt length and recommends a model tier
// for the estimated token count. Pure functions only.
package promptlen

import (
	"fmt"
	"unicode/utf8"

	"github.com/relaymesh/promptgate/internal/verdict"
)

// Options bound the acceptable prompt size. The zero value is not
// usable; start from DefaultOptions.
type Options struct {
	MinLength int // chars, default 1
	MaxLength int // chars, default 100000
	MinTokens int // default 1
	MaxTokens int // default 128000
	WarnRatio float64 // warn above this fraction of either max, default 0.8
}

// DefaultOptions returns the default length bounds.
func DefaultOptions() Options {
	return Options{
		MinLength: 1,
		MaxLength: 100_000,
		MinTokens: 1,
		MaxTokens: 128_000,
		WarnRatio: 0.8,
	}
}

// Verdict is the outcome of a length classification.
type Verdict struct {
	Valid            bool           `json:"valid"`
	CharLength       int            `json:"char_length"`
	TokenEstimate    int            `json:"token_estimate"`
	RecommendedModel string         `json:"recommended_model,omitempty"`
	Action           verdict.Action `json:"-"`
	Warnings         []string       `json:"warnings,omitempty"`
	Errors           []string       `json:"errors,omitempty"`
}

// Token-count buckets for model recommendation, cheapest tier first.
const (
	smallBucket = 4_000
	midBucket   = 16_000
	largeBucket = 128_000
)

// modelTiers maps provider -> [cheapest, mid, largest-context] model.
var modelTiers = map[string][3]string{
	"openai":    {"gpt-4o-mini", "gpt-4o", "gpt-4o"},
	"anthropic": {"claude-3-5-haiku", "claude-3-5-sonnet", "claude-3-opus"},
	"google":    {"gemini-1.5-flash", "gemini-1.5-flash", "gemini-1.5-pro"},
	"mistral":   {"mistral-small", "mistral-medium", "mistral-large"},
}

const defaultProvider = "openai"

// Classify validates the prompt against opts and recommends a model for
// the provider. Token count is estimated at one token per four chars.
func Classify(prompt string, provider string, opts Options) Verdict {
	charLength := utf8.RuneCountInString(prompt)
	tokenEstimate := (charLength + 3) / 4

	v := Verdict{
		Valid:         true,
		CharLength:    charLength,
		TokenEstimate: tokenEstimate,
		Action:        verdict.ActionAllow,
	}

	if charLength < opts.MinLength {
		v.Valid = false
		v.Action = verdict.ActionBlock
		v.Errors = append(v.Errors, fmt.Sprintf("prompt length %d below minimum %d", charLength, opts.MinLength))
	}
	if charLength > opts.MaxLength {
		v.Valid = false
		v.Action = verdict.ActionBlock
		v.Errors = append(v.Errors, fmt.Sprintf("prompt length %d exceeds maximum %d", charLength, opts.MaxLength))
	}
	if tokenEstimate < opts.MinTokens {
		v.Valid = false
		v.Action = verdict.ActionBlock
		v.Errors = append(v.Errors, fmt.Sprintf("token estimate %d below minimum %d", tokenEstimate, opts.MinTokens))
	}
	if tokenEstimate > opts.MaxTokens {
		v.Valid = false
		v.Action = verdict.ActionBlock
		v.Errors = append(v.Errors, fmt.Sprintf("token estimate %d exceeds maximum %d", tokenEstimate, opts.MaxTokens))
	}

	if v.Action != verdict.ActionBlock && opts.WarnRatio > 0 {
		if float64(charLength) > opts.WarnRatio*float64(opts.MaxLength) {
			v.Action = verdict.ActionWarn
			v.Warnings = append(v.Warnings, fmt.Sprintf("prompt length %d is above %.0f%% of the maximum", charLength, opts.WarnRatio*100))
		}
		if float64(tokenEstimate) > opts.WarnRatio*float64(opts.MaxTokens) {
			v.Action = verdict.ActionWarn
			v.Warnings = append(v.Warnings, fmt.Sprintf("token estimate %d is above %.0f%% of the maximum", tokenEstimate, opts.WarnRatio*100))
		}
	}

	tiers, ok := modelTiers[provider]
	if !ok {
		tiers = modelTiers[defaultProvider]
	}
	switch {
	case tokenEstimate <= smallBucket:
		v.RecommendedModel = tiers[0]
	case tokenEstimate <= midBucket:
		v.RecommendedModel = tiers[1]
	case tokenEstimate <= largeBucket:
		v.RecommendedModel = tiers[2]
	default:
		v.RecommendedModel = tiers[2]
		v.Warnings = append(v.Warnings, "prompt exceeds the largest context window, chunk the input")
	}

	return v
}
