// Package abuse decides whether a prompt is abusive by combining regex
// patterns, statistical text features, semantic similarity to a known
// abuse corpus and the content safety scorer into one verdict.
package abuse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/relaymesh/promptgate/internal/embed"
	"github.com/relaymesh/promptgate/internal/safety"
	"github.com/relaymesh/promptgate/internal/textfeat"
	"github.com/relaymesh/promptgate/internal/verdict"
	"go.uber.org/zap"
)

// PatternMatch records one matched heuristic for diagnostics.
type PatternMatch struct {
	Kind        string  `json:"kind"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// Verdict is the outcome of an abuse check.
type Verdict struct {
	IsAbuse            bool               `json:"is_abuse"`
	Confidence         float64            `json:"confidence"`
	Action             verdict.Action     `json:"-"`
	MLScore            float64            `json:"ml_score"`
	AbuseType          string             `json:"abuse_type,omitempty"`
	Patterns           []PatternMatch     `json:"patterns,omitempty"`
	Features           *textfeat.Features `json:"features,omitempty"`
	SemanticSimilarity *float64           `json:"semantic_similarity,omitempty"`
	MatchedReference   string             `json:"matched_reference,omitempty"`
	DegradedChecks     []string           `json:"degraded_checks,omitempty"`
}

// Config holds every weighting constant of the detector. The values are
// heuristics carried over as defaults; treat them as calibration
// candidates, not ground truth.
type Config struct {
	MLThreshold    float64 // combined/ml score above this is abuse (default 0.7)
	BlockThreshold float64 // ml score above this blocks outright (default 0.8)

	EntropyThreshold float64 // default 4.5
	EntropyCap       float64 // full weight this far past the threshold (default 1.5)
	EntropyWeight    float64 // default 0.15

	RepetitionThreshold float64 // default 0.7
	RepetitionWeight    float64 // default 0.2

	UnusualCharThreshold float64 // default 0.3
	UnusualCharWeight    float64 // default 0.15

	SemanticThreshold float64 // default 0.75
	SemanticWeight    float64 // default 0.3
	SemanticEnabled   bool

	EmbedTimeout time.Duration // bound on the semantic embedding call
}

// DefaultConfig returns the default detector configuration with the
// semantic check enabled.
func DefaultConfig() Config {
	return Config{
		MLThreshold:          0.7,
		BlockThreshold:       0.8,
		EntropyThreshold:     4.5,
		EntropyCap:           1.5,
		EntropyWeight:        0.15,
		RepetitionThreshold:  0.7,
		RepetitionWeight:     0.2,
		UnusualCharThreshold: 0.3,
		UnusualCharWeight:    0.15,
		SemanticThreshold:    0.75,
		SemanticWeight:       0.3,
		SemanticEnabled:      true,
		EmbedTimeout:         2 * time.Second,
	}
}

// Known-abuse patterns. A match short-circuits every other check: the
// cheapest, highest-precision signal runs first.
var abusePatterns = []struct {
	re     *regexp.Regexp
	kind   string
	detail string
}{
	{regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)\b`), "prompt_injection", "instruction override attempt"},
	{regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(DAN|an?\s+unrestricted)\b`), "jailbreak", "persona override jailbreak"},
	{regexp.MustCompile(`(?i)\bdisregard\s+(your|the)\s+(system\s+prompt|guidelines|safety)\b`), "prompt_injection", "system prompt override"},
	{regexp.MustCompile(`(?i)\bclick\s+here\b.{0,40}\bfree\s+money\b`), "spam", "spam call-to-action"},
	{regexp.MustCompile(`(?i)\b(verify|confirm)\s+your\s+(account|password|identity)\b.{0,40}\b(link|click|urgent)\b`), "phishing", "phishing lure"},
	{regexp.MustCompile(`(?i)\brepeat\s+(after\s+me|the\s+following)\s+forever\b`), "resource_abuse", "unbounded output request"},
	{regexp.MustCompile(`(?i)\b(flood|spam)\s+(the\s+)?(api|endpoint|service)\b`), "resource_abuse", "service flooding request"},
}

// Detector runs the full abuse pipeline. Safe for concurrent use; the
// only shared state is the read-only corpus.
type Detector struct {
	cfg      Config
	corpus   *Corpus
	provider embed.Provider
	logger   *zap.Logger
}

// NewDetector creates an abuse detector. provider and corpus may be nil,
// in which case the semantic check is skipped.
func NewDetector(cfg Config, corpus *Corpus, provider embed.Provider, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:      cfg,
		corpus:   corpus,
		provider: provider,
		logger:   logger,
	}
}

// Check classifies text. Ordered short-circuiting: regex patterns, then
// statistical features, then semantic similarity, then content safety.
// The verdict is computed fresh per call; nothing is persisted.
func (d *Detector) Check(ctx context.Context, text string) Verdict {
	// 1. Known-abuse patterns: immediate high-precision block.
	for _, p := range abusePatterns {
		if p.re.MatchString(text) {
			return Verdict{
				IsAbuse:    true,
				Confidence: 0.9,
				Action:     verdict.ActionBlock,
				MLScore:    0.9,
				AbuseType:  p.kind,
				Patterns: []PatternMatch{
					{Kind: p.kind, Score: 0.9, Description: p.detail},
				},
				Features: featuresOf(text),
			}
		}
	}

	// 2. Statistical features.
	features := textfeat.Extract(text)
	v := Verdict{Features: &features}
	mlScore := 0.0

	if features.Entropy > d.cfg.EntropyThreshold {
		over := features.Entropy - d.cfg.EntropyThreshold
		if over > d.cfg.EntropyCap {
			over = d.cfg.EntropyCap
		}
		score := d.cfg.EntropyWeight * (over / d.cfg.EntropyCap)
		mlScore += score
		v.Patterns = append(v.Patterns, PatternMatch{
			Kind:        "high_entropy",
			Score:       score,
			Description: fmt.Sprintf("entropy %.2f above threshold %.2f", features.Entropy, d.cfg.EntropyThreshold),
		})
	}

	if features.RepetitionScore > d.cfg.RepetitionThreshold {
		score := d.cfg.RepetitionWeight * features.RepetitionScore
		mlScore += score
		v.Patterns = append(v.Patterns, PatternMatch{
			Kind:        "high_repetition",
			Score:       score,
			Description: fmt.Sprintf("repetition score %.2f above threshold %.2f", features.RepetitionScore, d.cfg.RepetitionThreshold),
		})
	}

	if features.UnusualCharRatio > d.cfg.UnusualCharThreshold {
		score := d.cfg.UnusualCharWeight * features.UnusualCharRatio
		mlScore += score
		v.Patterns = append(v.Patterns, PatternMatch{
			Kind:        "unusual_characters",
			Score:       score,
			Description: fmt.Sprintf("unusual char ratio %.2f above threshold %.2f", features.UnusualCharRatio, d.cfg.UnusualCharThreshold),
		})
	}

	// 3. Semantic similarity against the known-abuse corpus. Embedding
	// failure degrades the check (fail-open) rather than blocking.
	if d.cfg.SemanticEnabled && d.corpus != nil && d.provider != nil {
		if entries := d.corpus.Entries(); len(entries) > 0 {
			sim, ref, err := d.semanticSimilarity(ctx, text, entries)
			if err != nil {
				d.logger.Warn("semantic abuse check degraded",
					zap.Error(err),
				)
				v.DegradedChecks = append(v.DegradedChecks, "semantic_similarity")
			} else {
				v.SemanticSimilarity = &sim
				if sim > d.cfg.SemanticThreshold {
					score := d.cfg.SemanticWeight * sim
					mlScore += score
					v.MatchedReference = ref
					v.Patterns = append(v.Patterns, PatternMatch{
						Kind:        "semantic_match",
						Score:       score,
						Description: fmt.Sprintf("similarity %.2f to known abuse: %s", sim, ref),
					})
				}
			}
		}
	}

	// 4. Clamp.
	if mlScore > 1 {
		mlScore = 1
	}
	if mlScore < 0 {
		mlScore = 0
	}
	v.MLScore = mlScore

	// 5. Content safety. An unsafe verdict dominates the statistical
	// score via max(mlScore, 1 - safetyScore).
	sv := safety.Check(text)
	if !sv.Safe || sv.HasSevereViolation() {
		combined := mlScore
		if inverse := 1 - sv.Score; inverse > combined {
			combined = inverse
		}
		if sv.HasSevereViolation() || combined > d.cfg.MLThreshold {
			v.IsAbuse = true
			v.Confidence = combined
			v.Action = verdict.ActionBlock
			v.AbuseType = "content_safety"
			return v
		}
		v.IsAbuse = true
		v.Confidence = combined
		v.Action = verdict.ActionWarn
		v.AbuseType = "content_safety"
		return v
	}

	// 6. Final verdict from the statistical score alone.
	v.IsAbuse = mlScore > d.cfg.MLThreshold
	v.Confidence = mlScore
	switch {
	case mlScore > d.cfg.BlockThreshold:
		v.Action = verdict.ActionBlock
	case v.IsAbuse:
		v.Action = verdict.ActionWarn
	default:
		v.Action = verdict.ActionAllow
	}
	return v
}

// semanticSimilarity embeds the text and returns the max cosine
// similarity over the corpus plus the matched reference text.
func (d *Detector) semanticSimilarity(ctx context.Context, text string, entries []CorpusEntry) (float64, string, error) {
	timeout := d.cfg.EmbedTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vec, err := d.provider.Embed(ctx, text)
	if err != nil {
		return 0, "", fmt.Errorf("semanticSimilarity: %w", err)
	}

	best := -1.0
	ref := ""
	for _, e := range entries {
		if sim := embed.Cosine(vec, e.Embedding); sim > best {
			best = sim
			ref = e.ReferenceText
		}
	}
	return best, ref, nil
}

func featuresOf(text string) *textfeat.Features {
	f := textfeat.Extract(text)
	return &f
}
