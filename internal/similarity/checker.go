// Package similarity compares an incoming prompt against a caller-supplied
// set of known prompts. Every check emits an audit record; a sink failure
// never changes the returned verdict.
package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/relaymesh/promptgate/internal/audit"
	"github.com/relaymesh/promptgate/internal/embed"
	"go.uber.org/zap"
)

// Method selects the distance metric for embedding comparison.
type Method string

const (
	MethodCosine     Method = "cosine"
	MethodEuclidean  Method = "euclidean"
	MethodDotProduct Method = "dot_product"
	MethodManhattan  Method = "manhattan"

	// MethodJaccard is the degraded word-set fallback used when the
	// embedding provider is unavailable. Callers cannot request it
	// directly; it shows up in audit records.
	MethodJaccard Method = "jaccard_fallback"
)

// Valid reports whether m is a caller-selectable method.
func (m Method) Valid() bool {
	switch m {
	case MethodCosine, MethodEuclidean, MethodDotProduct, MethodManhattan:
		return true
	}
	return false
}

// Verdict is the outcome of a similarity check.
type Verdict struct {
	Similar           bool     `json:"similar"`
	Score             float64  `json:"score"`
	MatchedReferences []string `json:"matched_references,omitempty"`
	Method            Method   `json:"method"`
	Degraded          bool     `json:"degraded"`
}

// Context carries request identity for the audit trail.
type Context struct {
	OrgID       string
	WorkspaceID string
	TraceID     string
}

// Config holds the checker's tunables. The Jaccard threshold is a
// heuristic default carried over for calibration, not a derived value.
type Config struct {
	DefaultThreshold float64       // default 0.85
	JaccardThreshold float64       // fallback similar-above threshold, default 0.7
	EmbedTimeout     time.Duration // per-embedding bound, default 2s
}

// DefaultConfig returns the default checker configuration.
func DefaultConfig() Config {
	return Config{
		DefaultThreshold: 0.85,
		JaccardThreshold: 0.7,
		EmbedTimeout:     2 * time.Second,
	}
}

// Checker compares prompts via the embedding provider, degrading to
// word-set similarity when the provider is unavailable.
type Checker struct {
	cfg      Config
	provider embed.Provider
	sink     audit.Sink
	logger   *zap.Logger
}

// NewChecker creates a similarity checker. sink may be audit.NopSink{}
// but must not be nil.
func NewChecker(cfg Config, provider embed.Provider, sink audit.Sink, logger *zap.Logger) *Checker {
	return &Checker{
		cfg:      cfg,
		provider: provider,
		sink:     sink,
		logger:   logger,
	}
}

// Check compares prompt against every known prompt with the chosen
// method and threshold (0 means the configured default). The audit
// record is emitted fire-and-forget on every path, including fallback.
func (c *Checker) Check(ctx context.Context, prompt string, knownPrompts []string, reqCtx Context, threshold float64, method Method) (Verdict, error) {
	if prompt == "" {
		return Verdict{}, fmt.Errorf("similarity.Check: empty prompt")
	}
	if method == "" {
		method = MethodCosine
	}
	if !method.Valid() {
		return Verdict{}, fmt.Errorf("similarity.Check: unknown method %q", method)
	}
	if threshold <= 0 {
		threshold = c.cfg.DefaultThreshold
	}

	v, promptVec, matchedVec := c.compare(ctx, prompt, knownPrompts, threshold, method)

	action := "allowed"
	if v.Similar {
		action = "blocked"
	}
	thresholdUsed := threshold
	if v.Degraded {
		thresholdUsed = c.cfg.JaccardThreshold
	}
	c.sink.Record(&audit.Record{
		Kind:             audit.KindSimilarityCheck,
		TraceID:          reqCtx.TraceID,
		OrgID:            reqCtx.OrgID,
		WorkspaceID:      reqCtx.WorkspaceID,
		Timestamp:        time.Now().UTC(),
		PromptEmbedding:  promptVec,
		MatchedEmbedding: matchedVec,
		Score:            v.Score,
		ThresholdUsed:    thresholdUsed,
		MethodUsed:       string(v.Method),
		ActionTaken:      action,
	})

	return v, nil
}

// compare runs the primary embedding path, or the Jaccard fallback when
// the provider is missing or fails on the incoming prompt.
func (c *Checker) compare(ctx context.Context, prompt string, known []string, threshold float64, method Method) (Verdict, []float32, []float32) {
	if c.provider == nil {
		return c.jaccardFallback(prompt, known), nil, nil
	}

	promptVec, err := c.embedOne(ctx, prompt)
	if err != nil {
		c.logger.Warn("embedding unavailable, using word-set fallback",
			zap.Error(err),
		)
		return c.jaccardFallback(prompt, known), nil, nil
	}

	v := Verdict{Method: method}
	var matchedVec []float32
	best := -math.MaxFloat64
	for _, kp := range known {
		kpVec, err := c.embedOne(ctx, kp)
		if err != nil {
			c.logger.Warn("known prompt embedding failed, skipping entry",
				zap.Error(err),
			)
			continue
		}
		score := similarityScore(promptVec, kpVec, method)
		if score > best {
			best = score
			matchedVec = kpVec
			v.MatchedReferences = []string{kp}
		}
	}

	if best > -math.MaxFloat64 {
		v.Score = best
	}
	v.Similar = len(known) > 0 && v.Score >= threshold
	if !v.Similar {
		v.MatchedReferences = nil
		matchedVec = nil
	}
	return v, promptVec, matchedVec
}

func (c *Checker) embedOne(ctx context.Context, text string) ([]float32, error) {
	timeout := c.cfg.EmbedTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.provider.Embed(ctx, text)
}

// jaccardFallback is the distinct degraded path: lower-cased
// whitespace-tokenized word-set intersection over union.
func (c *Checker) jaccardFallback(prompt string, known []string) Verdict {
	v := Verdict{Method: MethodJaccard, Degraded: true}

	promptSet := wordSet(prompt)
	best := 0.0
	var matched string
	for _, kp := range known {
		score := jaccard(promptSet, wordSet(kp))
		if score > best {
			best = score
			matched = kp
		}
	}

	v.Score = best
	v.Similar = best > c.cfg.JaccardThreshold
	if v.Similar {
		v.MatchedReferences = []string{matched}
	}
	return v
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// similarityScore normalizes the chosen metric into [0,1], where 1 is
// most similar.
func similarityScore(a, b []float32, method Method) float64 {
	switch method {
	case MethodCosine:
		return clamp01(embed.Cosine(a, b))
	case MethodEuclidean:
		return 1 / (1 + euclidean(a, b))
	case MethodManhattan:
		return 1 / (1 + manhattan(a, b))
	case MethodDotProduct:
		// Logistic squash: unbounded dot products map into (0,1).
		return 1 / (1 + math.Exp(-dot(a, b)))
	default:
		return 0
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func euclidean(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func manhattan(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
