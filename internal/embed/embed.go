// Package embed abstracts the external embedding provider. The rest of
// the engine only sees the Provider interface; callers that lose the
// provider degrade per the fail-open policy rather than erroring out.
package embed

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable indicates the embedding provider could not serve the
// request. Callers treat this as "skip the semantic signal", not as a
// hard failure.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider produces a fixed-length vector representation of text.
type Provider interface {
	// Embed returns the embedding for a single text. Implementations
	// must respect ctx deadlines and return promptly on cancellation.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cosine returns the cosine similarity of two vectors, or 0 when either
// vector is empty, zero-magnitude or mismatched in length.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
