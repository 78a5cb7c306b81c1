package embed

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"empty", nil, nil, 0},
		{"mismatched length", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	b := []float32{-2.2, 0.9, 1.1, 3.4}
	if ab, ba := Cosine(a, b), Cosine(b, a); math.Abs(ab-ba) > 1e-12 {
		t.Errorf("cosine not symmetric: %v vs %v", ab, ba)
	}
}
