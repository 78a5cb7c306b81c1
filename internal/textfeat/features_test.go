package textfeat

import (
	"math"
	"strings"
	"testing"
)

func TestEntropy(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty string", "", 0},
		{"single char", "a", 0},
		{"uniform repeat", "aaaaaaaa", 0},
		{"two symbols", "abababab", 1.0},
		{"four symbols", "abcdabcd", 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Entropy(tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Entropy(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEntropy_NonNegative(t *testing.T) {
	inputs := []string{
		"",
		"hello world",
		"日本語のテキスト",
		"\x00\x01\x02",
		strings.Repeat("x", 10000),
		"mixed ascii と kanji 123 !?",
	}
	for _, s := range inputs {
		if got := Entropy(s); got < 0 {
			t.Errorf("Entropy(%q) = %v, want >= 0", s, got)
		}
	}
}

func TestRepetitionScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"short input returns zero", "now now", 0, 0},
		{"empty", "", 0, 0},
		{"no repeats", "the quick brown fox jumps over lazy dogs", 0, 0.2},
		{"heavy word repeats", "money money money money money money money", 0.8, 1.0},
		{"spam phrase", "click here for free money now now now now", 0.3, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepetitionScore(tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("RepetitionScore(%q) = %v, want in [%v, %v]", tt.text, got, tt.min, tt.max)
			}
		})
	}
}

func TestRepetitionScore_Bounded(t *testing.T) {
	inputs := []string{
		strings.Repeat("abc ", 100),
		strings.Repeat("z", 500),
		"normal sentence with no unusual repetition at all",
		strings.Repeat("spam spam spam ", 50),
	}
	for _, s := range inputs {
		got := RepetitionScore(s)
		if got < 0 || got > 1 {
			t.Errorf("RepetitionScore(%q...) = %v, want in [0,1]", s[:10], got)
		}
	}
}

func TestUnusualCharRatio(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"all usual", "Hello, world! (test) 123.", 0},
		{"all unusual", "####", 1.0},
		{"half unusual", "ab##", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnusualCharRatio(tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("UnusualCharRatio(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestUnusualCharRatio_Bounded(t *testing.T) {
	inputs := []string{"", "abc", "日本語", "€€€€", "a€b#c"}
	for _, s := range inputs {
		got := UnusualCharRatio(s)
		if got < 0 || got > 1 {
			t.Errorf("UnusualCharRatio(%q) = %v, want in [0,1]", s, got)
		}
	}
}

func TestExtract(t *testing.T) {
	f := Extract("click here for free money now now now now")
	if f.RepetitionScore <= 0.3 {
		t.Errorf("expected repetition score > 0.3, got %v", f.RepetitionScore)
	}
	if f.Entropy <= 0 {
		t.Errorf("expected positive entropy, got %v", f.Entropy)
	}
	if f.UnusualCharRatio != 0 {
		t.Errorf("expected zero unusual char ratio, got %v", f.UnusualCharRatio)
	}
}
