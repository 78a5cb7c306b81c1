// Package textfeat computes statistical features of prompt text used by
// the abuse detector. All functions are pure and total over arbitrary
// input, including empty strings and non-ASCII text.
package textfeat

import (
	"math"
	"strings"
)

// Features holds the statistical profile of a piece of text.
type Features struct {
	Entropy          float64 `json:"entropy"`
	RepetitionScore  float64 `json:"repetition_score"`
	UnusualCharRatio float64 `json:"unusual_char_ratio"`
}

// Extract computes all features in one pass over the text.
func Extract(text string) Features {
	return Features{
		Entropy:          Entropy(text),
		RepetitionScore:  RepetitionScore(text),
		UnusualCharRatio: UnusualCharRatio(text),
	}
}

// Entropy returns the Shannon entropy of the character-frequency
// distribution of text, in bits. The empty string has entropy 0.
func Entropy(text string) float64 {
	if text == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, r := range text {
		freq[r]++
		total++
	}

	entropy := 0.0
	for _, n := range freq {
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// minRepetitionLen is the input length below which repetition scoring
// is meaningless and returns 0.
const minRepetitionLen = 10

// RepetitionScore returns a score in [0,1] measuring how repetitive the
// text is. It is the max of the repeated-word fraction (words longer
// than 2 chars seen more than once) and half the fraction of 3-char
// substrings occurring more than twice.
func RepetitionScore(text string) float64 {
	if len(text) < minRepetitionLen {
		return 0
	}

	// Word-level repetition: fraction of tokens that are repeats
	// beyond their first occurrence.
	words := strings.Fields(strings.ToLower(text))
	seen := make(map[string]bool)
	counted := 0
	repeats := 0
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		counted++
		if seen[w] {
			repeats++
		}
		seen[w] = true
	}
	wordScore := 0.0
	if counted > 0 {
		wordScore = float64(repeats) / float64(counted)
	}

	// Substring-level repetition: 3-grams occurring more than twice.
	runes := []rune(strings.ToLower(text))
	grams := make(map[string]int)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])]++
	}
	frequent := 0
	for _, n := range grams {
		if n > 2 {
			frequent++
		}
	}
	gramScore := 0.0
	if len(grams) > 0 {
		gramScore = float64(frequent) / float64(len(grams)) / 2
	}

	return math.Max(wordScore, gramScore)
}

// UnusualCharRatio returns the fraction of characters outside the set
// of letters, digits, whitespace and common punctuation.
func UnusualCharRatio(text string) float64 {
	total := 0
	unusual := 0
	for _, r := range text {
		total++
		if !isUsualChar(r) {
			unusual++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(unusual) / float64(total)
}

func isUsualChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	}
	switch r {
	case '.', ',', '!', '?', ';', ':', '\'', '"', '(', ')', '-':
		return true
	}
	return false
}
