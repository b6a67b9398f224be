// Package metrics computes cheap local text features.
package metrics

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Features holds basic text features derived from a string.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

func CountFeatures(s string) Features {
	return Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: countLines(s),
	}
}

// EstimateTokens is a rough word-based token estimate (1.3 tokens per word).
func (f Features) EstimateTokens() int {
	return int(math.Round(float64(f.Words) * 1.3))
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n'.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}
