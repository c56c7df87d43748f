package service

import (
	"context"
	"strings"
)

// colorKeywords are the colour terms scanned for in item descriptions.
// English and Bangla terms are both recognised since reports arrive in
// either language.
var colorKeywords = []string{
	"red", "blue", "black", "white", "green", "yellow",
	"orange", "purple", "pink", "brown", "gray", "grey",
	"লাল", "নীল", "কালো", "সাদা", "সবুজ", "হলুদ",
}

// ColorScorer extracts colour keywords from two descriptions and scores 1.0
// when they share at least one colour. With no shared colour the score is
// the neutral 0.5 rather than 0: most descriptions mention no colour at all,
// and absence of a match is not evidence against the pair.
type ColorScorer struct{}

// NewColorScorer creates a colour keyword scorer.
func NewColorScorer() *ColorScorer {
	return &ColorScorer{}
}

// ScoreTexts returns 1.0 when both texts mention a common colour keyword,
// otherwise 0.5.
func (s *ColorScorer) ScoreTexts(_ context.Context, a, b string) float64 {
	colorsA := extractColors(a)
	if len(colorsA) == 0 {
		return neutralScore
	}
	colorsB := extractColors(b)
	for c := range colorsA {
		if colorsB[c] {
			return 1.0
		}
	}
	return neutralScore
}

func extractColors(text string) map[string]bool {
	lowered := strings.ToLower(text)
	found := make(map[string]bool)
	for _, c := range colorKeywords {
		if strings.Contains(lowered, c) {
			found[c] = true
		}
	}
	return found
}
