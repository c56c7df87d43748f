package service

import (
	"context"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// NameScorer measures lexical overlap between an item name and a free-text
// description with token-set ratio matching, which is insensitive to word
// order and repeated tokens.
type NameScorer struct{}

// NewNameScorer creates a fuzzy name scorer.
func NewNameScorer() *NameScorer {
	return &NameScorer{}
}

// ScoreTexts returns TokenSetRatio(lower(a), lower(b)) scaled to [0,1].
func (s *NameScorer) ScoreTexts(_ context.Context, a, b string) float64 {
	ratio := fuzzy.TokenSetRatio(strings.ToLower(a), strings.ToLower(b))
	return float64(ratio) / 100.0
}
