package service

import (
	"context"
	"image"
)

// Feature vector layout. The order is load-bearing: it is the column order
// the match classifier was trained on.
const (
	FeatVisual = iota
	FeatKeypoint
	FeatText
	FeatName
	FeatColor

	FeatureCount
)

// FeatureVector is the ordered similarity-score tuple for one item pair.
// Every component is nominally in [0,1].
type FeatureVector [FeatureCount]float64

// ImageScorer scores the similarity of two images.
// Implementations return a bounded scalar and absorb their own failures
// into a documented fallback value so one bad pair never stalls a search.
type ImageScorer interface {
	ScoreImages(ctx context.Context, a, b image.Image) float64
}

// TextScorer scores the similarity of two strings under an
// extractor-specific notion of relevance.
type TextScorer interface {
	ScoreTexts(ctx context.Context, a, b string) float64
}

// FeatureComposer assembles the five similarity signals into one feature
// vector per (query, candidate) pair. It is a pure function of its inputs:
// no side effects, no persistence.
type FeatureComposer struct {
	visual   ImageScorer
	keypoint ImageScorer
	text     TextScorer
	name     TextScorer
	color    TextScorer
}

// NewFeatureComposer creates a FeatureComposer from the five extractors.
// Parameters:
//   - visual: visual-embedding similarity scorer.
//   - keypoint: keypoint-correspondence scorer.
//   - text: semantic text relevance scorer.
//   - name: fuzzy name relevance scorer.
//   - color: color-keyword agreement scorer.
// Returns:
//   - *FeatureComposer: initialized composer.
func NewFeatureComposer(visual, keypoint ImageScorer, text, name, color TextScorer) *FeatureComposer {
	return &FeatureComposer{
		visual:   visual,
		keypoint: keypoint,
		text:     text,
		name:     name,
		color:    color,
	}
}

// Compose extracts all features for one (query, candidate) pair.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imgA, imgB: query and candidate images.
//   - textA, textB: query and candidate descriptions.
//   - itemName: the query item's name; compared against the candidate's
//     description, matching the semantics the classifier was trained on.
// Returns:
//   - FeatureVector: scores in the fixed order [visual, keypoint, text, name, color].
func (c *FeatureComposer) Compose(ctx context.Context, imgA, imgB image.Image, textA, textB, itemName string) FeatureVector {
	var fv FeatureVector
	fv[FeatVisual] = c.visual.ScoreImages(ctx, imgA, imgB)
	fv[FeatKeypoint] = c.keypoint.ScoreImages(ctx, imgA, imgB)
	fv[FeatText] = c.text.ScoreTexts(ctx, textA, textB)
	fv[FeatName] = c.name.ScoreTexts(ctx, itemName, textB)
	fv[FeatColor] = c.color.ScoreTexts(ctx, textA, textB)
	return fv
}
