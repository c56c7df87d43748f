package service

import (
	"context"
	"image"
	"testing"
)

type stubImageScorer struct {
	score float64
}

func (s stubImageScorer) ScoreImages(_ context.Context, _, _ image.Image) float64 {
	return s.score
}

type stubTextScorer struct {
	score float64
	// records the last pair for argument-routing assertions
	lastA, lastB string
}

func (s *stubTextScorer) ScoreTexts(_ context.Context, a, b string) float64 {
	s.lastA, s.lastB = a, b
	return s.score
}

func TestFeatureComposerColumnOrder(t *testing.T) {
	text := &stubTextScorer{score: 0.3}
	name := &stubTextScorer{score: 0.4}
	colorScorer := &stubTextScorer{score: 0.5}
	composer := NewFeatureComposer(
		stubImageScorer{score: 0.1},
		stubImageScorer{score: 0.2},
		text, name, colorScorer,
	)

	img := image.NewGray(image.Rect(0, 0, 1, 1))
	fv := composer.Compose(context.Background(), img, img, "query description", "candidate description", "query name")

	want := FeatureVector{0.1, 0.2, 0.3, 0.4, 0.5}
	if fv != want {
		t.Errorf("Compose = %v, want %v", fv, want)
	}
}

func TestFeatureComposerArgumentRouting(t *testing.T) {
	text := &stubTextScorer{}
	name := &stubTextScorer{}
	colorScorer := &stubTextScorer{}
	composer := NewFeatureComposer(stubImageScorer{}, stubImageScorer{}, text, name, colorScorer)

	img := image.NewGray(image.Rect(0, 0, 1, 1))
	composer.Compose(context.Background(), img, img, "query description", "candidate description", "query name")

	if text.lastA != "query description" || text.lastB != "candidate description" {
		t.Errorf("text scorer got (%q, %q)", text.lastA, text.lastB)
	}
	// the name signal compares the query's name against the candidate's description
	if name.lastA != "query name" || name.lastB != "candidate description" {
		t.Errorf("name scorer got (%q, %q)", name.lastA, name.lastB)
	}
	if colorScorer.lastA != "query description" || colorScorer.lastB != "candidate description" {
		t.Errorf("color scorer got (%q, %q)", colorScorer.lastA, colorScorer.lastB)
	}
}
