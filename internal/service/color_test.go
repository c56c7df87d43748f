package service

import (
	"context"
	"testing"
)

func TestColorScorerScoreTexts(t *testing.T) {
	scorer := NewColorScorer()

	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "shared color",
			a:    "red leather wallet",
			b:    "found a red wallet near the gate",
			want: 1.0,
		},
		{
			name: "different colors",
			a:    "blue backpack",
			b:    "black backpack with straps",
			want: 0.5,
		},
		{
			name: "no colors mentioned",
			a:    "small wallet",
			b:    "leather wallet",
			want: 0.5,
		},
		{
			name: "color only on one side",
			a:    "green umbrella",
			b:    "folding umbrella",
			want: 0.5,
		},
		{
			name: "case insensitive",
			a:    "RED phone case",
			b:    "bright red phone case",
			want: 1.0,
		},
		{
			name: "bangla color terms",
			a:    "লাল ব্যাগ",
			b:    "একটি লাল ব্যাগ পাওয়া গেছে",
			want: 1.0,
		},
		{
			name: "second shared color after a miss",
			a:    "blue and white cap",
			b:    "white cap",
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.ScoreTexts(context.Background(), tt.a, tt.b)
			if got != tt.want {
				t.Errorf("ScoreTexts(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
