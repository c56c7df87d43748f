package service

import (
	"context"
	"testing"
)

func TestNameScorerScoreTexts(t *testing.T) {
	scorer := NewNameScorer()
	ctx := context.Background()

	t.Run("identical strings score 1", func(t *testing.T) {
		if got := scorer.ScoreTexts(ctx, "black wallet", "black wallet"); got != 1.0 {
			t.Errorf("ScoreTexts = %v, want 1.0", got)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		if got := scorer.ScoreTexts(ctx, "Black Wallet", "black wallet"); got != 1.0 {
			t.Errorf("ScoreTexts = %v, want 1.0", got)
		}
	})

	t.Run("name contained in description scores 1", func(t *testing.T) {
		// token-set matching ignores the extra description tokens
		got := scorer.ScoreTexts(ctx, "wallet", "found a wallet near the library")
		if got != 1.0 {
			t.Errorf("ScoreTexts = %v, want 1.0", got)
		}
	})

	t.Run("unrelated strings score low", func(t *testing.T) {
		got := scorer.ScoreTexts(ctx, "umbrella", "gold ring")
		if got > 0.5 {
			t.Errorf("ScoreTexts = %v, want <= 0.5", got)
		}
	})

	t.Run("bounded", func(t *testing.T) {
		got := scorer.ScoreTexts(ctx, "phone charger cable", "charger")
		if got < 0 || got > 1 {
			t.Errorf("ScoreTexts = %v, want within [0,1]", got)
		}
	})
}
