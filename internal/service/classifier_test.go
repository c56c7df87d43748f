package service

import (
	"errors"
	"math"
	"testing"
)

// fakeEnsemble returns canned probabilities in sequence.
type fakeEnsemble struct {
	probs []float64
	calls int
}

func (f *fakeEnsemble) PredictSingle(fvals []float64, _ int) float64 {
	if len(fvals) != FeatureCount {
		return -1
	}
	p := f.probs[f.calls%len(f.probs)]
	f.calls++
	return p
}

func (f *fakeEnsemble) PredictDense(vals []float64, nrows, ncols int, predictions []float64, _ int, _ int) error {
	if ncols != FeatureCount || len(vals) != nrows*ncols || len(predictions) != nrows {
		return errors.New("bad predict dimensions")
	}
	for i := 0; i < nrows; i++ {
		predictions[i] = f.probs[i%len(f.probs)]
	}
	return nil
}

func TestMatchClassifierPredict(t *testing.T) {
	tests := []struct {
		name      string
		prob      float64
		threshold float64
		wantMatch bool
	}{
		{"above threshold", 0.62, 0.5, true},
		{"below threshold", 0.40, 0.5, false},
		{"exactly at threshold", 0.5, 0.5, true},
		{"tuned threshold rejects", 0.62, 0.65, false},
		{"tuned threshold accepts", 0.70, 0.65, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &MatchClassifier{
				model:     &fakeEnsemble{probs: []float64{tt.prob}},
				threshold: tt.threshold,
			}
			prob, isMatch, err := c.Predict(FeatureVector{0.5, 0.5, 0.5, 0.5, 0.5})
			if err != nil {
				t.Fatalf("Predict returned error: %v", err)
			}
			if prob != tt.prob {
				t.Errorf("Predict prob = %v, want %v", prob, tt.prob)
			}
			if isMatch != tt.wantMatch {
				t.Errorf("Predict isMatch = %v, want %v", isMatch, tt.wantMatch)
			}
		})
	}
}

func TestMatchClassifierNotLoaded(t *testing.T) {
	c := NewMatchClassifier()

	if c.Loaded() {
		t.Error("Loaded() = true for a fresh classifier")
	}
	if _, _, err := c.Predict(FeatureVector{}); !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("Predict error = %v, want ErrModelNotLoaded", err)
	}
	if _, _, err := c.PredictBatch([]FeatureVector{{}}); !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("PredictBatch error = %v, want ErrModelNotLoaded", err)
	}
}

func TestMatchClassifierPredictBatch(t *testing.T) {
	c := &MatchClassifier{
		model:     &fakeEnsemble{probs: []float64{0.1, 0.9, 0.5}},
		threshold: 0.5,
	}

	probs, decisions, err := c.PredictBatch([]FeatureVector{
		{0.1, 0.1, 0.1, 0.1, 0.1},
		{0.9, 0.9, 0.9, 0.9, 0.9},
		{0.5, 0.5, 0.5, 0.5, 0.5},
	})
	if err != nil {
		t.Fatalf("PredictBatch returned error: %v", err)
	}
	want := []float64{0.1, 0.9, 0.5}
	if len(probs) != len(want) {
		t.Fatalf("PredictBatch returned %d probs, want %d", len(probs), len(want))
	}
	wantDecisions := []bool{false, true, true}
	for i := range want {
		if math.Abs(probs[i]-want[i]) > 1e-12 {
			t.Errorf("probs[%d] = %v, want %v", i, probs[i], want[i])
		}
		if decisions[i] != wantDecisions[i] {
			t.Errorf("decisions[%d] = %v, want %v", i, decisions[i], wantDecisions[i])
		}
	}

	empty, emptyDecisions, err := c.PredictBatch(nil)
	if err != nil {
		t.Fatalf("PredictBatch(nil) returned error: %v", err)
	}
	if empty != nil || emptyDecisions != nil {
		t.Errorf("PredictBatch(nil) = (%v, %v), want (nil, nil)", empty, emptyDecisions)
	}
}
