package service

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeanPool(t *testing.T) {
	t.Run("averages tokens", func(t *testing.T) {
		got, err := meanPool([][]float32{{1, 2}, {3, 4}})
		if err != nil {
			t.Fatalf("meanPool returned error: %v", err)
		}
		want := []float32{2, 3}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("meanPool[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := meanPool(nil); err == nil {
			t.Error("meanPool(nil) returned nil error")
		}
	})

	t.Run("ragged dimensions", func(t *testing.T) {
		if _, err := meanPool([][]float32{{1, 2}, {3}}); err == nil {
			t.Error("meanPool with ragged input returned nil error")
		}
	})
}

func TestVisionScorerScoreImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req visionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Images) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// both images map to the same pooled vector, cosine must be 1
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "tokens": [][]float32{{1, 0, 0}, {0, 1, 0}}},
				{"index": 1, "tokens": [][]float32{{0.5, 0.5, 0}}},
			},
		})
	}))
	defer srv.Close()

	scorer := NewVisionScorer(&VisionConfig{BaseURL: srv.URL, Model: "test-encoder", Timeout: time.Second})

	img := image.NewGray(image.Rect(0, 0, 2, 2))
	got := scorer.ScoreImages(context.Background(), img, img)
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("ScoreImages = %v, want 1.0", got)
	}
}

func TestVisionScorerFallsBackToNeutral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	scorer := NewVisionScorer(&VisionConfig{BaseURL: srv.URL, Model: "test-encoder", Timeout: time.Second})

	img := image.NewGray(image.Rect(0, 0, 2, 2))
	if got := scorer.ScoreImages(context.Background(), img, img); got != neutralScore {
		t.Errorf("ScoreImages = %v, want %v", got, neutralScore)
	}
}

func TestVisionScorerEmbedPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer srv.Close()

	scorer := NewVisionScorer(&VisionConfig{BaseURL: srv.URL, Model: "test-encoder", Timeout: time.Second})

	img := image.NewGray(image.Rect(0, 0, 2, 2))
	if _, err := scorer.Embed(context.Background(), img); err == nil {
		t.Error("Embed returned nil error for an empty response")
	}
}
