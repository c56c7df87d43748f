package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/refind-app/refind/internal/logger"
)

// RerankerConfig holds the connection settings for the remote cross-encoder
// service.
type RerankerConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// RerankerScorer scores text pairs with a remote cross-encoder. The service
// returns a raw relevance logit which is squashed through a sigmoid to [0,1].
type RerankerScorer struct {
	client *resty.Client
	model  string
}

// NewRerankerScorer creates a cross-encoder text scorer.
func NewRerankerScorer(cfg RerankerConfig) *RerankerScorer {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &RerankerScorer{client: client, model: cfg.Model}
}

type rerankRequest struct {
	Model string     `json:"model"`
	Pairs [][]string `json:"pairs"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
	Detail string    `json:"detail,omitempty"`
}

// ScoreTexts returns sigmoid(logit) for the pair. Any transport or payload
// failure yields the neutral score so one degraded upstream cannot zero out
// a candidate.
func (s *RerankerScorer) ScoreTexts(ctx context.Context, a, b string) float64 {
	logit, err := s.rerank(ctx, a, b)
	if err != nil {
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldComponent: "reranker",
		}).WithError(err).Warn("reranker unavailable, using neutral text score")
		return neutralScore
	}
	return sigmoid(logit)
}

func (s *RerankerScorer) rerank(ctx context.Context, a, b string) (float64, error) {
	var result rerankResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(rerankRequest{Model: s.model, Pairs: [][]string{{a, b}}}).
		SetResult(&result).
		Post("/v1/rerank")
	if err != nil {
		return 0, fmt.Errorf("rerank request: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("rerank request failed with status %d: %s", resp.StatusCode(), result.Detail)
	}
	if len(result.Scores) != 1 {
		return 0, fmt.Errorf("rerank returned %d scores, expected 1", len(result.Scores))
	}
	return result.Scores[0], nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
