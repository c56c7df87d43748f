package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/refind-app/refind/internal/logger"
)

// neutralScore is returned when an extractor cannot produce a real score.
// It deliberately blocks neither direction: the pipeline keeps going and
// the classifier sees "no information" rather than an error.
const neutralScore = 0.5

// VisionConfig holds configuration for the remote vision encoder.
type VisionConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// VisionScorer scores image pairs by cosine similarity of their pooled
// vision-encoder embeddings. The encoder runs behind an HTTP inference
// endpoint; this client mean-pools the token-level output per image and
// computes the cosine in-process.
type VisionScorer struct {
	client *resty.Client
	model  string
}

// NewVisionScorer creates a vision scorer backed by a remote encoder.
// Parameters:
//   - cfg: endpoint configuration.
// Returns:
//   - *VisionScorer: initialized scorer.
func NewVisionScorer(cfg *VisionConfig) *VisionScorer {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &VisionScorer{
		client: client,
		model:  cfg.Model,
	}
}

// Encoder endpoint request/response structures
type visionRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images"` // base64-encoded PNG
}

type visionResponse struct {
	Data []struct {
		Index  int         `json:"index"`
		Tokens [][]float32 `json:"tokens"` // token-level embeddings
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// ScoreImages embeds both images in a single call and returns the cosine
// similarity of their pooled embeddings. Encoder failure yields the neutral
// fallback 0.5 instead of propagating; one unreadable embedding must not
// block the rest of the candidate pool.
func (s *VisionScorer) ScoreImages(ctx context.Context, a, b image.Image) float64 {
	embeddings, err := s.embed(ctx, []image.Image{a, b})
	if err != nil {
		logger.CtxWarn(ctx, "Visual embedding failed, using neutral score: error=%v", err)
		return neutralScore
	}
	return float64(cosineSimilarity(embeddings[0], embeddings[1]))
}

// Embed returns the pooled embedding for a single image. Used to feed the
// shortlist index; unlike ScoreImages this propagates the error, since an
// index update is allowed to fail loudly.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - img: image to embed.
// Returns:
//   - []float32: mean-pooled embedding.
//   - error: non-nil if the encoder call fails.
func (s *VisionScorer) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	embeddings, err := s.embed(ctx, []image.Image{img})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (s *VisionScorer) embed(ctx context.Context, imgs []image.Image) ([][]float32, error) {
	encoded := make([]string, len(imgs))
	for i, img := range imgs {
		b64, err := encodePNGBase64(img)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		encoded[i] = b64
	}

	req := visionRequest{
		Model:  s.model,
		Images: encoded,
	}

	var resp visionResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/v1/embeddings/image")
	if err != nil {
		return nil, fmt.Errorf("failed to call vision encoder: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("vision encoder error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("vision encoder error: status %d", httpResp.StatusCode())
	}
	if len(resp.Data) != len(imgs) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(imgs))
	}

	pooled := make([][]float32, len(imgs))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(pooled) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		vec, err := meanPool(item.Tokens)
		if err != nil {
			return nil, err
		}
		pooled[item.Index] = vec
	}
	for i, vec := range pooled {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return pooled, nil
}

// meanPool averages token-level embeddings into a single vector.
func meanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty token embeddings")
	}
	dim := len(tokens[0])
	out := make([]float32, dim)
	for _, tok := range tokens {
		if len(tok) != dim {
			return nil, fmt.Errorf("inconsistent embedding dimensions: %d vs %d", len(tok), dim)
		}
		for i, v := range tok {
			out[i] += v
		}
	}
	n := float32(len(tokens))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero-magnitude inputs score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// encodePNGBase64 serializes an image as base64-encoded PNG for transport.
func encodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
