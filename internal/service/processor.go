package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Upload validation errors, surfaced as client errors by the handlers.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooLarge     = errors.New("image exceeds size limit")
	ErrImageDecode       = errors.New("image could not be decoded")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

const jpegQuality = 90

// MattingConfig holds the connection settings for the optional background
// removal service.
type MattingConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ImageProcessor normalizes uploaded images into the canonical form every
// extractor consumes: background removed when matting is enabled, composited
// onto white, resized to a fixed square, encoded as JPEG.
type ImageProcessor struct {
	matting    *resty.Client
	targetSize int
	maxBytes   int64
}

// NewImageProcessor creates a processor producing targetSize x targetSize
// JPEGs and rejecting uploads above maxSizeMB megabytes.
func NewImageProcessor(mattingCfg MattingConfig, targetSize, maxSizeMB int) *ImageProcessor {
	p := &ImageProcessor{
		targetSize: targetSize,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
	}
	if mattingCfg.Enabled {
		client := resty.New().
			SetBaseURL(mattingCfg.BaseURL).
			SetTimeout(mattingCfg.Timeout).
			SetHeader("Content-Type", "application/json")
		if mattingCfg.APIKey != "" {
			client.SetHeader("Authorization", "Bearer "+mattingCfg.APIKey)
		}
		p.matting = client
	}
	return p
}

// Process validates and normalizes one uploaded image. It returns the
// encoded JPEG bytes plus the normalized image for callers that need to
// embed it. Matching quality depends on every stored image going through
// the same pipeline, so a matting failure fails the upload instead of
// silently storing an unprocessed image.
func (p *ImageProcessor) Process(ctx context.Context, filename string, data []byte) ([]byte, image.Image, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	if p.matting != nil {
		cutout, err := p.removeBackground(ctx, data)
		if err != nil {
			return nil, nil, fmt.Errorf("background removal: %w", err)
		}
		data = cutout
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	normalized := p.normalize(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, normalized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), normalized, nil
}

// normalize composites the image onto a white background and scales it to
// the target square. White compositing flattens the alpha channel matting
// leaves behind.
func (p *ImageProcessor) normalize(src image.Image) image.Image {
	bounds := src.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, bounds.Min, draw.Over)

	out := image.NewRGBA(image.Rect(0, 0, p.targetSize, p.targetSize))
	xdraw.CatmullRom.Scale(out, out.Bounds(), flat, flat.Bounds(), xdraw.Src, nil)
	return out
}

type mattingRequest struct {
	Image string `json:"image"`
}

type mattingResponse struct {
	Image  string `json:"image"`
	Detail string `json:"detail,omitempty"`
}

// removeBackground sends the raw upload to the matting service and returns
// the PNG cutout with a transparent background.
func (p *ImageProcessor) removeBackground(ctx context.Context, data []byte) ([]byte, error) {
	var result mattingResponse
	resp, err := p.matting.R().
		SetContext(ctx).
		SetBody(mattingRequest{Image: base64.StdEncoding.EncodeToString(data)}).
		SetResult(&result).
		Post("/v1/segment")
	if err != nil {
		return nil, fmt.Errorf("matting request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("matting request failed with status %d: %s", resp.StatusCode(), result.Detail)
	}
	cutout, err := base64.StdEncoding.DecodeString(result.Image)
	if err != nil {
		return nil, fmt.Errorf("decode matting payload: %w", err)
	}
	return cutout, nil
}
