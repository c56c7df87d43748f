package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestImageProcessorValidation(t *testing.T) {
	p := NewImageProcessor(MattingConfig{}, 64, 1)
	ctx := context.Background()

	valid := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 10, 10)))

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  error
	}{
		{"disallowed extension", "photo.gif", valid, ErrUnsupportedFormat},
		{"no extension", "photo", valid, ErrUnsupportedFormat},
		{"oversized upload", "photo.png", make([]byte, 2*1024*1024), ErrImageTooLarge},
		{"corrupt payload", "photo.jpg", []byte("not an image"), ErrImageDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.Process(ctx, tt.filename, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Process error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestImageProcessorNormalizes(t *testing.T) {
	p := NewImageProcessor(MattingConfig{}, 64, 10)

	src := image.NewRGBA(image.Rect(0, 0, 30, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 30; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}

	data, normalized, err := p.Process(context.Background(), "item.png", encodePNG(t, src))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if b := normalized.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("normalized bounds = %v, want 64x64", b)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid jpeg: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("stored bounds = %v, want 64x64", b)
	}
}

func TestImageProcessorCompositesTransparencyOntoWhite(t *testing.T) {
	p := NewImageProcessor(MattingConfig{}, 16, 10)

	// fully transparent source, must come out white after flattening
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	_, normalized, err := p.Process(context.Background(), "cutout.png", encodePNG(t, src))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	r, g, b, _ := normalized.At(8, 8).RGBA()
	if r < 0xf000 || g < 0xf000 || b < 0xf000 {
		t.Errorf("flattened pixel = (%d, %d, %d), want near white", r, g, b)
	}
}
