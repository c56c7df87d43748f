package storage

import (
	"context"
	"errors"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrNotAvailable is returned by Load when the image cannot be produced,
// whether missing, unreadable, or undecodable. Callers treat all of these
// the same way.
var ErrNotAvailable = errors.New("image not available")

// ImageStore persists processed item images and serves them back as
// consistently sized RGB images. Load never returns partial data: it yields
// a decoded image at the store's configured edge size or ErrNotAvailable.
type ImageStore interface {
	// Save stores processed image bytes under the given relative path.
	Save(ctx context.Context, path string, data []byte, contentType string) error

	// Load retrieves and decodes the image stored at path.
	Load(ctx context.Context, path string) (image.Image, error)

	// URL returns the public URL for an image path.
	URL(path string) string

	// Exists checks whether an image is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the image at path.
	Delete(ctx context.Context, path string) error
}

// decodeNormalized decodes an image stream and scales it to a size×size RGBA
// image when the stored copy deviates from the standard edge size.
func decodeNormalized(r io.Reader, size int) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if size <= 0 || (b.Dx() == size && b.Dy() == size) {
		return img, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst, nil
}
