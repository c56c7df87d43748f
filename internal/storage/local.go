package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements ImageStore on the local filesystem.
type LocalStore struct {
	root      string
	publicURL string
	imageSize int
}

// NewLocalStore creates a filesystem-backed image store.
// Parameters:
//   - root: directory under which images are written.
//   - publicURL: URL prefix the HTTP layer serves root from.
//   - imageSize: standard square edge size images are normalized to on load.
// Returns:
//   - *LocalStore: initialized store.
//   - error: non-nil if the root directory cannot be created.
func NewLocalStore(root, publicURL string, imageSize int) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		imageSize: imageSize,
	}, nil
}

// Root returns the directory images are stored under.
func (s *LocalStore) Root() string {
	return s.root
}

// Save stores processed image bytes under the given relative path.
func (s *LocalStore) Save(ctx context.Context, path string, data []byte, contentType string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// Load retrieves and decodes the image stored at path.
func (s *LocalStore) Load(ctx context.Context, path string) (image.Image, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, ErrNotAvailable
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, ErrNotAvailable
	}
	defer f.Close()

	img, err := decodeNormalized(f, s.imageSize)
	if err != nil {
		return nil, ErrNotAvailable
	}
	return img, nil
}

// URL returns the public URL for an image path.
func (s *LocalStore) URL(path string) string {
	return s.publicURL + "/" + strings.TrimLeft(path, "/")
}

// Exists checks whether an image is present at path.
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the image at path.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// resolve joins path under root and rejects traversal outside it.
func (s *LocalStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	fullAbs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if fullAbs != rootAbs && !strings.HasPrefix(fullAbs, rootAbs+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid image path: %q", path)
	}
	return full, nil
}
