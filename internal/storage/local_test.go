package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestLocalStoreRoundtrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads", 32)
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}
	ctx := context.Background()

	data := encodeJPEG(t, 100, 60)
	if err := store.Save(ctx, "lost/LF-AAAAAA-AAAAAA_deadbeef.jpg", data, "image/jpeg"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	exists, err := store.Exists(ctx, "lost/LF-AAAAAA-AAAAAA_deadbeef.jpg")
	if err != nil || !exists {
		t.Errorf("Exists = (%v, %v), want (true, nil)", exists, err)
	}

	img, err := store.Load(ctx, "lost/LF-AAAAAA-AAAAAA_deadbeef.jpg")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	// loading normalizes to the configured square edge
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("loaded bounds = %v, want 32x32", b)
	}

	if err := store.Delete(ctx, "lost/LF-AAAAAA-AAAAAA_deadbeef.jpg"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	exists, err = store.Exists(ctx, "lost/LF-AAAAAA-AAAAAA_deadbeef.jpg")
	if err != nil || exists {
		t.Errorf("Exists after delete = (%v, %v), want (false, nil)", exists, err)
	}
}

func TestLocalStoreLoadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads", 32)
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}

	if _, err := store.Load(context.Background(), "found/missing.jpg"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Load error = %v, want ErrNotAvailable", err)
	}
}

func TestLocalStoreLoadCorrupt(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads", 32)
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "found/bad.jpg", []byte("not an image"), "image/jpeg"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := store.Load(ctx, "found/bad.jpg"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Load error = %v, want ErrNotAvailable", err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads", 32)
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}

	if err := store.Save(context.Background(), "../escape.jpg", []byte("x"), "image/jpeg"); err == nil {
		t.Error("Save accepted a path outside the storage root")
	}
}

func TestLocalStoreURL(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/uploads/", 32)
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}

	got := store.URL("lost/item.jpg")
	if got != "http://localhost:8080/uploads/lost/item.jpg" {
		t.Errorf("URL = %q", got)
	}
}
