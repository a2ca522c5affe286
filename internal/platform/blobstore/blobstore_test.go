package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := NewMemoryStore(1024)
	ctx := context.Background()

	blob, err := store.Put(ctx, "application/pdf", strings.NewReader("consent form bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if blob.Size != int64(len("consent form bytes")) {
		t.Errorf("expected size %d, got %d", len("consent form bytes"), blob.Size)
	}
	if blob.SHA256 == "" {
		t.Error("expected content hash to be set")
	}

	rc, meta, err := store.Get(ctx, blob.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "consent form bytes" {
		t.Errorf("unexpected content: %q", data)
	}
	if meta.ContentType != "application/pdf" {
		t.Errorf("unexpected content type: %q", meta.ContentType)
	}
}

func TestMemoryStore_DuplicateContentSameHash(t *testing.T) {
	store := NewMemoryStore(1024)
	ctx := context.Background()

	b1, err := store.Put(ctx, "text/plain", strings.NewReader("rabies certificate"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	b2, err := store.Put(ctx, "text/plain", strings.NewReader("rabies certificate"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if b1.SHA256 != b2.SHA256 {
		t.Error("identical content should produce identical hashes")
	}
	if b1.ID == b2.ID {
		t.Error("each upload should get its own ID")
	}
}

func TestMemoryStore_TooLarge(t *testing.T) {
	store := NewMemoryStore(10)
	_, err := store.Put(context.Background(), "text/plain", strings.NewReader("this content is longer than ten bytes"))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestMemoryStore_InvalidContentType(t *testing.T) {
	store := NewMemoryStore(1024)
	_, err := store.Put(context.Background(), "application/x-msdownload", strings.NewReader("nope"))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(1024)
	ctx := context.Background()

	blob, err := store.Put(ctx, "image/png", strings.NewReader("png bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := store.Delete(ctx, blob.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := store.Get(ctx, blob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, blob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_ZeroMaxUsesDefault(t *testing.T) {
	store := NewMemoryStore(0)
	if _, err := store.Put(context.Background(), "text/plain", strings.NewReader("small")); err != nil {
		t.Fatalf("Put with default cap failed: %v", err)
	}
}
