// Package blobstore stores document binary content for the practice. The
// document domain keeps metadata rows in its own table and references blobs
// by ID; this package only deals with the bytes. An in-memory implementation
// backs tests and development, and a Postgres-backed one backs production.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("blob not found")
	ErrTooLarge           = errors.New("content exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
)

// DefaultMaxSize is the fallback size cap when a store is created with a
// non-positive limit (25 MB).
const DefaultMaxSize = 25 * 1024 * 1024

// AllowedContentTypes lists the MIME types accepted for practice documents:
// imaging, lab result exports, scanned consent forms, and plain notes.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/heic":      true,
	"application/pdf": true,
	"text/plain":      true,
	"text/csv":        true,
}

// Blob describes stored content. The hash is the SHA-256 of the bytes, so
// callers can detect duplicate uploads without fetching content.
type Blob struct {
	ID          uuid.UUID `json:"id"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the contract for blob storage backends.
type Store interface {
	Put(ctx context.Context, contentType string, content io.Reader) (*Blob, error)
	Get(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Blob, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// readContent enforces the content-type allowlist and size cap, returning the
// raw bytes and their SHA-256.
func readContent(contentType string, content io.Reader, maxSize int64) ([]byte, string, error) {
	if !AllowedContentTypes[contentType] {
		return nil, "", ErrInvalidContentType
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	data, err := io.ReadAll(io.LimitReader(content, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", ErrTooLarge
	}

	sum := sha256.Sum256(data)
	return data, fmt.Sprintf("%x", sum), nil
}

type storedBlob struct {
	meta    Blob
	content []byte
}

// MemoryStore is a thread-safe, in-memory Store for testing and development.
type MemoryStore struct {
	mu      sync.RWMutex
	maxSize int64
	blobs   map[uuid.UUID]*storedBlob
}

// NewMemoryStore returns a ready-to-use MemoryStore with the given size cap
// in bytes.
func NewMemoryStore(maxSize int64) *MemoryStore {
	return &MemoryStore{
		maxSize: maxSize,
		blobs:   make(map[uuid.UUID]*storedBlob),
	}
}

func (s *MemoryStore) Put(_ context.Context, contentType string, content io.Reader) (*Blob, error) {
	data, hash, err := readContent(contentType, content, s.maxSize)
	if err != nil {
		return nil, err
	}

	meta := Blob{
		ID:          uuid.New(),
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      hash,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{meta: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (io.ReadCloser, *Blob, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrNotFound
	}

	meta := blob.meta
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, id)
	return nil
}
