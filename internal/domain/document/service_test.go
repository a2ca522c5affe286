package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vetpms/vetpms/internal/platform/blobstore"
)

type mockRepo struct {
	docs       map[uuid.UUID]*Document
	failCreate bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{docs: make(map[uuid.UUID]*Document)}
}

func (m *mockRepo) Create(_ context.Context, d *Document) error {
	if m.failCreate {
		return errors.New("insert failed")
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Document, int, error) {
	var out []*Document
	for _, d := range m.docs {
		if filter.Category != "" && d.Category != filter.Category {
			continue
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func validDoc() *Document {
	patientID := uuid.New()
	return &Document{
		PatientID:   &patientID,
		Category:    "lab_result",
		Title:       "CBC panel",
		FileName:    "cbc.pdf",
		ContentType: "application/pdf",
	}
}

func TestUpload_StoresBlobAndMetadata(t *testing.T) {
	repo := newMockRepo()
	blobs := blobstore.NewMemoryStore(0)
	svc := NewService(repo, blobs)

	d := validDoc()
	if err := svc.Upload(context.Background(), d, strings.NewReader("pdf bytes")); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if d.BlobID == uuid.Nil {
		t.Fatal("expected blob id assigned")
	}
	if d.SizeBytes != int64(len("pdf bytes")) {
		t.Errorf("expected size %d, got %d", len("pdf bytes"), d.SizeBytes)
	}

	got, rc, err := svc.Download(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "pdf bytes" {
		t.Errorf("unexpected content %q", content)
	}
	if got.FileName != "cbc.pdf" {
		t.Errorf("unexpected file name %q", got.FileName)
	}
}

func TestUpload_RequiresOwner(t *testing.T) {
	svc := NewService(newMockRepo(), blobstore.NewMemoryStore(0))

	d := validDoc()
	d.PatientID = nil
	if err := svc.Upload(context.Background(), d, strings.NewReader("x")); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestUpload_RejectsUnknownCategory(t *testing.T) {
	svc := NewService(newMockRepo(), blobstore.NewMemoryStore(0))

	d := validDoc()
	d.Category = "memes"
	if err := svc.Upload(context.Background(), d, strings.NewReader("x")); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestUpload_RejectsDisallowedContentType(t *testing.T) {
	svc := NewService(newMockRepo(), blobstore.NewMemoryStore(0))

	d := validDoc()
	d.ContentType = "application/x-msdownload"
	if err := svc.Upload(context.Background(), d, strings.NewReader("x")); !errors.Is(err, blobstore.ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestUpload_CleansUpBlobWhenInsertFails(t *testing.T) {
	repo := newMockRepo()
	repo.failCreate = true
	blobs := blobstore.NewMemoryStore(0)
	svc := NewService(repo, blobs)

	d := validDoc()
	if err := svc.Upload(context.Background(), d, strings.NewReader("x")); err == nil {
		t.Fatal("expected insert failure")
	}
	if _, _, err := blobs.Get(context.Background(), d.BlobID); !errors.Is(err, blobstore.ErrNotFound) {
		t.Errorf("expected blob removed after failed insert, got %v", err)
	}
}

func TestDelete_RemovesRowAndBlob(t *testing.T) {
	repo := newMockRepo()
	blobs := blobstore.NewMemoryStore(0)
	svc := NewService(repo, blobs)
	ctx := context.Background()

	d := validDoc()
	if err := svc.Upload(ctx, d, strings.NewReader("x")); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := svc.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := blobs.Get(ctx, d.BlobID); !errors.Is(err, blobstore.ErrNotFound) {
		t.Errorf("expected blob removed, got %v", err)
	}
}

func TestList_FiltersByCategory(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, blobstore.NewMemoryStore(0))
	ctx := context.Background()

	lab := validDoc()
	if err := svc.Upload(ctx, lab, strings.NewReader("a")); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	consent := validDoc()
	consent.Category = "consent_form"
	consent.ContentType = "image/png"
	if err := svc.Upload(ctx, consent, strings.NewReader("b")); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	docs, total, err := svc.List(ctx, ListFilter{Category: "consent_form"}, 50, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(docs) != 1 || docs[0].Category != "consent_form" {
		t.Errorf("expected one consent_form, got %d/%d", total, len(docs))
	}
}
