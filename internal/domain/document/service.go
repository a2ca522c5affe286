package document

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/vetpms/vetpms/internal/platform/blobstore"
)

type Service struct {
	repo  Repository
	blobs blobstore.Store
}

func NewService(repo Repository, blobs blobstore.Store) *Service {
	return &Service{repo: repo, blobs: blobs}
}

// Upload stores the content in the blobstore and then writes the metadata
// row. If the row insert fails the blob is cleaned up so nothing is orphaned.
func (s *Service) Upload(ctx context.Context, d *Document, content io.Reader) error {
	if err := d.Validate(); err != nil {
		return err
	}

	blob, err := s.blobs.Put(ctx, d.ContentType, content)
	if err != nil {
		return err
	}
	d.BlobID = blob.ID
	d.SizeBytes = blob.Size

	if err := s.repo.Create(ctx, d); err != nil {
		_ = s.blobs.Delete(ctx, blob.ID)
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Document, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// Download returns the metadata row plus a reader over the stored bytes. The
// caller owns closing the reader.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*Document, io.ReadCloser, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Get(ctx, d.BlobID)
	if err != nil {
		return nil, nil, err
	}
	return d, rc, nil
}

// Delete removes the metadata row and its blob. A blob already missing from
// the store is not an error; the metadata row is authoritative.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, d.BlobID); err != nil && err != blobstore.ErrNotFound {
		return err
	}
	return nil
}
