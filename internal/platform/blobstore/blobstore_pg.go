package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetpms/vetpms/internal/platform/db"
)

// PGStore keeps blob content in the blobs table as bytea. Documents are a few
// MB of scans and lab exports, well inside what bytea handles comfortably, so
// no external object storage is needed.
type PGStore struct {
	pool    *pgxpool.Pool
	maxSize int64
}

func NewPGStore(pool *pgxpool.Pool, maxSize int64) *PGStore {
	return &PGStore{pool: pool, maxSize: maxSize}
}

func (s *PGStore) Put(ctx context.Context, contentType string, content io.Reader) (*Blob, error) {
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

	const query = `INSERT INTO blobs (id, content_type, size, sha256, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	if tx := db.TxFromContext(ctx); tx != nil {
		_, err = tx.Exec(ctx, query, meta.ID, meta.ContentType, meta.Size, meta.SHA256, data, meta.CreatedAt)
	} else {
		_, err = s.pool.Exec(ctx, query, meta.ID, meta.ContentType, meta.Size, meta.SHA256, data, meta.CreatedAt)
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Blob, error) {
	const query = `SELECT id, content_type, size, sha256, content, created_at FROM blobs WHERE id = $1`

	var meta Blob
	var data []byte
	var row pgx.Row
	if tx := db.TxFromContext(ctx); tx != nil {
		row = tx.QueryRow(ctx, query, id)
	} else {
		row = s.pool.QueryRow(ctx, query, id)
	}
	if err := row.Scan(&meta.ID, &meta.ContentType, &meta.Size, &meta.SHA256, &data, &meta.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), &meta, nil
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM blobs WHERE id = $1`

	if tx := db.TxFromContext(ctx); tx != nil {
		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
