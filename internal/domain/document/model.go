package document

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrValidation = errors.New("validation failed")
)

var ValidCategories = map[string]bool{
	"lab_result":   true,
	"consent_form": true,
	"imaging":      true,
	"estimate":     true,
	"referral":     true,
	"other":        true,
}

// Document is the metadata row; the bytes live in the blobstore under BlobID.
// A document is scoped to a patient, a client, or both.
type Document struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	ClientID    *uuid.UUID `db:"client_id" json:"client_id,omitempty"`
	Category    string     `db:"category" json:"category"`
	Title       string     `db:"title" json:"title"`
	FileName    string     `db:"file_name" json:"file_name"`
	ContentType string     `db:"content_type" json:"content_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	BlobID      uuid.UUID  `db:"blob_id" json:"-"`
	UploadedBy  *uuid.UUID `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (d *Document) Validate() error {
	if d.PatientID == nil && d.ClientID == nil {
		return fmt.Errorf("%w: patient_id or client_id is required", ErrValidation)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !ValidCategories[d.Category] {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, d.Category)
	}
	return nil
}
