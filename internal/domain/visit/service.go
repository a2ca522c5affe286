package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceLine is the billing shape handed to the invoicing side when a
// completed visit is turned into a draft invoice.
type InvoiceLine struct {
	ProductID      *uuid.UUID
	Description    string
	Quantity       float64
	UnitPriceCents int64
	Taxable        bool
}

// InvoiceCreator produces a draft invoice for a completed visit. The invoice
// domain provides the implementation; wiring happens in main.
type InvoiceCreator interface {
	CreateDraftForVisit(ctx context.Context, clientID, visitID uuid.UUID, lines []InvoiceLine) (uuid.UUID, error)
}

// WeightRecorder appends exam-room weights to the patient's weight log.
// patient.Service satisfies this.
type WeightRecorder interface {
	RecordWeight(ctx context.Context, patientID uuid.UUID, weightKg float64, recordedBy *uuid.UUID, note *string) error
}

type Service struct {
	repo     Repository
	invoices InvoiceCreator
	weights  WeightRecorder
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) SetInvoiceCreator(ic InvoiceCreator) {
	s.invoices = ic
}

func (s *Service) SetWeightRecorder(wr WeightRecorder) {
	s.weights = wr
}

func (s *Service) Create(ctx context.Context, v *Visit) error {
	v.Status = StatusOpen
	if v.StartedAt.IsZero() {
		v.StartedAt = time.Now().UTC()
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return err
	}
	s.logWeight(ctx, v, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.repo.GetByID(ctx, id)
}

// Update revises the clinical record of an open visit. A newly taken or
// corrected weight is mirrored into the patient's weight log.
func (s *Service) Update(ctx context.Context, v *Visit) error {
	existing, err := s.repo.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	if existing.Status == StatusCompleted {
		return ErrVisitCompleted
	}

	v.PatientID = existing.PatientID
	v.ClientID = existing.ClientID
	v.VetID = existing.VetID
	v.AppointmentID = existing.AppointmentID
	v.Status = existing.Status
	v.InvoiceID = existing.InvoiceID
	v.StartedAt = existing.StartedAt
	v.CompletedAt = existing.CompletedAt

	if err := v.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return err
	}
	s.logWeight(ctx, v, existing.WeightKg)
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Visit, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) AddTreatment(ctx context.Context, t *Treatment) error {
	v, err := s.repo.GetByID(ctx, t.VisitID)
	if err != nil {
		return err
	}
	if v.Status == StatusCompleted {
		return ErrVisitCompleted
	}
	if err := t.Validate(); err != nil {
		return err
	}
	return s.repo.AddTreatment(ctx, t)
}

func (s *Service) ListTreatments(ctx context.Context, visitID uuid.UUID) ([]*Treatment, error) {
	if _, err := s.repo.GetByID(ctx, visitID); err != nil {
		return nil, err
	}
	return s.repo.ListTreatments(ctx, visitID)
}

func (s *Service) RemoveTreatment(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.GetTreatment(ctx, id)
	if err != nil {
		return err
	}
	v, err := s.repo.GetByID(ctx, t.VisitID)
	if err != nil {
		return err
	}
	if v.Status == StatusCompleted {
		return ErrVisitCompleted
	}
	return s.repo.RemoveTreatment(ctx, id)
}

// Complete closes the visit. When createInvoice is set and treatments were
// recorded, a draft invoice covering them is created and linked.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, createInvoice bool) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status == StatusCompleted {
		return nil, ErrVisitCompleted
	}

	now := time.Now().UTC()
	v.Status = StatusCompleted
	v.CompletedAt = &now

	// Invoice and visit close together: a failed visit update rolls back
	// the draft invoice.
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if createInvoice && s.invoices != nil {
			treatments, err := s.repo.ListTreatments(ctx, id)
			if err != nil {
				return err
			}
			if len(treatments) > 0 {
				lines := make([]InvoiceLine, 0, len(treatments))
				for _, t := range treatments {
					lines = append(lines, InvoiceLine{
						ProductID:      t.ProductID,
						Description:    t.Description,
						Quantity:       t.Quantity,
						UnitPriceCents: t.UnitPriceCents,
						Taxable:        t.Taxable,
					})
				}
				invoiceID, err := s.invoices.CreateDraftForVisit(ctx, v.ClientID, v.ID, lines)
				if err != nil {
					return err
				}
				v.InvoiceID = &invoiceID
			}
		}
		return s.repo.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// logWeight mirrors the visit weight into the patient weight log when it was
// newly taken or corrected.
func (s *Service) logWeight(ctx context.Context, v *Visit, previous *float64) {
	if s.weights == nil || v.WeightKg == nil {
		return
	}
	if previous != nil && *previous == *v.WeightKg {
		return
	}
	note := "recorded at visit"
	_ = s.weights.RecordWeight(ctx, v.PatientID, *v.WeightKg, &v.VetID, &note)
}
