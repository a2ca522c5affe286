package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("protocol not found")
	ErrPlanNotFound = errors.New("treatment plan not found")
	ErrStepNotFound = errors.New("plan step not found")
	ErrValidation   = errors.New("validation failed")
	ErrPlanState    = errors.New("treatment plan is not active")
	ErrStepState    = errors.New("plan step is already resolved")
)

// Protocol is a reusable treatment template ("canine vaccination series",
// "post-op dental recheck"): an ordered list of steps offset in days from
// whenever a plan built on it starts.
type Protocol struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Species     *string   `db:"species" json:"species,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	Steps       []*Step   `db:"-" json:"steps,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type Step struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ProtocolID   uuid.UUID  `db:"protocol_id" json:"-"`
	Position     int        `db:"position" json:"position"`
	Name         string     `db:"name" json:"name"`
	DayOffset    int        `db:"day_offset" json:"day_offset"`
	ProductID    *uuid.UUID `db:"product_id" json:"product_id,omitempty"`
	Dose         *string    `db:"dose" json:"dose,omitempty"`
	Instructions *string    `db:"instructions" json:"instructions,omitempty"`
}

func (p *Protocol) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrValidation)
	}
	for i, s := range p.Steps {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: step %d name is required", ErrValidation, i+1)
		}
		if s.DayOffset < 0 {
			return fmt.Errorf("%w: step %d day_offset must not be negative", ErrValidation, i+1)
		}
	}
	return nil
}

// Treatment plan statuses.
const (
	PlanActive    = "active"
	PlanCompleted = "completed"
	PlanCancelled = "cancelled"
)

// Plan step statuses.
const (
	StepPending   = "pending"
	StepCompleted = "completed"
	StepSkipped   = "skipped"
)

// TreatmentPlan is a concrete schedule for one patient. Built from a protocol
// it carries a copy of the protocol's steps with resolved dates; built ad hoc
// its steps come straight from the request.
type TreatmentPlan struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	PatientID  uuid.UUID   `db:"patient_id" json:"patient_id"`
	ProtocolID *uuid.UUID  `db:"protocol_id" json:"protocol_id,omitempty"`
	Name       string      `db:"name" json:"name"`
	StartDate  time.Time   `db:"start_date" json:"start_date"`
	Status     string      `db:"status" json:"status"`
	CreatedBy  *uuid.UUID  `db:"created_by" json:"created_by,omitempty"`
	Steps      []*PlanStep `db:"-" json:"steps,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

type PlanStep struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PlanID        uuid.UUID  `db:"plan_id" json:"-"`
	Position      int        `db:"position" json:"position"`
	Name          string     `db:"name" json:"name"`
	ScheduledDate time.Time  `db:"scheduled_date" json:"scheduled_date"`
	ProductID     *uuid.UUID `db:"product_id" json:"product_id,omitempty"`
	Dose          *string    `db:"dose" json:"dose,omitempty"`
	Instructions  *string    `db:"instructions" json:"instructions,omitempty"`
	Status        string     `db:"status" json:"status"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy    *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
}

// Progress reports how far along a plan is. Skipped steps count as resolved
// but not completed.
type Progress struct {
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Total     int `json:"total"`
}

func (p *TreatmentPlan) Progress() Progress {
	pr := Progress{Total: len(p.Steps)}
	for _, s := range p.Steps {
		switch s.Status {
		case StepCompleted:
			pr.Completed++
		case StepSkipped:
			pr.Skipped++
		}
	}
	return pr
}

func (p *TreatmentPlan) pendingSteps() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == StepPending {
			n++
		}
	}
	return n
}
