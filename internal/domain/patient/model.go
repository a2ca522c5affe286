package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("patient not found")
	ErrDuplicateMicrochip = errors.New("microchip number already registered")
	ErrValidation         = errors.New("validation failed")
)

// ValidSpecies lists the species the practice treats. "other" covers the
// occasional ferret or goat.
var ValidSpecies = map[string]bool{
	"canine":  true,
	"feline":  true,
	"avian":   true,
	"rabbit":  true,
	"rodent":  true,
	"reptile": true,
	"equine":  true,
	"other":   true,
}

// ValidSexes includes altered states since they matter clinically.
var ValidSexes = map[string]bool{
	"male":          true,
	"female":        true,
	"male_neutered": true,
	"female_spayed": true,
	"unknown":       true,
}

// Patient maps to the patients table.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ClientID        uuid.UUID  `db:"client_id" json:"client_id"`
	Name            string     `db:"name" json:"name"`
	Species         string     `db:"species" json:"species"`
	Breed           *string    `db:"breed" json:"breed,omitempty"`
	Sex             string     `db:"sex" json:"sex"`
	Color           *string    `db:"color" json:"color,omitempty"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	MicrochipNumber *string    `db:"microchip_number" json:"microchip_number,omitempty"`
	Deceased        bool       `db:"deceased" json:"deceased"`
	DeceasedDate    *time.Time `db:"deceased_date" json:"deceased_date,omitempty"`
	Alerts          *string    `db:"alerts" json:"alerts,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) Validate() error {
	if p.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !ValidSpecies[p.Species] {
		return fmt.Errorf("%w: unknown species %q", ErrValidation, p.Species)
	}
	if p.Sex == "" {
		p.Sex = "unknown"
	}
	if !ValidSexes[p.Sex] {
		return fmt.Errorf("%w: unknown sex %q", ErrValidation, p.Sex)
	}
	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return fmt.Errorf("%w: birth_date cannot be in the future", ErrValidation)
	}
	if m := p.MicrochipNumber; m != nil && strings.TrimSpace(*m) == "" {
		p.MicrochipNumber = nil
	}
	return nil
}

// Vaccination maps to the patient_vaccinations table.
type Vaccination struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	VaccineName    string     `db:"vaccine_name" json:"vaccine_name"`
	AdministeredAt time.Time  `db:"administered_at" json:"administered_at"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	AdministeredBy *uuid.UUID `db:"administered_by" json:"administered_by,omitempty"`
	LotNumber      *string    `db:"lot_number" json:"lot_number,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// WeightEntry maps to the patient_weights table. Weights are kept as a log so
// trends are visible; the latest entry is the current weight.
type WeightEntry struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	WeightKg   float64    `db:"weight_kg" json:"weight_kg"`
	RecordedAt time.Time  `db:"recorded_at" json:"recorded_at"`
	RecordedBy *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	Note       *string    `db:"note" json:"note,omitempty"`
}
