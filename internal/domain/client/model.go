package client

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("client not found")
	ErrDuplicateEmail = errors.New("a client with this email already exists")
	ErrHasPatients    = errors.New("client has patients on record; deactivate instead")
	ErrValidation     = errors.New("validation failed")
)

// Client statuses. Inactive clients keep their history but drop out of
// default listings.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Client maps to the clients table.
type Client struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	AltPhone     *string   `db:"alt_phone" json:"alt_phone,omitempty"`
	AddressLine1 *string   `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2 *string   `db:"address_line2" json:"address_line2,omitempty"`
	City         *string   `db:"city" json:"city,omitempty"`
	State        *string   `db:"state" json:"state,omitempty"`
	PostalCode   *string   `db:"postal_code" json:"postal_code,omitempty"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (c *Client) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" {
		return fmt.Errorf("%w: first_name is required", ErrValidation)
	}
	if strings.TrimSpace(c.LastName) == "" {
		return fmt.Errorf("%w: last_name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if c.Status != "" && c.Status != StatusActive && c.Status != StatusInactive {
		return fmt.Errorf("%w: status must be active or inactive", ErrValidation)
	}
	return nil
}

// FullName is used in reminder and invoice listings.
func (c *Client) FullName() string {
	return c.FirstName + " " + c.LastName
}
