package staff

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetpms/vetpms/internal/platform/auth"
)

var (
	ErrNotFound           = errors.New("staff member not found")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrValidation         = errors.New("validation failed")
)

// User maps to the staff_users table. PasswordHash is never serialized.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks the fields a caller controls on create/update.
func (u *User) Validate() error {
	if strings.TrimSpace(u.FullName) == "" {
		return fmt.Errorf("%w: full_name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if !auth.ValidRoles[u.Role] {
		return fmt.Errorf("%w: role must be one of admin, veterinarian, technician, receptionist", ErrValidation)
	}
	return nil
}
