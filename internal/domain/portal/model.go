package portal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidInvite      = errors.New("invite code is invalid or already used")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrAccountExists      = errors.New("client already has a portal account")
	ErrRequestState       = errors.New("appointment request is already resolved")
	ErrNotCancellable     = errors.New("appointment can no longer be cancelled")
)

// Lockout policy for failed portal logins.
const (
	maxFailedLogins = 5
	lockoutWindow   = 15 * time.Minute
)

// Account is a pet owner's portal login, one per client record. All portal
// reads are scoped by ClientID.
type Account struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ClientID     uuid.UUID  `db:"client_id" json:"client_id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Active       bool       `db:"active" json:"active"`
	FailedLogins int        `db:"failed_logins" json:"-"`
	LockedUntil  *time.Time `db:"locked_until" json:"-"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Account) locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// Invite is a staff-issued registration code binding a future portal account
// to a client record. Single use, expiring.
type Invite struct {
	Code      string     `db:"code" json:"code"`
	ClientID  uuid.UUID  `db:"client_id" json:"client_id"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

func (i *Invite) usable(now time.Time) bool {
	return i.UsedAt == nil && now.Before(i.ExpiresAt)
}

// Appointment request statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDeclined = "declined"
)

// AppointmentRequest is a client's proposed slot. Staff approval turns it
// into a real scheduled appointment; the request keeps a link to it.
type AppointmentRequest struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClientID       uuid.UUID  `db:"client_id" json:"client_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	PreferredStart time.Time  `db:"preferred_start" json:"preferred_start"`
	Reason         string     `db:"reason" json:"reason"`
	Status         string     `db:"status" json:"status"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	StaffNote      *string    `db:"staff_note" json:"staff_note,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

func (r *AppointmentRequest) Validate() error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if r.PreferredStart.IsZero() {
		return fmt.Errorf("%w: preferred_start is required", ErrValidation)
	}
	if !r.PreferredStart.After(time.Now()) {
		return fmt.Errorf("%w: preferred_start must be in the future", ErrValidation)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrValidation)
	}
	return nil
}
