package staff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetpms/vetpms/internal/platform/auth"
)

const minPasswordLength = 10

type Service struct {
	repo     Repository
	sessions auth.SessionStore
	ttl      time.Duration
}

func NewService(repo Repository, sessions auth.SessionStore, sessionTTL time.Duration) *Service {
	return &Service{repo: repo, sessions: sessions, ttl: sessionTTL}
}

// Create registers a staff account with a hashed password.
func (s *Service) Create(ctx context.Context, u *User, password string) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.Active = true

	return s.repo.Create(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update changes profile fields. Deactivating an account also revokes its
// open sessions so the change takes effect immediately.
func (s *Service) Update(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	if !u.Active {
		_, _ = s.sessions.DeleteForStaff(ctx, u.ID)
	}
	return nil
}

// ChangePassword verifies the current password before setting a new one and
// revokes every other session for the account.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.VerifyPassword(current, u.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	_, _ = s.sessions.DeleteForStaff(ctx, id)
	return nil
}

// SetPassword force-sets a password without checking the current one.
// Admin-only; also used by the CLI bootstrap.
func (s *Service) SetPassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	_, _ = s.sessions.DeleteForStaff(ctx, id)
	return nil
}

// Login verifies credentials and opens a session. Disabled accounts and bad
// credentials are indistinguishable to the caller apart from the error value;
// both map to 401.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *auth.Session, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		// Burn a hash comparison anyway so response timing does not reveal
		// whether the email exists.
		_ = auth.VerifyPassword(password, "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
		return nil, nil, ErrInvalidCredentials
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, nil, ErrAccountDisabled
	}

	now := time.Now().UTC()
	sess := &auth.Session{
		ID:        uuid.New(),
		StaffID:   u.ID,
		Roles:     []string{u.Role},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return u, sess, nil
}

// Logout revokes a single session.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, sessionID)
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}
