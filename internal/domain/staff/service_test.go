package staff

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vetpms/vetpms/internal/platform/auth"
)

// -- Mocks --

type mockRepo struct {
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == strings.ToLower(u.Email) {
			return ErrDuplicateEmail
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

type mockSessionStore struct {
	sessions map[uuid.UUID]*auth.Session
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[uuid.UUID]*auth.Session)}
}

func (m *mockSessionStore) Create(_ context.Context, s *auth.Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessionStore) Get(_ context.Context, id uuid.UUID) (*auth.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionStore) DeleteForStaff(_ context.Context, staffID uuid.UUID) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if s.StaffID == staffID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *mockSessionStore) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if time.Now().After(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// -- Tests --

func newTestService() (*Service, *mockRepo, *mockSessionStore) {
	repo := newMockRepo()
	sessions := newMockSessionStore()
	return NewService(repo, sessions, 12*time.Hour), repo, sessions
}

func TestCreate_HashesPassword(t *testing.T) {
	svc, _, _ := newTestService()

	u := &User{Email: "vet@clinic.test", FullName: "Dr. Ada Paws", Role: auth.RoleVeterinarian}
	if err := svc.Create(context.Background(), u, "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if u.PasswordHash == "" || u.PasswordHash == "correct-horse-battery" {
		t.Error("password must be stored hashed")
	}
	if !strings.HasPrefix(u.PasswordHash, "$argon2id$") {
		t.Errorf("expected argon2id hash, got %q", u.PasswordHash)
	}
	if !u.Active {
		t.Error("new accounts should be active")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		user     *User
		password string
	}{
		{"missing name", &User{Email: "a@b.test", Role: auth.RoleAdmin}, "long-enough-pass"},
		{"bad email", &User{Email: "not-an-email", FullName: "X", Role: auth.RoleAdmin}, "long-enough-pass"},
		{"bad role", &User{Email: "a@b.test", FullName: "X", Role: "janitor"}, "long-enough-pass"},
		{"short password", &User{Email: "a@b.test", FullName: "X", Role: auth.RoleAdmin}, "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(ctx, tt.user, tt.password); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u1 := &User{Email: "front@clinic.test", FullName: "A", Role: auth.RoleReceptionist}
	if err := svc.Create(ctx, u1, "long-enough-pass"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	u2 := &User{Email: "Front@clinic.test", FullName: "B", Role: auth.RoleReceptionist}
	if err := svc.Create(ctx, u2, "long-enough-pass"); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()

	u := &User{Email: "vet@clinic.test", FullName: "Dr. Ada Paws", Role: auth.RoleVeterinarian}
	if err := svc.Create(ctx, u, "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, sess, err := svc.Login(ctx, "vet@clinic.test", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.ID != u.ID {
		t.Error("login returned wrong user")
	}
	if sess.StaffID != u.ID {
		t.Error("session bound to wrong staff member")
	}
	if len(sess.Roles) != 1 || sess.Roles[0] != auth.RoleVeterinarian {
		t.Errorf("unexpected session roles: %v", sess.Roles)
	}
	if _, ok := sessions.sessions[sess.ID]; !ok {
		t.Error("session not persisted")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u := &User{Email: "vet@clinic.test", FullName: "Dr. Ada Paws", Role: auth.RoleVeterinarian}
	if err := svc.Create(ctx, u, "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, _, err := svc.Login(ctx, "vet@clinic.test", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()
	if _, _, err := svc.Login(context.Background(), "ghost@clinic.test", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	u := &User{Email: "vet@clinic.test", FullName: "Dr. Ada Paws", Role: auth.RoleVeterinarian}
	if err := svc.Create(ctx, u, "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	repo.users[u.ID].Active = false

	if _, _, err := svc.Login(ctx, "vet@clinic.test", "correct-horse-battery"); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()

	u := &User{Email: "vet@clinic.test", FullName: "Dr. Ada Paws", Role: auth.RoleVeterinarian}
	if err := svc.Create(ctx, u, "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, _, err := svc.Login(ctx, "vet@clinic.test", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "correct-horse-battery", "new-longer-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Error("expected all sessions revoked after password change")
	}

	if _, _, err := svc.Login(ctx, "vet@clinic.test", "new-longer-password"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u := &User{Email: "vet@clinic.test", FullName: "Dr. Ada Paws", Role: auth.RoleVeterinarian}
	if err := svc.Create(ctx, u, "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := svc.ChangePassword(ctx, u.ID, "nope", "new-longer-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUpdate_DeactivateRevokesSessions(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()

	u := &User{Email: "vet@clinic.test", FullName: "Dr. Ada Paws", Role: auth.RoleVeterinarian}
	if err := svc.Create(ctx, u, "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, _, err := svc.Login(ctx, "vet@clinic.test", "correct-horse-battery"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	u.Active = false
	if err := svc.Update(ctx, u); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Error("expected sessions revoked on deactivation")
	}
}
