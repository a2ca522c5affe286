package client

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	clients     map[uuid.UUID]*Client
	withPatient map[uuid.UUID]bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		clients:     make(map[uuid.UUID]*Client),
		withPatient: make(map[uuid.UUID]bool),
	}
}

func (m *mockRepo) Create(_ context.Context, c *Client) error {
	for _, existing := range m.clients {
		if existing.Email == strings.ToLower(c.Email) {
			return ErrDuplicateEmail
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Email = strings.ToLower(c.Email)
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	m.clients[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*Client, error) {
	for _, c := range m.clients {
		if c.Email == strings.ToLower(email) {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, c *Client) error {
	if _, ok := m.clients[c.ID]; !ok {
		return ErrNotFound
	}
	m.clients[c.ID] = c
	return nil
}

func (m *mockRepo) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	c, ok := m.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.clients[id]; !ok {
		return ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Client, int, error) {
	var out []*Client
	for _, c := range m.clients {
		if filter.Status == "" && c.Status != StatusActive {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockRepo) HasPatients(_ context.Context, id uuid.UUID) (bool, error) {
	return m.withPatient[id], nil
}

func validClient() *Client {
	return &Client{
		FirstName: "Maria",
		LastName:  "Santos",
		Email:     "maria@example.test",
		Phone:     "555-0100",
	}
}

func TestCreate_DefaultsToActive(t *testing.T) {
	svc := NewService(newMockRepo())

	c := validClient()
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.Status != StatusActive {
		t.Errorf("expected status active, got %q", c.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Client)
	}{
		{"missing first name", func(c *Client) { c.FirstName = " " }},
		{"missing last name", func(c *Client) { c.LastName = "" }},
		{"bad email", func(c *Client) { c.Email = "not-an-email" }},
		{"missing phone", func(c *Client) { c.Phone = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClient()
			tt.mutate(c)
			if err := svc.Create(ctx, c); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	if err := svc.Create(ctx, validClient()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	dup := validClient()
	dup.Email = "MARIA@example.test"
	if err := svc.Create(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestDelete_BlockedWhenClientHasPatients(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c := validClient()
	if err := svc.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	repo.withPatient[c.ID] = true

	if err := svc.Delete(ctx, c.ID); !errors.Is(err, ErrHasPatients) {
		t.Errorf("expected ErrHasPatients, got %v", err)
	}
	if _, err := svc.Get(ctx, c.ID); err != nil {
		t.Error("client should still exist after blocked delete")
	}
}

func TestDelete_AllowedWithoutPatients(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	c := validClient()
	if err := svc.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	c := validClient()
	if err := svc.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.SetStatus(ctx, c.ID, StatusInactive); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, _ := svc.Get(ctx, c.ID)
	if got.Status != StatusInactive {
		t.Errorf("expected inactive, got %q", got.Status)
	}

	if err := svc.SetStatus(ctx, c.ID, "retired"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestUpdate_PreservesStatusWhenOmitted(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	c := validClient()
	if err := svc.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.SetStatus(ctx, c.ID, StatusInactive); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	upd := validClient()
	upd.ID = c.ID
	upd.Phone = "555-0199"
	if err := svc.Update(ctx, upd); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if upd.Status != StatusInactive {
		t.Errorf("expected status preserved as inactive, got %q", upd.Status)
	}
}

func TestList_DefaultExcludesInactive(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	active := validClient()
	if err := svc.Create(ctx, active); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	inactive := validClient()
	inactive.Email = "other@example.test"
	if err := svc.Create(ctx, inactive); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.SetStatus(ctx, inactive.ID, StatusInactive); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	got, total, err := svc.List(ctx, ListFilter{}, 20, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(got) != 1 {
		t.Errorf("expected 1 active client, got %d", total)
	}
}
