package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	reminders map[uuid.UUID]*Reminder
}

func newMockRepo() *mockRepo {
	return &mockRepo{reminders: make(map[uuid.UUID]*Reminder)}
}

func (m *mockRepo) Create(_ context.Context, r *Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	m.reminders[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Reminder, error) {
	r, ok := m.reminders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, r *Reminder) error {
	if _, ok := m.reminders[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.reminders[r.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Reminder, int, error) {
	var out []*Reminder
	for _, r := range m.reminders {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRepo) MarkDue(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, r := range m.reminders {
		if r.Status == StatusPending && !r.DueDate.After(now) {
			r.Status = StatusDue
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) DueOn(_ context.Context, day time.Time) ([]*Reminder, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []*Reminder
	for _, r := range m.reminders {
		if r.resolved() {
			continue
		}
		if !r.DueDate.Before(start) && r.DueDate.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func validReminder(due time.Time) *Reminder {
	return &Reminder{
		PatientID: uuid.New(),
		Type:      TypeFollowup,
		Title:     "Recheck left ear",
		DueDate:   due,
	}
}

func TestCreate_FutureReminderIsPending(t *testing.T) {
	svc := NewService(newMockRepo())

	r := validReminder(time.Now().AddDate(0, 0, 14))
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("expected pending, got %q", r.Status)
	}
}

func TestCreate_PastDueDateIsImmediatelyDue(t *testing.T) {
	svc := NewService(newMockRepo())

	r := validReminder(time.Now().Add(-time.Hour))
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.Status != StatusDue {
		t.Errorf("expected due, got %q", r.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	cases := map[string]*Reminder{
		"missing patient": {Type: TypeFollowup, Title: "x", DueDate: time.Now()},
		"unknown type":    {PatientID: uuid.New(), Type: "birthday", Title: "x", DueDate: time.Now()},
		"missing title":   {PatientID: uuid.New(), Type: TypeFollowup, DueDate: time.Now()},
		"missing due":     {PatientID: uuid.New(), Type: TypeFollowup, Title: "x"},
	}
	for name, r := range cases {
		if err := svc.Create(ctx, r); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestScheduleVaccinationReminder(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	patientID := uuid.New()
	due := time.Now().AddDate(1, 0, 0)
	if err := svc.ScheduleVaccinationReminder(context.Background(), patientID, "Rabies", due); err != nil {
		t.Fatalf("ScheduleVaccinationReminder failed: %v", err)
	}
	if len(repo.reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(repo.reminders))
	}
	for _, r := range repo.reminders {
		if r.Type != TypeVaccination {
			t.Errorf("expected vaccination type, got %q", r.Type)
		}
		if r.Title != "Rabies booster due" {
			t.Errorf("unexpected title %q", r.Title)
		}
	}
}

func TestMarkDue_Sweep(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	overdue := validReminder(time.Now().AddDate(0, 0, 14))
	if err := svc.Create(ctx, overdue); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	future := validReminder(time.Now().AddDate(0, 1, 0))
	if err := svc.Create(ctx, future); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Move the first reminder's due date into the past behind the service.
	repo.reminders[overdue.ID].DueDate = time.Now().Add(-time.Hour)

	n, err := svc.MarkDue(ctx)
	if err != nil {
		t.Fatalf("MarkDue failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 marked due, got %d", n)
	}
	got, _ := svc.Get(ctx, future.ID)
	if got.Status != StatusPending {
		t.Errorf("future reminder must stay pending, got %q", got.Status)
	}
}

func TestComplete_ThenResolveAgainRejected(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	r := validReminder(time.Now().Add(-time.Hour))
	if err := svc.Create(ctx, r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	staffID := uuid.New()
	done, err := svc.Complete(ctx, r.ID, &staffID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if done.Status != StatusCompleted || done.ResolvedAt == nil {
		t.Errorf("expected completed with timestamp, got %q", done.Status)
	}
	if _, err := svc.Dismiss(ctx, r.ID, nil); !errors.Is(err, ErrResolved) {
		t.Errorf("expected ErrResolved, got %v", err)
	}
}

func TestDueToday_ExcludesResolved(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	today := validReminder(time.Now())
	if err := svc.Create(ctx, today); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	resolved := validReminder(time.Now())
	if err := svc.Create(ctx, resolved); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Dismiss(ctx, resolved.ID, nil); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}

	due, err := svc.DueToday(ctx)
	if err != nil {
		t.Fatalf("DueToday failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != today.ID {
		t.Errorf("expected only the unresolved reminder, got %d", len(due))
	}
}
