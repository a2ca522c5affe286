package prescription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	rxs map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{rxs: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.rxs[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.rxs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	if _, ok := m.rxs[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.rxs[p.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Prescription, int, error) {
	var out []*Prescription
	for _, p := range m.rxs {
		out = append(out, p)
	}
	return out, len(out), nil
}

// InTx mirrors the transactional repo: writes made by fn are discarded
// when fn returns an error.
func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := make(map[uuid.UUID]*Prescription, len(m.rxs))
	for id, p := range m.rxs {
		cp := *p
		snapshot[id] = &cp
	}
	if err := fn(ctx); err != nil {
		m.rxs = snapshot
		return err
	}
	return nil
}

func (m *mockRepo) MarkExpired(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, p := range m.rxs {
		if p.Status == StatusActive && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			p.Status = StatusExpired
			count++
		}
	}
	return count, nil
}

type mockInventory struct {
	dispensable map[uuid.UUID]bool
	onHand      map[uuid.UUID]float64
	dispensed   []float64
}

func newMockInventory() *mockInventory {
	return &mockInventory{
		dispensable: make(map[uuid.UUID]bool),
		onHand:      make(map[uuid.UUID]float64),
	}
}

func (m *mockInventory) DispensableProduct(_ context.Context, id uuid.UUID) (bool, error) {
	ok, known := m.dispensable[id]
	if !known {
		return false, errors.New("product not found")
	}
	return ok, nil
}

func (m *mockInventory) DispenseForPrescription(_ context.Context, productID uuid.UUID, qty float64, _ uuid.UUID) error {
	if m.onHand[productID] < qty {
		return ErrInsufficientStock
	}
	m.onHand[productID] -= qty
	m.dispensed = append(m.dispensed, qty)
	return nil
}

func seedInventory(inv *mockInventory, onHand float64) uuid.UUID {
	id := uuid.New()
	inv.dispensable[id] = true
	inv.onHand[id] = onHand
	return id
}

func validRx(productID uuid.UUID) *Prescription {
	expires := time.Now().Add(180 * 24 * time.Hour)
	return &Prescription{
		PatientID:         uuid.New(),
		VetID:             uuid.New(),
		ProductID:         productID,
		Dosage:            "250mg twice daily with food",
		Quantity:          14,
		RefillsAuthorized: 2,
		ExpiresAt:         &expires,
	}
}

func TestCreate_DispensesInitialFill(t *testing.T) {
	inv := newMockInventory()
	svc := NewService(newMockRepo(), inv)
	productID := seedInventory(inv, 100)

	p := validRx(productID)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Status != StatusActive {
		t.Errorf("expected active, got %q", p.Status)
	}
	if p.RefillsRemaining != 2 {
		t.Errorf("expected 2 refills remaining, got %d", p.RefillsRemaining)
	}
	if inv.onHand[productID] != 86 {
		t.Errorf("expected 14 dispensed, on hand %v", inv.onHand[productID])
	}
	if p.LastFilledAt == nil {
		t.Error("expected last_filled_at stamped")
	}
}

func TestCreate_ZeroRefillsGoesStraightToFilled(t *testing.T) {
	inv := newMockInventory()
	svc := NewService(newMockRepo(), inv)
	productID := seedInventory(inv, 100)

	p := validRx(productID)
	p.RefillsAuthorized = 0
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Status != StatusFilled {
		t.Errorf("expected filled, got %q", p.Status)
	}
}

func TestCreate_StockShortageLeavesNoRow(t *testing.T) {
	inv := newMockInventory()
	repo := newMockRepo()
	svc := NewService(repo, inv)
	productID := seedInventory(inv, 5) // less than one fill
	ctx := context.Background()

	p := validRx(productID)
	if err := svc.Create(ctx, p); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no row after failed initial fill, got %v", err)
	}
}

func TestCreate_RejectsNonDispensableProduct(t *testing.T) {
	inv := newMockInventory()
	svc := NewService(newMockRepo(), inv)
	productID := uuid.New()
	inv.dispensable[productID] = false

	if err := svc.Create(context.Background(), validRx(productID)); !errors.Is(err, ErrNotDispensable) {
		t.Errorf("expected ErrNotDispensable, got %v", err)
	}
}

func TestRefill_DecrementsAndFills(t *testing.T) {
	inv := newMockInventory()
	svc := NewService(newMockRepo(), inv)
	productID := seedInventory(inv, 100)
	ctx := context.Background()

	p := validRx(productID)
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := svc.Refill(ctx, p.ID)
	if err != nil {
		t.Fatalf("Refill failed: %v", err)
	}
	if first.RefillsRemaining != 1 || first.Status != StatusActive {
		t.Errorf("expected 1 remaining / active, got %d / %q", first.RefillsRemaining, first.Status)
	}

	second, err := svc.Refill(ctx, p.ID)
	if err != nil {
		t.Fatalf("Refill failed: %v", err)
	}
	if second.RefillsRemaining != 0 || second.Status != StatusFilled {
		t.Errorf("expected 0 remaining / filled, got %d / %q", second.RefillsRemaining, second.Status)
	}
	if inv.onHand[productID] != 100-3*14 {
		t.Errorf("expected three fills dispensed, on hand %v", inv.onHand[productID])
	}

	if _, err := svc.Refill(ctx, p.ID); !errors.Is(err, ErrState) {
		t.Errorf("expected ErrState on filled prescription, got %v", err)
	}
}

func TestRefill_ExpiredPrescription(t *testing.T) {
	inv := newMockInventory()
	repo := newMockRepo()
	svc := NewService(repo, inv)
	productID := seedInventory(inv, 100)
	ctx := context.Background()

	p := validRx(productID)
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Force expiry behind the service's back.
	past := time.Now().Add(-time.Hour)
	stored := repo.rxs[p.ID]
	stored.ExpiresAt = &past

	if _, err := svc.Refill(ctx, p.ID); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
	got, _ := svc.Get(ctx, p.ID)
	if got.Status != StatusExpired {
		t.Errorf("expected status expired after attempt, got %q", got.Status)
	}
}

func TestRefill_CancelledPrescription(t *testing.T) {
	inv := newMockInventory()
	svc := NewService(newMockRepo(), inv)
	productID := seedInventory(inv, 100)
	ctx := context.Background()

	p := validRx(productID)
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, p.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := svc.Refill(ctx, p.ID); !errors.Is(err, ErrState) {
		t.Errorf("expected ErrState, got %v", err)
	}
}

func TestRefill_StockShortage(t *testing.T) {
	inv := newMockInventory()
	svc := NewService(newMockRepo(), inv)
	productID := seedInventory(inv, 14) // exactly one fill
	ctx := context.Background()

	p := validRx(productID)
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	before, _ := svc.Get(ctx, p.ID)

	_, err := svc.Refill(ctx, p.ID)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	after, _ := svc.Get(ctx, p.ID)
	if after.RefillsRemaining != before.RefillsRemaining {
		t.Error("refill counter must be untouched when dispensing fails")
	}
}

func TestMarkExpired_Sweep(t *testing.T) {
	inv := newMockInventory()
	repo := newMockRepo()
	svc := NewService(repo, inv)
	productID := seedInventory(inv, 100)
	ctx := context.Background()

	p := validRx(productID)
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	repo.rxs[p.ID].ExpiresAt = &past

	n, err := svc.MarkExpired(ctx)
	if err != nil {
		t.Fatalf("MarkExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired, got %d", n)
	}
}
