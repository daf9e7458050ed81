package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/port"
)

// Mock InventoryRepository with the same version-guarded reserve semantics
// as the Redis adapter.
type mockInventory struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newMockInventory(products ...domain.Product) *mockInventory {
	m := &mockInventory{products: make(map[string]*domain.Product)}
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *mockInventory) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Accounts = append([]domain.Account(nil), p.Accounts...)
	return &cp, nil
}

func (m *mockInventory) ReserveAccount(ctx context.Context, productID string, index, version, quantity int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return port.ErrVersionConflict
	}
	acc := &p.Accounts[index]
	if acc.Version != version || acc.Remaining() < quantity {
		return port.ErrVersionConflict
	}
	acc.CurrentUsers += quantity
	acc.LastUsed = now
	acc.Version++
	return nil
}

func account(index, current, max int, expiry time.Time) domain.Account {
	return domain.Account{
		Index:        index,
		Email:        "acc@example.com",
		Password:     "secret",
		CurrentUsers: current,
		MaxUsers:     max,
		ExpiresAt:    expiry,
	}
}

func TestAllocate_ProductNotFound(t *testing.T) {
	inv := newMockInventory()
	alloc := NewAllocator(inv)

	_, err := alloc.Allocate(context.Background(), "missing", 1)
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestAllocate_NoEligibleAccounts(t *testing.T) {
	now := time.Now()
	inv := newMockInventory(domain.Product{
		ID: "p1",
		Accounts: []domain.Account{
			account(0, 5, 5, now.Add(time.Hour)),  // full
			account(1, 0, 5, now.Add(-time.Hour)), // expired
		},
	})
	alloc := NewAllocator(inv)

	_, err := alloc.Allocate(context.Background(), "p1", 1)
	if !errors.Is(err, ErrNoAvailability) {
		t.Errorf("expected ErrNoAvailability, got: %v", err)
	}
}

func TestAllocate_SkipsInsufficientCapacity(t *testing.T) {
	now := time.Now()
	inv := newMockInventory(domain.Product{
		ID: "p1",
		Accounts: []domain.Account{
			account(0, 4, 5, now.Add(time.Hour)), // remaining 1 < quantity
			account(1, 0, 5, now.Add(time.Hour)), // remaining 5
		},
	})
	alloc := NewAllocator(inv)

	acc, err := alloc.Allocate(context.Background(), "p1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Index != 1 {
		t.Errorf("expected account 1, got %d", acc.Index)
	}
}

func TestAllocate_TightestFit(t *testing.T) {
	now := time.Now()
	inv := newMockInventory(domain.Product{
		ID: "p1",
		Accounts: []domain.Account{
			account(0, 0, 5, now.Add(time.Hour)), // remaining 5
			account(1, 3, 5, now.Add(time.Hour)), // remaining 2, tightest
			account(2, 1, 5, now.Add(time.Hour)), // remaining 4
		},
	})
	alloc := NewAllocator(inv)

	acc, err := alloc.Allocate(context.Background(), "p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Index != 1 {
		t.Errorf("expected tightest account 1, got %d", acc.Index)
	}
}

func TestAllocate_TieBreaksToEarliestAccount(t *testing.T) {
	now := time.Now()
	inv := newMockInventory(domain.Product{
		ID: "p1",
		Accounts: []domain.Account{
			account(0, 2, 5, now.Add(time.Hour)), // remaining 3
			account(1, 2, 5, now.Add(time.Hour)), // remaining 3
		},
	})
	alloc := NewAllocator(inv)

	acc, err := alloc.Allocate(context.Background(), "p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Index != 0 {
		t.Errorf("expected earliest account 0, got %d", acc.Index)
	}
}

func TestAllocate_ReturnsPreReservationSnapshot(t *testing.T) {
	now := time.Now()
	inv := newMockInventory(domain.Product{
		ID:       "p1",
		Accounts: []domain.Account{account(0, 1, 5, now.Add(time.Hour))},
	})
	alloc := NewAllocator(inv)

	acc, err := alloc.Allocate(context.Background(), "p1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.CurrentUsers != 1 {
		t.Errorf("expected pre-reservation count 1, got %d", acc.CurrentUsers)
	}

	stored, _ := inv.GetProduct(context.Background(), "p1")
	if got := stored.Accounts[0].CurrentUsers; got != 3 {
		t.Errorf("expected stored count 3, got %d", got)
	}
	if stored.Accounts[0].LastUsed.IsZero() {
		t.Error("expected lastUsed to be stamped")
	}
}

func TestAllocate_OnlyChosenAccountChanges(t *testing.T) {
	now := time.Now()
	inv := newMockInventory(domain.Product{
		ID: "p1",
		Accounts: []domain.Account{
			account(0, 0, 5, now.Add(time.Hour)),
			account(1, 4, 5, now.Add(time.Hour)), // tightest
			account(2, 2, 5, now.Add(time.Hour)),
		},
	})
	alloc := NewAllocator(inv)

	if _, err := alloc.Allocate(context.Background(), "p1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := inv.GetProduct(context.Background(), "p1")
	want := []int{0, 5, 2}
	for i, w := range want {
		if got := stored.Accounts[i].CurrentUsers; got != w {
			t.Errorf("account %d: expected count %d, got %d", i, w, got)
		}
	}
}

func TestAllocate_Concurrent_NoOversubscription(t *testing.T) {
	now := time.Now()
	maxUsers := 20
	totalRequests := 50

	inv := newMockInventory(domain.Product{
		ID:       "p1",
		Accounts: []domain.Account{account(0, 0, maxUsers, now.Add(time.Hour))},
	})
	alloc := NewAllocator(inv)
	alloc.retries = totalRequests

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := alloc.Allocate(context.Background(), "p1", 1); err == nil {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(maxUsers) {
		t.Errorf("expected %d successes, got %d", maxUsers, successCount.Load())
	}

	stored, _ := inv.GetProduct(context.Background(), "p1")
	if got := stored.Accounts[0].CurrentUsers; got != maxUsers {
		t.Errorf("expected count %d, got %d", maxUsers, got)
	}
}

// conflictOnce rejects the first reserve attempt to force one retry.
type conflictOnce struct {
	*mockInventory
	rejected atomic.Bool
}

func (c *conflictOnce) ReserveAccount(ctx context.Context, productID string, index, version, quantity int, now time.Time) error {
	if c.rejected.CompareAndSwap(false, true) {
		return port.ErrVersionConflict
	}
	return c.mockInventory.ReserveAccount(ctx, productID, index, version, quantity, now)
}

func TestAllocate_RetriesAfterVersionConflict(t *testing.T) {
	now := time.Now()
	inv := &conflictOnce{mockInventory: newMockInventory(domain.Product{
		ID:       "p1",
		Accounts: []domain.Account{account(0, 0, 5, now.Add(time.Hour))},
	})}
	alloc := NewAllocator(inv)

	acc, err := alloc.Allocate(context.Background(), "p1", 1)
	if err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}
	if acc == nil || acc.Index != 0 {
		t.Errorf("expected account 0, got %+v", acc)
	}
}

// alwaysConflict rejects every reserve attempt.
type alwaysConflict struct{ *mockInventory }

func (alwaysConflict) ReserveAccount(context.Context, string, int, int, int, time.Time) error {
	return port.ErrVersionConflict
}

func TestAllocate_GivesUpAfterRetries(t *testing.T) {
	now := time.Now()
	inv := alwaysConflict{newMockInventory(domain.Product{
		ID:       "p1",
		Accounts: []domain.Account{account(0, 0, 5, now.Add(time.Hour))},
	})}
	alloc := NewAllocator(inv)

	_, err := alloc.Allocate(context.Background(), "p1", 1)
	if !errors.Is(err, ErrReservationFailed) {
		t.Errorf("expected ErrReservationFailed, got: %v", err)
	}
}
