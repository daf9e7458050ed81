package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
)

type scriptedGateway struct {
	*fakeGateway
	mu     sync.Mutex
	orders []domain.Order
	err    error
	calls  int
}

func (g *scriptedGateway) ListRecent(ctx context.Context) ([]domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.orders, nil
}

type recordingDisplay struct {
	mu       sync.Mutex
	rendered [][]domain.Order
}

func (d *recordingDisplay) Render(orders []domain.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rendered = append(d.rendered, orders)
}

func newTestPoller(gw *scriptedGateway, display Display) *Poller {
	notifier := &recordingNotifier{}
	driver := newTestDriver(newMockInventory(), gw.fakeGateway, newFakeLedger(), notifier)
	conversations := NewConversationManager(gw.fakeGateway, notifier, driver, testLogger())
	return NewPoller(gw, driver, conversations, display, driver.metrics, testLogger(), 10*time.Millisecond)
}

func TestTick_RendersAndProcesses(t *testing.T) {
	gw := &scriptedGateway{
		fakeGateway: newFakeGateway(),
		orders:      []domain.Order{{ID: "o1", Status: domain.OrderStatusDelivered}},
	}
	display := &recordingDisplay{}
	p := newTestPoller(gw, display)

	if err := p.tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(display.rendered) != 1 || len(display.rendered[0]) != 1 {
		t.Errorf("expected one rendered listing, got %v", display.rendered)
	}
}

func TestTick_ListFailurePropagates(t *testing.T) {
	gw := &scriptedGateway{fakeGateway: newFakeGateway(), err: errors.New("gateway down")}
	p := newTestPoller(gw, &recordingDisplay{})

	if err := p.tick(context.Background()); err == nil {
		t.Error("expected error from failed listing")
	}
}

func TestRun_KeepsPollingThroughFailuresAndStopsOnCancel(t *testing.T) {
	gw := &scriptedGateway{fakeGateway: newFakeGateway(), err: errors.New("gateway down")}
	p := newTestPoller(gw, &recordingDisplay{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancel")
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.calls < 2 {
		t.Errorf("expected the loop to keep retrying, got %d calls", gw.calls)
	}
}
