package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/metrics"
)

// Display renders the current order list for the operator console.
type Display interface {
	Render(orders []domain.Order)
}

// Poller drives the engine on a fixed interval: list recent orders, render
// them, fulfill the pending ones, sweep idle conversations. A failed tick is
// logged and retried with doubling backoff up to maxBackoff; it never stops
// the loop.
type Poller struct {
	gateway       listGateway
	driver        *Driver
	conversations *ConversationManager
	display       Display
	metrics       *metrics.Registry
	logger        *slog.Logger
	interval      time.Duration
	maxBackoff    time.Duration
}

type listGateway interface {
	ListRecent(ctx context.Context) ([]domain.Order, error)
}

func NewPoller(gateway listGateway, driver *Driver, conversations *ConversationManager,
	display Display, reg *metrics.Registry, logger *slog.Logger, interval time.Duration) *Poller {
	return &Poller{
		gateway:       gateway,
		driver:        driver,
		conversations: conversations,
		display:       display,
		metrics:       reg,
		logger:        logger,
		interval:      interval,
		maxBackoff:    8 * interval,
	}
}

// Run loops until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	delay := p.interval
	for {
		if err := p.tick(ctx); err != nil {
			p.metrics.PollErrors.Inc()
			p.logger.Error("poll tick failed", "err", err, "retry_in", delay)
			delay = min(delay*2, p.maxBackoff)
		} else {
			delay = p.interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (p *Poller) tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		p.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	orders, err := p.gateway.ListRecent(ctx)
	if err != nil {
		return err
	}

	if p.display != nil {
		p.display.Render(orders)
	}

	p.driver.ProcessPending(ctx, orders)
	p.conversations.ExpireIdle(ctx)
	return nil
}
