package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quangtd04/autodeliver/internal/port"
)

// Callback id prefixes carried by channel action buttons.
const (
	callbackManual   = "manual_process_"
	callbackDelivery = "delivery_type_"
	callbackStock    = "check_stock_"
)

// Router dispatches inbound operator events to the conversation manager and
// the stock-status reporter.
type Router struct {
	conversations *ConversationManager
	inventory     port.InventoryRepository
	notifier      port.Notifier
	logger        *slog.Logger
	now           func() time.Time
}

func NewRouter(conversations *ConversationManager, inventory port.InventoryRepository,
	notifier port.Notifier, logger *slog.Logger) *Router {
	return &Router{
		conversations: conversations,
		inventory:     inventory,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// Run consumes events until the channel closes or the context is done.
func (r *Router) Run(ctx context.Context, events <-chan port.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.HandleEvent(ctx, ev)
		}
	}
}

func (r *Router) HandleEvent(ctx context.Context, ev port.Event) {
	switch ev.Kind {
	case port.EventCallback:
		r.handleCallback(ctx, ev.Data)
	case port.EventReply:
		if ev.OrderID == "" {
			return
		}
		r.conversations.HandleReply(ctx, ev.OrderID, ev.Text)
	}
}

func (r *Router) handleCallback(ctx context.Context, data string) {
	switch {
	case strings.HasPrefix(data, callbackManual):
		orderID := strings.TrimPrefix(data, callbackManual)
		if err := r.conversations.Start(ctx, orderID); err != nil {
			r.logger.Error("manual processing start failed", "order_id", orderID, "err", err)
		}

	case strings.HasPrefix(data, callbackDelivery):
		orderID, mode, ok := parseDeliveryCallback(data)
		if !ok {
			r.logger.Warn("malformed delivery callback", "data", data)
			return
		}
		if err := r.conversations.SelectMode(ctx, orderID, mode); err != nil {
			r.logger.Error("delivery mode select failed", "order_id", orderID, "err", err)
		}

	case strings.HasPrefix(data, callbackStock):
		r.reportStock(ctx, strings.TrimPrefix(data, callbackStock))
	}
}

// parseDeliveryCallback splits "delivery_type_<orderID>_<mode>". Order ids
// may themselves contain underscores, so the mode is taken from the last
// segment.
func parseDeliveryCallback(data string) (orderID string, mode int, ok bool) {
	rest := strings.TrimPrefix(data, callbackDelivery)
	cut := strings.LastIndex(rest, "_")
	if cut <= 0 {
		return "", 0, false
	}
	mode, err := strconv.Atoi(rest[cut+1:])
	if err != nil {
		return "", 0, false
	}
	return rest[:cut], mode, true
}

// reportStock summarizes a product's current availability on the channel:
// how many accounts are still usable and how many seats they hold.
func (r *Router) reportStock(ctx context.Context, productID string) {
	product, err := r.inventory.GetProduct(ctx, productID)
	if err != nil {
		r.notify(ctx, fmt.Sprintf("❌ Stock check failed: %v", err))
		return
	}
	if product == nil {
		r.notify(ctx, fmt.Sprintf("❌ Product not found: %s", productID))
		return
	}

	now := r.now()
	usable, seats := 0, 0
	for _, acc := range product.Accounts {
		if acc.EligibleFor(now, 1) {
			usable++
			seats += acc.Remaining()
		}
	}

	if usable == 0 {
		r.notify(ctx, fmt.Sprintf("❌ Stock Status\nProduct: %s\nNo usable accounts", productID))
		return
	}
	r.notify(ctx, fmt.Sprintf(
		"📦 Stock Status\nProduct: %s\nUsable accounts: %d\nRemaining seats: %d",
		productID, usable, seats))
}

func (r *Router) notify(ctx context.Context, text string) {
	if err := r.notifier.Send(ctx, text); err != nil {
		r.logger.Error("channel send failed", "err", err)
	}
}
