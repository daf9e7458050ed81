package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/currency"
	"github.com/quangtd04/autodeliver/internal/metrics"
	"github.com/quangtd04/autodeliver/internal/port"
)

// credentialMarkers flag identifier-only inventory: when an account's email
// contains one of these (case-insensitive), the password is withheld from
// the delivery payload.
var credentialMarkers = []string{"token", "invite"}

// Driver walks pending orders, leases inventory through the Allocator and
// commits delivery actions back to the order source. It never fails a whole
// batch: per-order errors are surfaced on the operator channel and the order
// is left for the next poll cycle.
type Driver struct {
	allocator *Allocator
	gateway   port.OrderGateway
	ledger    port.OrderLedger
	notifier  port.Notifier
	metrics   *metrics.Registry
	logger    *slog.Logger
	now       func() time.Time
}

func NewDriver(allocator *Allocator, gateway port.OrderGateway, ledger port.OrderLedger,
	notifier port.Notifier, reg *metrics.Registry, logger *slog.Logger) *Driver {
	return &Driver{
		allocator: allocator,
		gateway:   gateway,
		ledger:    ledger,
		notifier:  notifier,
		metrics:   reg,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessPending fulfills every order in REQUIRE_PROCESS status. Orders with
// a missing id or product reference are skipped without error. An order that
// already holds an undelivered reservation is retried against that same
// lease rather than allocating again.
func (d *Driver) ProcessPending(ctx context.Context, orders []domain.Order) {
	for _, order := range orders {
		if order.Status != domain.OrderStatusRequireProcess {
			continue
		}
		if order.ID == "" || order.ProductID == "" {
			continue
		}
		d.processOrder(ctx, order)
	}
}

func (d *Driver) processOrder(ctx context.Context, order domain.Order) {
	d.metrics.OrdersSeen.Inc()

	quantity := order.Quantity
	if quantity < 1 {
		quantity = 1
	}

	d.notify(ctx, fmt.Sprintf(
		"🔔 New Order\nOrder ID: %s\nProduct: %s\nQuantity: %d\nPrice: %s",
		order.ID, order.FullProductName(), quantity, currency.Rupiah(order.Price)))

	reservation, err := d.ledger.OpenReservation(ctx, order.ID)
	if err != nil {
		d.logger.Error("reservation lookup failed", "order_id", order.ID, "err", err)
		return
	}
	if reservation != nil {
		d.metrics.ReservationsReused.Inc()
		d.submit(ctx, order.ID, reservation.Payload)
		return
	}

	account, err := d.allocator.Allocate(ctx, order.ProductID, quantity)
	if err != nil {
		d.metrics.AllocationFailures.WithLabelValues(allocFailureReason(err)).Inc()
		d.notifyActions(ctx, fmt.Sprintf(
			"❌ Stock Not Available\nOrder ID: %s\nError: %v", order.ID, err),
			[]port.Action{{Label: "🔧 Process Manually", ID: callbackManual + order.ID}})
		return
	}

	payload := payloadFor(*account)
	err = d.ledger.CreateReservation(ctx, domain.Reservation{
		ID:           uuid.NewString(),
		OrderID:      order.ID,
		ProductID:    order.ProductID,
		AccountIndex: account.Index,
		Payload:      payload,
		CreatedAt:    d.now(),
	})
	if err != nil {
		d.logger.Error("reservation record failed", "order_id", order.ID, "err", err)
	}

	d.submit(ctx, order.ID, payload)
}

// Deliver submits the DELIVER action for an order and, on success, records
// the outcome in the ledger. It is the shared commit path for both automatic
// fulfillment and completed manual conversations.
func (d *Driver) Deliver(ctx context.Context, orderID string, payload domain.DeliveryPayload) (bool, string) {
	ok, message := d.gateway.SubmitAction(ctx, orderID, port.ActionDeliver, payload)
	if !ok {
		d.metrics.DeliveryFailures.Inc()
		return false, message
	}

	if err := d.ledger.MarkDelivered(ctx, orderID, d.now(), payload); err != nil {
		// The order source accepted the delivery; the ledger catches up on
		// the next successful write. Log rather than undo.
		d.logger.Error("order outcome persist failed", "order_id", orderID, "err", err)
	}

	d.metrics.Deliveries.Inc()
	return true, "Success"
}

func (d *Driver) submit(ctx context.Context, orderID string, payload domain.DeliveryPayload) {
	ok, message := d.Deliver(ctx, orderID, payload)
	if ok {
		d.notify(ctx, fmt.Sprintf(
			"✅ Order Delivered\nOrder ID: %s\nInfo: %s",
			orderID, payload.Summary()))
		return
	}
	d.notify(ctx, fmt.Sprintf(
		"❌ Delivery Failed\nOrder ID: %s\nError: %s", orderID, message))
}

func (d *Driver) notify(ctx context.Context, text string) {
	if err := d.notifier.Send(ctx, text); err != nil {
		d.logger.Error("channel send failed", "err", err)
	}
}

func (d *Driver) notifyActions(ctx context.Context, text string, actions []port.Action) {
	if err := d.notifier.SendActions(ctx, text, actions); err != nil {
		d.logger.Error("channel send failed", "err", err)
	}
}

// payloadFor derives delivery data from a leased account: the identifier
// always, the password only when the identifier is a plain credential.
func payloadFor(account domain.Account) domain.DeliveryPayload {
	values := []string{account.Email}
	if !tokenStyle(account.Email) {
		values = append(values, account.Password)
	}
	return domain.DeliveryPayload{Values: values}
}

func tokenStyle(email string) bool {
	lower := strings.ToLower(email)
	for _, marker := range credentialMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func allocFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	case errors.Is(err, ErrNoAvailability):
		return "no_availability"
	case errors.Is(err, ErrReservationFailed):
		return "reservation_failed"
	case errors.Is(err, port.ErrTransient):
		return "transient"
	}
	return "other"
}
