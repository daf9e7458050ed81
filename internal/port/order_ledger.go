package port

import (
	"context"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
)

type OrderLedger interface {
	// OpenReservation returns the undelivered reservation for an order, or
	// (nil, nil) when none exists.
	OpenReservation(ctx context.Context, orderID string) (*domain.Reservation, error)

	// CreateReservation persists a fresh lease record for an order.
	CreateReservation(ctx context.Context, r domain.Reservation) error

	// MarkDelivered records the order outcome (status, processed-at, payload)
	// and closes any open reservation for it, atomically.
	MarkDelivered(ctx context.Context, orderID string, processedAt time.Time, payload domain.DeliveryPayload) error
}
