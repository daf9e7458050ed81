package port

import (
	"context"

	"github.com/quangtd04/autodeliver/internal/core/domain"
)

// Order-source actions accepted by SubmitAction.
const ActionDeliver = "DELIVER"

type OrderGateway interface {
	// ListRecent fetches the most recent orders from the order source.
	ListRecent(ctx context.Context) ([]domain.Order, error)

	// GetOrder fetches one order's detail. Returns (nil, nil) when the order
	// source has no such order.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// SubmitAction posts an order action with optional delivery data.
	// Transport and parse failures are reported as (false, text), never as a
	// panic; the message is human-readable either way.
	SubmitAction(ctx context.Context, orderID, action string, payload domain.DeliveryPayload) (bool, string)
}
