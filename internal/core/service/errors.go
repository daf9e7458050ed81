package service

import "errors"

var (
	// ErrProductNotFound means the inventory store has no record for the
	// requested product.
	ErrProductNotFound = errors.New("product not found")

	// ErrNoAvailability means the product exists but no account can cover
	// the requested quantity right now.
	ErrNoAvailability = errors.New("no available accounts")

	// ErrReservationFailed means an eligible account was found but the store
	// kept rejecting the reservation update.
	ErrReservationFailed = errors.New("reservation failed")

	// ErrOrderNotFound means the order source returned nothing for an order
	// the operator tried to process manually.
	ErrOrderNotFound = errors.New("order not found")
)
