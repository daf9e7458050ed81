package port

import (
	"context"
	"errors"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
)

// ErrVersionConflict is returned by ReserveAccount when the guarded update
// loses a race: the account's version moved between read and write.
var ErrVersionConflict = errors.New("account version conflict")

// ErrTransient wraps network and timeout faults worth retrying, as opposed
// to a definitive rejection. Adapters wrap such failures so callers can
// tell the two apart with errors.Is.
var ErrTransient = errors.New("transient error")

type InventoryRepository interface {
	// GetProduct retrieves a product and its account collection.
	// Returns (nil, nil) when the product has no record.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// ReserveAccount atomically claims capacity on one account: increments
	// currentUser by quantity, stamps lastUsed, bumps the version. The write
	// applies only if the stored version still equals version; otherwise it
	// fails with ErrVersionConflict and changes nothing.
	ReserveAccount(ctx context.Context, productID string, index, version, quantity int, now time.Time) error
}
