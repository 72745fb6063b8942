package orders

import (
	"context"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
)

// Tx is one unit of work. Product locks taken through it are held until the
// unit of work ends.
type Tx interface {
	// LockProduct takes the exclusive lock on the product row and returns its
	// state as seen under that lock. Missing products yield catalog.ErrNotFound;
	// a lock that cannot be taken in time yields ErrLockTimeout.
	LockProduct(ctx context.Context, productID int64) (*catalog.Product, error)
	// DecrementStock lowers stock of a product locked in this Tx.
	DecrementStock(ctx context.Context, productID int64, qty int) error
	// InsertOrder persists header and items, filling in ids and timestamps.
	InsertOrder(ctx context.Context, o *Order) error
}

type Store interface {
	// WithinTx commits when fn returns nil and rolls back otherwise, exactly once.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListByBuyer(ctx context.Context, buyerID int64) ([]Order, error)
	ListByVendor(ctx context.Context, vendorID int64) ([]Order, error)
	GetForBuyer(ctx context.Context, buyerID, orderID int64) (*Order, error)

	// SetStatus locks the order if vendorID owns at least one of its items
	// (ErrNotFound otherwise), asks next for the new status and persists it.
	SetStatus(ctx context.Context, orderID, vendorID int64, next func(cur Status) (Status, error)) (*Order, error)
}
