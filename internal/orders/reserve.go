package orders

import (
	"context"
	"errors"
	"sort"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/shopspring/decimal"
)

// Reservation is one reserved line with the product data captured under lock.
type Reservation struct {
	ProductID   int64
	VendorID    int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Reserve checks and decrements stock for every requested product inside tx.
//
// Repeated product ids are merged. Locks are taken in ascending product id
// order regardless of request order, so two reservations over the same
// products can never wait on each other in a cycle. Stock and the active flag
// are read only after the lock is held. The result follows first-occurrence
// request order. On error nothing is undone here; the caller rolls back tx.
func Reserve(ctx context.Context, tx Tx, reqs []ItemRequest) ([]Reservation, error) {
	lines, err := mergeLines(reqs)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	want := make(map[int64]int, len(lines))
	for _, l := range lines {
		want[l.ProductID] = l.Quantity
	}

	reserved := make(map[int64]Reservation, len(ids))
	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &ProductError{Err: ErrProductUnavailable, ProductID: id, Requested: want[id]}
		}
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, &ProductError{Err: ErrProductUnavailable, ProductID: id, Requested: want[id]}
		}
		if p.Stock < want[id] {
			return nil, &ProductError{Err: ErrInsufficientStock, ProductID: id, Requested: want[id], Available: p.Stock}
		}
		if err := tx.DecrementStock(ctx, id, want[id]); err != nil {
			return nil, err
		}
		reserved[id] = Reservation{
			ProductID:   id,
			VendorID:    p.VendorID,
			ProductName: p.Name,
			Quantity:    want[id],
			UnitPrice:   p.Price,
		}
	}

	out := make([]Reservation, len(lines))
	for i, l := range lines {
		out[i] = reserved[l.ProductID]
	}
	return out, nil
}

func mergeLines(reqs []ItemRequest) ([]ItemRequest, error) {
	if len(reqs) == 0 {
		return nil, invalid("items must not be empty")
	}
	out := make([]ItemRequest, 0, len(reqs))
	pos := make(map[int64]int, len(reqs))
	for _, r := range reqs {
		if r.Quantity < 1 || r.Quantity > MaxQuantity {
			return nil, invalid("quantity for product %d must be between 1 and %d", r.ProductID, MaxQuantity)
		}
		if i, ok := pos[r.ProductID]; ok {
			if out[i].Quantity > MaxQuantity-r.Quantity {
				return nil, invalid("total quantity for product %d exceeds %d", r.ProductID, MaxQuantity)
			}
			out[i].Quantity += r.Quantity
			continue
		}
		pos[r.ProductID] = len(out)
		out = append(out, r)
	}
	return out, nil
}
