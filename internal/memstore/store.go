// Package memstore keeps the catalog and orders in process memory. Every
// product row has its own lock; there is no store-wide lock around
// reservations.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/ariefcatur/agri-marketplace/internal/orders"
)

type row struct {
	lock chan struct{} // holding the single token is the exclusive row lock
	p    catalog.Product
}

func (r *row) acquire(ctx context.Context, id int64, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r.lock <- struct{}{}:
		return nil
	case <-t.C:
		return fmt.Errorf("%w: product %d", orders.ErrLockTimeout, id)
	case <-ctx.Done():
		return fmt.Errorf("%w: product %d: %w", orders.ErrLockTimeout, id, ctx.Err())
	}
}

func (r *row) release() { <-r.lock }

type Store struct {
	// mu guards the maps and row contents; it is only held for short copies,
	// never while waiting on a row lock.
	mu       sync.RWMutex
	products map[int64]*row
	orders   map[int64]*orders.Order

	nextProduct, nextOrder, nextItem int64

	LockTimeout time.Duration
	Now         func() time.Time
}

func New(lockTimeout time.Duration) *Store {
	return &Store{
		products:    map[int64]*row{},
		orders:      map[int64]*orders.Order{},
		LockTimeout: lockTimeout,
		Now:         time.Now,
	}
}

func (s *Store) lookup(id int64) (*row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.products[id]
	return r, ok
}

// owned returns the row for id if vendorID owns it.
func (s *Store) owned(vendorID, id int64) (*row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.products[id]
	if !ok || r.p.VendorID != vendorID {
		return nil, false
	}
	return r, true
}

type tx struct {
	s       *Store
	held    map[int64]*row
	pending map[int64]int
	orders  []*orders.Order
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	t := &tx{s: s, held: map[int64]*row{}, pending: map[int64]int{}}
	defer t.releaseAll()

	if err := fn(ctx, t); err != nil {
		return err // buffered writes are dropped
	}
	t.commit()
	return nil
}

func (t *tx) releaseAll() {
	for _, r := range t.held {
		r.release()
	}
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, qty := range t.pending {
		t.held[id].p.Stock -= qty
	}
	for _, o := range t.orders {
		t.s.orders[o.ID] = o.Clone()
	}
}

func (t *tx) LockProduct(ctx context.Context, productID int64) (*catalog.Product, error) {
	r, ok := t.held[productID]
	if !ok {
		r, ok = t.s.lookup(productID)
		if !ok {
			return nil, catalog.ErrNotFound
		}
		if err := r.acquire(ctx, productID, t.s.LockTimeout); err != nil {
			return nil, err
		}
		t.held[productID] = r
	}

	t.s.mu.RLock()
	current := t.s.products[productID] == r
	p := r.p
	t.s.mu.RUnlock()
	if !current {
		return nil, catalog.ErrNotFound // deleted while we waited
	}
	p.Stock -= t.pending[productID]
	return &p, nil
}

func (t *tx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: decrement for product %d must be at least 1, got %d", orders.ErrInvalidRequest, productID, qty)
	}
	r, ok := t.held[productID]
	if !ok {
		return fmt.Errorf("product %d is not locked in this transaction", productID)
	}
	t.s.mu.RLock()
	stock := r.p.Stock - t.pending[productID]
	t.s.mu.RUnlock()
	if stock < qty {
		return &orders.ProductError{Err: orders.ErrInsufficientStock, ProductID: productID, Requested: qty, Available: stock}
	}
	t.pending[productID] += qty
	return nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	t.s.mu.Lock()
	t.s.nextOrder++
	o.ID = t.s.nextOrder
	for i := range o.Items {
		t.s.nextItem++
		o.Items[i].ID = t.s.nextItem
		o.Items[i].OrderID = o.ID
	}
	now := t.s.Now()
	t.s.mu.Unlock()

	o.CreatedAt, o.UpdatedAt = now, now
	t.orders = append(t.orders, o.Clone())
	return nil
}

func (s *Store) ListByBuyer(ctx context.Context, buyerID int64) ([]orders.Order, error) {
	return s.listOrders(func(o *orders.Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *Store) ListByVendor(ctx context.Context, vendorID int64) ([]orders.Order, error) {
	return s.listOrders(func(o *orders.Order) bool { return soldBy(o, vendorID) }), nil
}

func soldBy(o *orders.Order, vendorID int64) bool {
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			return true
		}
	}
	return false
}

func (s *Store) listOrders(keep func(*orders.Order) bool) []orders.Order {
	s.mu.RLock()
	out := []orders.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) GetForBuyer(ctx context.Context, buyerID, orderID int64) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok || o.BuyerID != buyerID {
		return nil, orders.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *Store) SetStatus(ctx context.Context, orderID, vendorID int64, next func(cur orders.Status) (orders.Status, error)) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || !soldBy(o, vendorID) {
		return nil, orders.ErrNotFound
	}
	to, err := next(o.Status)
	if err != nil {
		return nil, err
	}
	o.Status = to
	o.UpdatedAt = s.Now()
	return o.Clone(), nil
}
