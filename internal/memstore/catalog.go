package memstore

import (
	"context"
	"sort"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
)

// Catalog is the catalog.Repository view of a Store. It shares product rows
// and their locks with order reservations.
type Catalog struct{ s *Store }

func (s *Store) Catalog() Catalog { return Catalog{s: s} }

func (c Catalog) ListActive(ctx context.Context) ([]catalog.Product, error) {
	return c.listProducts(func(p catalog.Product) bool { return p.Active }), nil
}

func (c Catalog) ListByVendor(ctx context.Context, vendorID int64) ([]catalog.Product, error) {
	return c.listProducts(func(p catalog.Product) bool { return p.VendorID == vendorID }), nil
}

func (c Catalog) listProducts(keep func(catalog.Product) bool) []catalog.Product {
	c.s.mu.RLock()
	out := []catalog.Product{}
	for _, r := range c.s.products {
		if keep(r.p) {
			out = append(out, r.p)
		}
	}
	c.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (c Catalog) Get(ctx context.Context, id int64) (*catalog.Product, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	r, ok := c.s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	p := r.p
	return &p, nil
}

func (c Catalog) Create(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.nextProduct++
	p.ID = c.s.nextProduct
	p.CreatedAt = c.s.Now()
	p.UpdatedAt = p.CreatedAt
	c.s.products[p.ID] = &row{lock: make(chan struct{}, 1), p: *p}
	return nil
}

func (c Catalog) Update(ctx context.Context, vendorID, id int64, patch catalog.Patch) (*catalog.Product, error) {
	r, ok := c.s.owned(vendorID, id)
	if !ok {
		return nil, catalog.ErrNotFound
	}
	if err := r.acquire(ctx, id, c.s.LockTimeout); err != nil {
		return nil, err
	}
	defer r.release()

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.products[id] != r {
		return nil, catalog.ErrNotFound
	}
	p := r.p
	if err := p.Apply(patch); err != nil {
		return nil, err
	}
	p.UpdatedAt = c.s.Now()
	r.p = p
	return &p, nil
}

// Delete drops the product and clears the product reference on order items
// that point at it.
func (c Catalog) Delete(ctx context.Context, vendorID, id int64) error {
	r, ok := c.s.owned(vendorID, id)
	if !ok {
		return catalog.ErrNotFound
	}
	if err := r.acquire(ctx, id, c.s.LockTimeout); err != nil {
		return err
	}
	defer r.release()

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.products[id] != r {
		return catalog.ErrNotFound
	}
	delete(c.s.products, id)
	for _, o := range c.s.orders {
		for i := range o.Items {
			if pid := o.Items[i].ProductID; pid != nil && *pid == id {
				o.Items[i].ProductID = nil
			}
		}
	}
	return nil
}
