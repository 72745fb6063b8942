package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store. Product locks are row locks (SELECT ... FOR
// UPDATE) bounded by a transaction-local lock_timeout.
type Repo struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

const (
	sqlstateLockNotAvailable = "55P03"
	sqlstateDeadlockDetected = "40P01"
)

func (r *Repo) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if r.LockTimeout > 0 {
		ms := fmt.Sprintf("%dms", r.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}
	return tx, nil
}

func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// translate maps lock contention reported by Postgres to ErrLockTimeout.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateLockNotAvailable, sqlstateDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		}
	}
	return err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProduct(ctx context.Context, productID int64) (*catalog.Product, error) {
	var p catalog.Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, vendor_id, name, price, stock, is_active
		FROM products WHERE id=$1 FOR UPDATE`, productID,
	).Scan(&p.ID, &p.VendorID, &p.Name, &p.Price, &p.Stock, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	if qty < 1 {
		return invalid("decrement for product %d must be at least 1, got %d", productID, qty)
	}
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &ProductError{Err: ErrInsufficientStock, ProductID: productID, Requested: qty}
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(buyer_id, shipping_address, status, total)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at, updated_at`,
		o.BuyerID, o.ShippingAddress, o.Status, o.Total,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err = t.tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, vendor_id, product_name, quantity, price)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			o.ID, it.ProductID, it.VendorID, it.ProductName, it.Quantity, it.Price,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}
	return nil
}

const orderColumns = `o.id, o.buyer_id, o.shipping_address, o.status, o.total, o.created_at, o.updated_at`

func (r *Repo) ListByBuyer(ctx context.Context, buyerID int64) ([]Order, error) {
	return r.queryOrders(ctx, r.DB, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.buyer_id=$1
		ORDER BY o.created_at DESC, o.id DESC`, buyerID)
}

func (r *Repo) ListByVendor(ctx context.Context, vendorID int64) ([]Order, error) {
	return r.queryOrders(ctx, r.DB, `
		SELECT `+orderColumns+` FROM orders o
		WHERE EXISTS (SELECT 1 FROM order_items i WHERE i.order_id=o.id AND i.vendor_id=$1)
		ORDER BY o.created_at DESC, o.id DESC`, vendorID)
}

func (r *Repo) GetForBuyer(ctx context.Context, buyerID, orderID int64) (*Order, error) {
	out, err := r.queryOrders(ctx, r.DB, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.id=$1 AND o.buyer_id=$2`, orderID, buyerID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (r *Repo) SetStatus(ctx context.Context, orderID, vendorID int64, next func(cur Status) (Status, error)) (*Order, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Status
	err = tx.QueryRow(ctx, `
		SELECT o.status FROM orders o
		WHERE o.id=$1
		  AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id=o.id AND i.vendor_id=$2)
		FOR UPDATE OF o`, orderID, vendorID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}

	to, err := next(cur)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, to); err != nil {
		return nil, err
	}

	out, err := r.queryOrders(ctx, tx, `SELECT `+orderColumns+` FROM orders o WHERE o.id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translate(err)
	}
	return &out[0], nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// queryOrders loads order headers and then all their items in one round trip.
func (r *Repo) queryOrders(ctx context.Context, q querier, sql string, args ...any) ([]Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.ShippingAddress, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		o.Items = []OrderItem{}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, len(out))
	idx := make(map[int64]int, len(out))
	for i, o := range out {
		ids[i] = o.ID
		idx[o.ID] = i
	}
	rows, err = q.Query(ctx, `
		SELECT id, order_id, product_id, vendor_id, product_name, quantity, price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VendorID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		i := idx[it.OrderID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, rows.Err()
}
