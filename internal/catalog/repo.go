package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres catalog.
type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, vendor_id, name, description, unit, price, stock, is_active, created_at, updated_at`

func (r *Repo) ListActive(ctx context.Context) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY updated_at DESC, id DESC`)
}

func (r *Repo) ListByVendor(ctx context.Context, vendorID int64) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE vendor_id=$1 ORDER BY updated_at DESC, id DESC`, vendorID)
}

func (r *Repo) Get(ctx context.Context, id int64) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.DB.QueryRow(ctx, `
		INSERT INTO products(vendor_id, name, description, unit, price, stock, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		p.VendorID, p.Name, p.Description, p.Unit, p.Price, p.Stock, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update locks the vendor's row, applies the patch and writes it back.
func (r *Repo) Update(ctx context.Context, vendorID, id int64, patch Patch) (*Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1 AND vendor_id=$2 FOR UPDATE`, id, vendorID))
	if err != nil {
		return nil, err
	}
	if err := p.Apply(patch); err != nil {
		return nil, err
	}
	err = tx.QueryRow(ctx, `
		UPDATE products
		   SET name=$2, description=$3, unit=$4, price=$5, stock=$6, is_active=$7, updated_at=now()
		 WHERE id=$1
		RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.Unit, p.Price, p.Stock, p.Active,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the product. order_items.product_id is set to NULL by the FK.
func (r *Repo) Delete(ctx context.Context, vendorID, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1 AND vendor_id=$2`, id, vendorID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Unit,
		&p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
