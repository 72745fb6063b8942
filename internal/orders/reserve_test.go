package orders

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTx is a Tx over a fixed product table that records lock order.
type recordingTx struct {
	products map[int64]catalog.Product
	locked   []int64
	dec      map[int64]int
	lockErr  map[int64]error
}

func newRecordingTx(ps ...catalog.Product) *recordingTx {
	tx := &recordingTx{products: map[int64]catalog.Product{}, dec: map[int64]int{}, lockErr: map[int64]error{}}
	for _, p := range ps {
		tx.products[p.ID] = p
	}
	return tx
}

func (tx *recordingTx) LockProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	tx.locked = append(tx.locked, id)
	if err := tx.lockErr[id]; err != nil {
		return nil, err
	}
	p, ok := tx.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	p.Stock -= tx.dec[id]
	return &p, nil
}

func (tx *recordingTx) DecrementStock(ctx context.Context, id int64, qty int) error {
	tx.dec[id] += qty
	return nil
}

func (tx *recordingTx) InsertOrder(ctx context.Context, o *Order) error { return nil }

func product(id int64, price string, stock int) catalog.Product {
	return catalog.Product{ID: id, VendorID: id * 10, Name: "p", Price: decimal.RequireFromString(price), Stock: stock, Active: true}
}

func TestReserveLocksInAscendingIDOrder(t *testing.T) {
	tx := newRecordingTx(product(3, "1.00", 9), product(11, "2.00", 9), product(7, "3.00", 9))

	res, err := Reserve(context.Background(), tx, []ItemRequest{{11, 1}, {3, 2}, {7, 1}, {3, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 11}, tx.locked)

	require.Len(t, res, 3)
	assert.Equal(t, int64(11), res[0].ProductID)
	assert.Equal(t, int64(3), res[1].ProductID)
	assert.Equal(t, 3, res[1].Quantity)
	assert.Equal(t, int64(7), res[2].ProductID)
	assert.Equal(t, int64(110), res[0].VendorID)
	assert.Equal(t, "2.00", res[0].UnitPrice.StringFixed(2))
	assert.Equal(t, map[int64]int{3: 3, 7: 1, 11: 1}, tx.dec)
}

func TestReserveStopsAtFirstFailure(t *testing.T) {
	tx := newRecordingTx(product(1, "1.00", 5), product(2, "1.00", 0), product(3, "1.00", 5))

	_, err := Reserve(context.Background(), tx, []ItemRequest{{3, 1}, {2, 1}, {1, 1}})
	var pe *ProductError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(2), pe.ProductID)
	assert.Equal(t, 0, pe.Available)
	assert.Equal(t, []int64{1, 2}, tx.locked)
}

func TestReservePropagatesLockTimeout(t *testing.T) {
	tx := newRecordingTx(product(1, "1.00", 5), product(2, "1.00", 5))
	tx.lockErr[2] = ErrLockTimeout

	_, err := Reserve(context.Background(), tx, []ItemRequest{{2, 1}, {1, 1}})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.True(t, Retryable(err))
}

func TestReserveRejectsBadLines(t *testing.T) {
	tx := newRecordingTx(product(1, "1.00", 5))

	_, err := Reserve(context.Background(), tx, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = Reserve(context.Background(), tx, []ItemRequest{{1, 0}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, tx.locked)
}

func TestReserveRejectsQuantityOverflow(t *testing.T) {
	tx := newRecordingTx(product(1, "20.00", 10))

	_, err := Reserve(context.Background(), tx, []ItemRequest{{1, math.MaxInt}, {1, math.MaxInt}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = Reserve(context.Background(), tx, []ItemRequest{{1, MaxQuantity}, {1, 1}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, tx.locked)
	assert.Empty(t, tx.dec)

	lines, err := mergeLines([]ItemRequest{{1, MaxQuantity - 1}, {1, 1}})
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, lines[0].Quantity)
}

func TestAssembleTotals(t *testing.T) {
	o := assemble(1, "Pune", []Reservation{
		{ProductID: 1, VendorID: 2, Quantity: 3, UnitPrice: decimal.RequireFromString("20.00")},
		{ProductID: 5, VendorID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("0.05")},
	})
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "60.05", o.Total.StringFixed(2))
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(5), *o.Items[1].ProductID)
}
