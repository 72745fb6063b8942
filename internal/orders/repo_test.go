package orders_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/ariefcatur/agri-marketplace/internal/orders"
	"github.com/ariefcatur/agri-marketplace/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pgRepos connects to ORDERS_TEST_POSTGRES_DSN, a throwaway database.
func pgRepos(t *testing.T) (*orders.Repo, *catalog.Repo) {
	t.Helper()
	dsn := os.Getenv("ORDERS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ORDERS_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	truncate(t, pool)
	return &orders.Repo{DB: pool, LockTimeout: 500 * time.Millisecond}, &catalog.Repo{DB: pool}
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	_, err := pool.Exec(context.Background(), `TRUNCATE order_items, orders, products RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func TestPostgresPlaceOrder(t *testing.T) {
	repo, cat := pgRepos(t)
	ctx := context.Background()
	svc := orders.NewService(repo, nil)

	rice := &catalog.Product{VendorID: vendorA, Name: "Rice", Price: decimal.RequireFromString("20.00"), Stock: 10, Active: true}
	require.NoError(t, cat.Create(ctx, rice))

	o, err := svc.PlaceOrder(ctx, farmer, place(item(rice.ID, 3)))
	require.NoError(t, err)
	assert.Equal(t, "60.00", o.Total.StringFixed(2))
	assert.NotZero(t, o.Items[0].ID)

	_, err = svc.PlaceOrder(ctx, farmer, place(item(rice.ID, 8)))
	var pe *orders.ProductError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 7, pe.Available)

	got, err := cat.Get(ctx, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	require.NoError(t, cat.Delete(ctx, vendorA, rice.ID))
	mine, err := svc.ListForBuyer(ctx, farmer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Nil(t, mine[0].Items[0].ProductID)
	assert.Equal(t, "20.00", mine[0].Items[0].Price.StringFixed(2))

	_, err = svc.UpdateStatus(ctx, o.ID, vendorB, "confirmed")
	assert.ErrorIs(t, err, orders.ErrNotFound)
	up, err := svc.UpdateStatus(ctx, o.ID, vendorA, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, up.Status)
}

func TestPostgresConcurrentPlacement(t *testing.T) {
	repo, cat := pgRepos(t)
	ctx := context.Background()
	svc := orders.NewService(repo, nil)

	a := &catalog.Product{VendorID: vendorA, Name: "Rice", Price: decimal.NewFromInt(20), Stock: 5, Active: true}
	b := &catalog.Product{VendorID: vendorB, Name: "Wheat", Price: decimal.NewFromInt(25), Stock: 100, Active: true}
	require.NoError(t, cat.Create(ctx, a))
	require.NoError(t, cat.Create(ctx, b))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := place(item(a.ID, 1), item(b.ID, 1))
			if i%2 == 1 {
				req = place(item(b.ID, 1), item(a.ID, 1))
			}
			for {
				_, err := svc.PlaceOrder(ctx, farmer, req)
				if orders.Retryable(err) {
					continue
				}
				mu.Lock()
				if err == nil {
					placed++
				} else {
					assert.ErrorIs(t, err, orders.ErrInsufficientStock)
				}
				mu.Unlock()
				return
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, placed)
	got, err := cat.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	got, err = cat.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, got.Stock)
}
