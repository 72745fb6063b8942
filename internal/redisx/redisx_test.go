package redisx

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *StatusCache {
	t.Helper()
	addr := os.Getenv("REDISX_TEST_ADDR")
	if addr == "" {
		t.Skip("REDISX_TEST_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	return &StatusCache{RDB: rdb}
}

func TestStatusCacheKeepsNewest(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	id := time.Now().UnixNano()
	t.Cleanup(func() { _ = c.Delete(ctx, id) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, c.Set(ctx, OrderStatus{OrderID: id, BuyerID: 9, Status: "confirmed", UpdatedAt: now}))
	require.NoError(t, c.Set(ctx, OrderStatus{OrderID: id, BuyerID: 9, Status: "pending", UpdatedAt: now.Add(-time.Second)}))

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, int64(9), got.BuyerID)
	assert.True(t, now.Equal(got.UpdatedAt))

	require.NoError(t, c.Delete(ctx, id))
	got, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotencyClaim(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	idem := &Idempotency{RDB: c.RDB}
	key := uuid.NewString()
	t.Cleanup(func() { _ = idem.Release(ctx, 1, key) })

	_, claimed, err := idem.Claim(ctx, 1, key)
	require.NoError(t, err)
	assert.True(t, claimed)

	id, claimed, err := idem.Claim(ctx, 1, key)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, id)

	// an in-flight claim lives only briefly; a finished one is kept for replays
	k := fmt.Sprintf(KeyIdemOrderPlace, 1, key)
	ttl, err := c.RDB.PTTL(ctx, k).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, TTLIdempotencyPending)

	require.NoError(t, idem.Complete(ctx, 1, key, 42))
	ttl, err = c.RDB.PTTL(ctx, k).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, TTLIdempotencyPending)
	id, claimed, err = idem.Claim(ctx, 1, key)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(42), id)

	// keys are scoped per buyer
	_, claimed, err = idem.Claim(ctx, 2, key)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, idem.Release(ctx, 2, key))
}

func TestDedupFirstSeen(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	d := &Dedup{RDB: c.RDB, Service: "test"}
	ev := uuid.NewString()
	t.Cleanup(func() { _ = d.Forget(ctx, ev) })

	first, err := d.FirstSeen(ctx, ev)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = d.FirstSeen(ctx, ev)
	require.NoError(t, err)
	assert.False(t, first)
}
