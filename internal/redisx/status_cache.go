package redisx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// OrderStatus is the cached read model behind GET /orders/{id}/status.
type OrderStatus struct {
	OrderID   int64     `json:"order_id"`
	BuyerID   int64     `json:"buyer_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// setIfNewer only overwrites when the incoming updated_at (unix micros) is
// not older than what is cached, since placed and status events arrive on
// different topics.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'updated_at')
if cur and tonumber(cur) > tonumber(ARGV[3]) then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'buyer_id', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

type StatusCache struct{ RDB *redis.Client }

func (c *StatusCache) Set(ctx context.Context, st OrderStatus) error {
	key := fmt.Sprintf(KeyOrderStatus, st.OrderID)
	return setIfNewer.Run(ctx, c.RDB, []string{key},
		st.Status, st.BuyerID, st.UpdatedAt.UnixMicro(), TTLStatusCache.Milliseconds(),
	).Err()
}

// Get returns nil, nil on a cache miss.
func (c *StatusCache) Get(ctx context.Context, orderID int64) (*OrderStatus, error) {
	m, err := c.RDB.HGetAll(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	buyer, err := strconv.ParseInt(m["buyer_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("status cache buyer_id: %w", err)
	}
	micros, err := strconv.ParseInt(m["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("status cache updated_at: %w", err)
	}
	return &OrderStatus{
		OrderID:   orderID,
		BuyerID:   buyer,
		Status:    m["status"],
		UpdatedAt: time.UnixMicro(micros).UTC(),
	}, nil
}

func (c *StatusCache) Delete(ctx context.Context, orderID int64) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
