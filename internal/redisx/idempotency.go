package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const idemPending = "pending"

// Idempotency guards order placement per buyer and client-supplied key.
type Idempotency struct{ RDB *redis.Client }

// Claim reserves key for buyerID. When the key is already taken it returns
// the order id stored by a finished attempt, or 0 while that attempt is
// still in flight.
func (i *Idempotency) Claim(ctx context.Context, buyerID int64, key string) (orderID int64, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderPlace, buyerID, key)
	ok, err := i.RDB.SetNX(ctx, k, idemPending, TTLIdempotencyPending).Result()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, true, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry the claim
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if v == idemPending {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return id, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, buyerID int64, key string, orderID int64) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderPlace, buyerID, key), orderID, TTLIdempotency).Err()
}

func (i *Idempotency) Release(ctx context.Context, buyerID int64, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemOrderPlace, buyerID, key)).Err()
}
