package redisx

import "time"

const (
	// Idempotent order placement: idem:order:place:{buyer_id}:{key} -> "pending" | order_id
	KeyIdemOrderPlace = "idem:order:place:%d:%s"

	// Order status cache: hash order_status:{order_id} {status, buyer_id, updated_at}
	KeyOrderStatus = "order_status:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// in-flight claims expire quickly so a crashed attempt does not block retries
	TTLIdempotencyPending = time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
