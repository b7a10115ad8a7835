package redisx

import "time"

const (
	// Fast-path idempotency for settlement: idem:payment:verify:{reference} -> order_id.
	// The DB unique index on payments.reference stays the source of truth.
	KeyIdemPaymentVerify = "idem:payment:verify:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
