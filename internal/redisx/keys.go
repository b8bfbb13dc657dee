package redisx

import "time"

const (
	// Cached order status: order_status:{order_id} -> {"status":"...","version":n}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

const (
	DedupWebhook   = "webhook"
	DedupProjector = "projector"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
