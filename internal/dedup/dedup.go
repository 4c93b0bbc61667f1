// Package dedup implements the persistent "already delivered" set keyed by
// (channel, entry-key). RedisStore is the production backend; MemoryStore
// is the in-process fallback used when no remote backend is configured and
// in tests.
package dedup

import (
	"strconv"
	"time"
)

// MaxLinksPerChannel bounds a channel's dedup set. Overflow eviction
// selects a victim arbitrarily; this bound is a safety net, not a
// correctness guarantee (see spec Open Questions).
const MaxLinksPerChannel = 1000

// TTL is the per-key expiry, refreshed on every write.
const TTL = 30 * 24 * time.Hour

func keyspace(channelID int64) string {
	return "x2discord:sent_links:" + strconv.FormatInt(channelID, 10)
}
