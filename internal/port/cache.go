package port

import "time"

// Cache is a TTL-keyed store shared by the resolution engine and the
// orchestrator. Keys are opaque strings; namespacing ("price:", "metadata:",
// "wallet:") is the caller's responsibility.
//
// Get unmarshals the stored value into dst and reports whether a live entry
// existed. A key that was never set and a key whose TTL elapsed are
// indistinguishable to callers. Values are serialized on Set, so callers
// never share mutable state with the cache.
type Cache interface {
	Get(key string, dst any) bool
	Set(key string, value any, ttl time.Duration)
}
