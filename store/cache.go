package store

import (
	"time"

	"github.com/liamcoop/modelcheck/rules"
)

// RuleSetCache caches parsed rule sets keyed by ruleset ID so hot
// documents are not reparsed on every validation request. Implementations
// must be safe for concurrent use.
type RuleSetCache interface {
	// Get returns the cached parse, or nil on a miss
	Get(id string) *rules.RuleSet

	// Set stores a parse for the given ruleset ID
	Set(id string, rs *rules.RuleSet)

	// Invalidate drops a ruleset's cached parse, forcing a reparse on
	// the next Get
	Invalidate(id string)
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached parses.
	// Set to 0 for no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for ruleset caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // No TTL - only invalidate on ruleset mutations
	}
}
