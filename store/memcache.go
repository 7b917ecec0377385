package store

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/liamcoop/modelcheck/rules"
)

// memCacheCleanup is how often expired parses are swept.
const memCacheCleanup = 10 * time.Minute

// MemoryRuleSetCache is an in-process RuleSetCache backed by go-cache.
type MemoryRuleSetCache struct {
	cache *gocache.Cache
}

// NewMemoryRuleSetCache creates an in-memory ruleset cache.
func NewMemoryRuleSetCache(config CacheConfig) *MemoryRuleSetCache {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryRuleSetCache{
		cache: gocache.New(ttl, memCacheCleanup),
	}
}

// Get returns the cached parse for a ruleset ID, or nil on a miss.
func (c *MemoryRuleSetCache) Get(id string) *rules.RuleSet {
	v, ok := c.cache.Get(id)
	if !ok {
		return nil
	}
	rs, ok := v.(*rules.RuleSet)
	if !ok {
		return nil
	}
	return rs
}

// Set stores a parse under the ruleset ID with the configured TTL.
func (c *MemoryRuleSetCache) Set(id string, rs *rules.RuleSet) {
	c.cache.SetDefault(id, rs)
}

// Invalidate drops a ruleset's cached parse.
func (c *MemoryRuleSetCache) Invalidate(id string) {
	c.cache.Delete(id)
}
