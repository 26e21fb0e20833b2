package server

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"f0oster/oktaldap/directory"
)

const bindCacheSize = 1024

// bindCache remembers successful directory-user binds for a short TTL so a
// chatty LDAP client does not hit the upstream authentication endpoint on
// every operation. Only successes are cached, keyed by DN plus a password
// digest; a nil TTL disables the cache entirely.
type bindCache struct {
	cache *expirable.LRU[string, struct{}]
}

func newBindCache(ttl time.Duration) *bindCache {
	if ttl <= 0 {
		return &bindCache{}
	}
	return &bindCache{
		cache: expirable.NewLRU[string, struct{}](bindCacheSize, nil, ttl),
	}
}

func (c *bindCache) get(dn directory.DN, password string) bool {
	if c.cache == nil {
		return false
	}
	_, ok := c.cache.Get(cacheKey(dn, password))
	return ok
}

func (c *bindCache) put(dn directory.DN, password string) {
	if c.cache == nil {
		return
	}
	c.cache.Add(cacheKey(dn, password), struct{}{})
}

func cacheKey(dn directory.DN, password string) string {
	sum := sha256.Sum256([]byte(dn.Key() + "\x00" + password))
	return hex.EncodeToString(sum[:])
}
