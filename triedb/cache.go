package triedb

import (
	"github.com/VictoriaMetrics/fastcache"
)

// Cached wraps any persistent trie.KVStore with a fastcache read cache,
// the same shape of wrapper the teacher's dependency graph implies for
// its hot-path node lookups: most trie reads hit recently-written nodes
// (the upper levels of the account trie are touched by nearly every
// transaction), so a bounded in-memory cache in front of the disk engine
// cuts most of the random-read I/O spec §5 budgets for.
type Cached struct {
	backend interface {
		Get(key []byte) ([]byte, bool)
		Put(key []byte, value []byte)
		PutBatch(entries map[string][]byte)
	}
	cache *fastcache.Cache
}

// NewCached wraps backend with an in-memory cache of approximately
// sizeBytes.
func NewCached(backend interface {
	Get(key []byte) ([]byte, bool)
	Put(key []byte, value []byte)
	PutBatch(entries map[string][]byte)
}, sizeBytes int) *Cached {
	return &Cached{backend: backend, cache: fastcache.New(sizeBytes)}
}

func (c *Cached) Get(key []byte) ([]byte, bool) {
	if v, ok := c.cache.HasGet(nil, key); ok {
		return v, true
	}
	v, ok := c.backend.Get(key)
	if ok {
		c.cache.Set(key, v)
	}
	return v, ok
}

func (c *Cached) Put(key []byte, value []byte) {
	c.backend.Put(key, value)
	c.cache.Set(key, value)
}

func (c *Cached) PutBatch(entries map[string][]byte) {
	c.backend.PutBatch(entries)
	for k, v := range entries {
		c.cache.Set([]byte(k), v)
	}
}
