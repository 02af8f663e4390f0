package cache

import "sync"

// Keyer is the capability a key type must supply: a hash and an equality
// relation consistent with it.
type Keyer[K any] interface {
	Hash() uint64
	Equal(other K) bool
}

// Config controls cache capacity.
//
// MaxEntries <= 0 means "unbounded" (no LRU eviction).
type Config struct {
	MaxEntries int
}

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	MaxEntries int
	Size       int
}

// maxOptimisticAttempts bounds how often a probe is retried after the table
// changed while keys were being compared outside the lock. The next attempt
// compares under the lock.
const maxOptimisticAttempts = 3

// Cache is a concurrency-safe, bounded, recency-ordered table.
//
// The core is a hash-bucket map for O(1) lookup plus an intrusive doubly
// linked list for recency ordering. A single mutex guards the map, the list
// and the counters; it is held only for O(1) structural work.
//
// Key equality may be user code, so probes never call Equal under the lock:
// they copy the candidate entries of a bucket, compare unlocked, then
// re-lock and validate the result against the entry's liveness and the
// table epoch.
type Cache[K Keyer[K], V any] struct {
	mu sync.Mutex

	maxEntries int
	items      map[uint64][]*entry[K, V]
	lru        recencyList[K, V]
	size       int

	hits      uint64
	misses    uint64
	evictions uint64

	// epoch changes whenever an entry joins or leaves the table.
	epoch uint64
}

// New constructs an empty cache.
func New[K Keyer[K], V any](cfg Config) *Cache[K, V] {
	c := &Cache[K, V]{
		maxEntries: cfg.MaxEntries,
		items:      make(map[uint64][]*entry[K, V]),
	}
	c.lru.init()
	return c
}

// Lookup returns the value stored under k and marks it most recently used.
// It counts a hit or a miss.
func (c *Cache[K, V]) Lookup(k K) (V, bool) {
	h := k.Hash()
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		if attempt == maxOptimisticAttempts {
			e := c.findLocked(h, k)
			v, ok := c.touchLocked(e)
			c.mu.Unlock()
			return v, ok
		}

		candidates, epoch := c.candidatesLocked(h)
		if len(candidates) == 0 {
			v, ok := c.touchLocked(nil)
			c.mu.Unlock()
			return v, ok
		}
		c.mu.Unlock()

		e := match(candidates, k)

		c.mu.Lock()
		if (e != nil && e.live) || (e == nil && c.epoch == epoch) {
			v, ok := c.touchLocked(e)
			c.mu.Unlock()
			return v, ok
		}
		c.mu.Unlock()
	}
}

// Insert stores v under k as the most recently used entry. If an equal key
// is already present (another caller computed it first) its value is
// replaced. When the cache is bounded and the insert makes it exceed
// MaxEntries, exactly one LRU entry is evicted and Insert reports true.
func (c *Cache[K, V]) Insert(k K, v V) (evicted bool) {
	h := k.Hash()
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		if attempt == maxOptimisticAttempts {
			evicted = c.storeLocked(h, c.findLocked(h, k), k, v)
			c.mu.Unlock()
			return evicted
		}

		candidates, epoch := c.candidatesLocked(h)
		var e *entry[K, V]
		if len(candidates) > 0 {
			c.mu.Unlock()
			e = match(candidates, k)
			c.mu.Lock()
			if (e != nil && !e.live) || (e == nil && c.epoch != epoch) {
				c.mu.Unlock()
				continue
			}
		}
		evicted = c.storeLocked(h, e, k, v)
		c.mu.Unlock()
		return evicted
	}
}

// Miss counts a miss that never reached the table.
func (c *Cache[K, V]) Miss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Clear removes all entries and resets the counters in one step.
// Capacity is retained.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.lru.root.next; e != &c.lru.root; e = e.next {
		e.live = false
	}
	c.items = make(map[uint64][]*entry[K, V])
	c.lru.init()
	c.size = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.epoch++
}

// Stats returns the counters as of a single instant.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		MaxEntries: c.maxEntries,
		Size:       c.size,
	}
}

// Len returns the number of currently stored entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Keys returns keys in MRU -> LRU order.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]K, 0, c.size)
	for e := c.lru.root.next; e != &c.lru.root; e = e.next {
		out = append(out, e.key)
	}
	return out
}

// candidatesLocked copies the bucket for h so it can be scanned unlocked.
func (c *Cache[K, V]) candidatesLocked(h uint64) ([]*entry[K, V], uint64) {
	bucket := c.items[h]
	if len(bucket) == 0 {
		return nil, c.epoch
	}
	out := make([]*entry[K, V], len(bucket))
	copy(out, bucket)
	return out, c.epoch
}

func (c *Cache[K, V]) findLocked(h uint64, k K) *entry[K, V] {
	return match(c.items[h], k)
}

func match[K Keyer[K], V any](candidates []*entry[K, V], k K) *entry[K, V] {
	for _, e := range candidates {
		if e.key.Equal(k) {
			return e
		}
	}
	return nil
}

// touchLocked finishes a lookup: a non-nil e is a hit and moves to MRU.
func (c *Cache[K, V]) touchLocked(e *entry[K, V]) (V, bool) {
	if e == nil {
		c.misses++
		var zero V
		return zero, false
	}
	c.lru.moveToFront(e)
	c.hits++
	return e.value, true
}

// storeLocked overwrites e when non-nil, otherwise links a new entry.
func (c *Cache[K, V]) storeLocked(h uint64, e *entry[K, V], k K, v V) bool {
	if e != nil {
		e.value = v
		c.lru.moveToFront(e)
		return false
	}

	e = &entry[K, V]{key: k, hash: h, value: v, live: true}
	c.items[h] = append(c.items[h], e)
	c.lru.pushFront(e)
	c.size++
	c.epoch++

	if c.maxEntries > 0 && c.size > c.maxEntries {
		c.evictLocked()
		return true
	}
	return false
}

func (c *Cache[K, V]) evictLocked() {
	e := c.lru.back()
	if e == nil {
		return
	}
	c.removeLocked(e)
	c.evictions++
}

func (c *Cache[K, V]) removeLocked(e *entry[K, V]) {
	bucket := c.items[e.hash]
	for i, b := range bucket {
		if b == e {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket[last] = nil
			bucket = bucket[:last]
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.items, e.hash)
	} else {
		c.items[e.hash] = bucket
	}

	c.lru.unlink(e)
	e.live = false
	c.size--
	c.epoch++
}
