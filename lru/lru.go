// Package lru provides a generic, weighted, fixed-capacity LRU container.
//
// Entries live in a map for O(1) lookup and in an intrusive doubly linked
// list ordered by recency (head is MRU, tail is LRU). Every entry has a
// weight (1 by default, or whatever the Weigher returns) and after each Set
// entries are evicted from the LRU end until the total weight fits the
// capacity again.
//
// The container is not safe for concurrent use and has no eviction callback.
// Set reports the keys it evicted so a wrapper can notify if it needs to.
package lru

// Weigher returns the weight of one entry. Weights must be non-negative.
type Weigher[K comparable, V any] func(key K, value V) int64

type entry[K comparable, V any] struct {
	key    K
	value  V
	weight int64

	prev *entry[K, V]
	next *entry[K, V]
}

// Cache is a weighted LRU container.
type Cache[K comparable, V any] struct {
	capacity int64
	weight   int64
	weigher  Weigher[K, V]

	items map[K]*entry[K, V]
	head  *entry[K, V] // MRU
	tail  *entry[K, V] // LRU
}

// New creates a container holding up to capacity total weight.
// A nil weigher weighs every entry as 1, making capacity an entry count.
func New[K comparable, V any](capacity int64, weigher Weigher[K, V]) *Cache[K, V] {
	if weigher == nil {
		weigher = func(K, V) int64 { return 1 }
	}
	return &Cache[K, V]{
		capacity: capacity,
		weigher:  weigher,
		items:    make(map[K]*entry[K, V]),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Peek returns the value for key without touching recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether key is present without touching recency.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.items[key]
	return ok
}

// Set inserts or replaces the value for key, marks it most recently used
// and trims the container. It returns the keys evicted by the trim, which
// may include key itself when its weight alone exceeds the capacity.
func (c *Cache[K, V]) Set(key K, value V) []K {
	w := c.weigher(key, value)
	if e, ok := c.items[key]; ok {
		c.weight += w - e.weight
		e.value = value
		e.weight = w
		c.moveToFront(e)
	} else {
		e := &entry[K, V]{key: key, value: value, weight: w}
		c.items[key] = e
		c.pushFront(e)
		c.weight += w
	}
	return c.trim()
}

// Remove deletes key and returns its value.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.drop(e)
	return e.value, true
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.items = make(map[K]*entry[K, V])
	c.head, c.tail = nil, nil
	c.weight = 0
}

// Dump returns a copy of all entries. Iteration order of the result is unspecified.
func (c *Cache[K, V]) Dump() map[K]V {
	out := make(map[K]V, len(c.items))
	for k, e := range c.items {
		out[k] = e.value
	}
	return out
}

// Keys returns the keys ordered from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	out := make([]K, 0, len(c.items))
	for e := c.head; e != nil; e = e.next {
		out = append(out, e.key)
	}
	return out
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int { return len(c.items) }

// Weight returns the total weight of all entries.
func (c *Cache[K, V]) Weight() int64 { return c.weight }

// Capacity returns the configured maximum weight.
func (c *Cache[K, V]) Capacity() int64 { return c.capacity }

func (c *Cache[K, V]) trim() []K {
	var evicted []K
	for c.weight > c.capacity && c.tail != nil {
		e := c.tail
		c.drop(e)
		evicted = append(evicted, e.key)
	}
	return evicted
}

func (c *Cache[K, V]) drop(e *entry[K, V]) {
	c.unlink(e)
	delete(c.items, e.key)
	c.weight -= e.weight
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}
