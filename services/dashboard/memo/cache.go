// Package memo memoizes expensive loads under content-addressed keys with a
// bounded size and a bounded lifetime.
package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Observer is told about every lookup; result is "hit" or "miss".
type Observer func(cache, result string)

// Options bound a cache.
type Options struct {
	MaxEntries int
	TTL        time.Duration
	Clock      clockwork.Clock
	Observer   Observer
}

// Key builds the content address for a call: the function name followed by
// the SHA-256 of the JSON encoded arguments.
func Key(fn string, args ...any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte(fmt.Sprintf("%#v", args))
	}
	sum := sha256.Sum256(raw)
	return fn + ":" + hex.EncodeToString(sum[:])
}

// Cache is a thread-safe LRU with per-entry expiry.
type Cache[V any] struct {
	name       string
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	observe    Observer

	mu      sync.Mutex
	entries map[string]*entry[V]
	head    *entry[V] // most recently used
	tail    *entry[V] // least recently used
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
	prev    *entry[V]
	next    *entry[V]
}

// New creates a cache. A zero MaxEntries means 128, a zero TTL never expires.
func New[V any](name string, opts Options) *Cache[V] {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 128
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Cache[V]{
		name:       name,
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		clock:      opts.Clock,
		observe:    opts.Observer,
		entries:    make(map[string]*entry[V]),
	}
}

// Do returns the cached value for fn(args...) or calls load and caches its
// result. Errors are not cached so a corrected input can be retried.
func (c *Cache[V]) Do(fn string, args []any, load func() (V, error)) (V, error) {
	key := Key(fn, args...)
	if v, ok := c.get(key); ok {
		c.report("hit")
		return v, nil
	}
	c.report("miss")

	v, err := load()
	if err != nil {
		return v, err
	}
	c.put(key, v)
	return v, nil
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.head, c.tail = nil, nil
}

func (c *Cache[V]) report(result string) {
	if c.observe != nil {
		c.observe(c.name, result)
	}
}

func (c *Cache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *Cache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *Cache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[V]) remove(e *entry[V]) {
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

func (c *Cache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
