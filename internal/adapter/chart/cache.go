package chart

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

// drawPublisher is the behaviour CachedRenderer decorates.
type drawPublisher interface {
	Draw(ctx context.Context, records []domain.Record) (Chart, error)
	Publish(ch Chart) error
}

// CachedRenderer wraps a renderer with an in-memory LRU cache keyed by the
// plotted prefix. Several bands firing on one row ask for the same prefix, so
// only the first of them pays for drawing. Hits and misses alike republish the
// image, so the chart file always holds the last chart handed out.
type CachedRenderer struct {
	inner drawPublisher
	cache *lruCache
}

// NewCachedRenderer creates a cache decorator around a renderer.
func NewCachedRenderer(inner drawPublisher, maxEntries int) *CachedRenderer {
	return &CachedRenderer{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedRenderer) Render(ctx context.Context, records []domain.Record) (Chart, error) {
	key := prefixKey(records)
	ch, ok := c.cache.get(key)
	if !ok {
		var err error
		ch, err = c.inner.Draw(ctx, records)
		if err != nil {
			return Chart{}, err
		}
		c.cache.put(key, ch)
	}
	if err := c.inner.Publish(ch); err != nil {
		return Chart{}, err
	}
	return ch, nil
}

// prefixKey identifies a prefix of an immutable record sequence.
func prefixKey(records []domain.Record) string {
	if len(records) == 0 {
		return "empty"
	}
	return fmt.Sprintf("%d|%d|%d",
		records[0].Timestamp.UnixNano(),
		records[len(records)-1].Timestamp.UnixNano(),
		len(records),
	)
}

// lruCache is a simple thread-safe LRU cache for rendered charts.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value Chart
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (Chart, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Chart{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value Chart) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
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

func (c *lruCache) remove(e *entry) {
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
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
