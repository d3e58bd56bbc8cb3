package http

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
	"github.com/couchcryptid/heat-insight-engine/internal/colorscale"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
)

// SessionHeader carries the client's session identifier. Requests without one
// are issued a fresh identifier in the response.
const SessionHeader = "X-Session-ID"

const maxSessionIDLen = 128

// session is one client's map state.
type session struct {
	scene    *boundary.Scene
	renderer *boundary.Renderer
}

// sessionStore keeps the most recently used sessions. Evicted sessions simply
// start over with an empty map.
type sessionStore struct {
	boundaries *boundary.Cache
	scale      *colorscale.Scale
	logger     *slog.Logger
	metrics    *observability.Metrics
	cache      *lruCache[*session]
}

func newSessionStore(limit int, boundaries *boundary.Cache, scale *colorscale.Scale, logger *slog.Logger, metrics *observability.Metrics) *sessionStore {
	return &sessionStore{
		boundaries: boundaries,
		scale:      scale,
		logger:     logger,
		metrics:    metrics,
		cache:      newLRUCache[*session](limit),
	}
}

// get returns the session for id, creating it when absent or evicted.
func (s *sessionStore) get(id string) *session {
	return s.cache.getOrPut(id, func() *session {
		scene := boundary.NewScene()
		return &session{
			scene:    scene,
			renderer: boundary.NewRenderer(s.boundaries, scene, s.scale, s.logger.With("session", id), s.metrics),
		}
	})
}

// sessionID returns the request's session identifier, or a new one when the
// header is absent or unusable.
func sessionID(header string) string {
	if header == "" || len(header) > maxSessionIDLen {
		return uuid.NewString()
	}
	return header
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// getOrPut returns the value for key, storing create() first when absent.
func (c *lruCache[V]) getOrPut(key string, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.moveToFront(e)
		return e.value
	}

	e := &entry[V]{key: key, value: create()}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return e.value
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
