package geometrycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/tank-level-service/internal/domain"
	"github.com/couchcryptid/tank-level-service/internal/observability"
)

// Cache wraps a GeometrySource with a bounded LRU whose entries expire after
// a TTL. Lookup errors, including domain.ErrTankNotFound, are not cached so a
// newly configured tank is picked up on its next reading.
type Cache struct {
	inner   domain.GeometrySource
	clock   clockwork.Clock
	metrics *observability.Metrics
	ttl     time.Duration
	max     int

	mu      sync.Mutex
	order   *list.List // front is most recently used
	entries map[string]*list.Element
}

type entry struct {
	tankID    string
	geometry  domain.TankGeometry
	expiresAt time.Time
}

// New creates a cache decorator around a geometry source. A nil clock uses
// the real clock.
func New(inner domain.GeometrySource, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		inner:   inner,
		clock:   clock,
		metrics: metrics,
		ttl:     ttl,
		max:     maxEntries,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *Cache) Geometry(ctx context.Context, tankID string) (domain.TankGeometry, error) {
	if g, ok := c.get(tankID); ok {
		c.metrics.GeometryCache.WithLabelValues("hit").Inc()
		return g, nil
	}
	c.metrics.GeometryCache.WithLabelValues("miss").Inc()

	g, err := c.inner.Geometry(ctx, tankID)
	if err != nil {
		return g, err
	}
	c.put(tankID, g)
	return g, nil
}

// Invalidate drops a tank so its next lookup reaches the inner source.
func (c *Cache) Invalidate(tankID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[tankID]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of cached tanks, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) get(tankID string) (domain.TankGeometry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[tankID]
	if !ok {
		return domain.TankGeometry{}, false
	}
	e := el.Value.(*entry)
	if !c.clock.Now().Before(e.expiresAt) {
		c.removeElement(el)
		return domain.TankGeometry{}, false
	}
	c.order.MoveToFront(el)
	return e.geometry, true
}

func (c *Cache) put(tankID string, g domain.TankGeometry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if el, ok := c.entries[tankID]; ok {
		e := el.Value.(*entry)
		e.geometry, e.expiresAt = g, expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.entries[tankID] = c.order.PushFront(&entry{tankID: tankID, geometry: g, expiresAt: expiresAt})
	for c.order.Len() > c.max {
		c.removeElement(c.order.Back())
	}
}

func (c *Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).tankID)
}
