// Package querycache caches read-query results by key and lets writers mark
// whole key families stale after a mutation.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	value    interface{}
	storedAt time.Time
	seq      uint64
}

type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	// gens is bumped by Invalidate; a fetch that started under an older
	// generation must not store its result.
	gens  map[string]uint64
	seq   uint64
	group singleflight.Group
	now   func() time.Time
	// fetchTimeout bounds a shared fetch, which outlives the caller that started it.
	fetchTimeout time.Duration

	requests *prometheus.CounterVec
}

const defaultFetchTimeout = 15 * time.Second

// New returns an empty cache. A zero ttl keeps entries until invalidated.
// reg may be nil, in which case counters are not registered anywhere.
func New(ttl time.Duration, reg prometheus.Registerer) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		gens:    make(map[string]uint64),
		now:     time.Now,

		fetchTimeout: defaultFetchTimeout,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "bankflow_query_cache_requests_total",
			Help: "Query cache lookups by result.",
		}, []string{"result"}),
	}
}

// Get returns the cached value for key or runs fetch to fill it. Concurrent
// misses on the same key share one fetch. The shared fetch is detached from
// ctx, so a caller that gives up only stops waiting for itself.
func (c *Cache) Get(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.lookup(key); ok {
		c.requests.WithLabelValues("hit").Inc()
		return v, nil
	}
	c.requests.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		gen, seq := c.begin(key)
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, gen, seq, v)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops every entry whose key starts with prefix. Fetches already
// in flight for those keys still return to their callers but are not cached.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.gens {
		if strings.HasPrefix(key, prefix) {
			c.gens[key]++
			delete(c.entries, key)
			c.group.Forget(key)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) begin(key string) (gen, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	gen = c.gens[key]
	c.gens[key] = gen
	return gen, c.seq
}

func (c *Cache) store(key string, gen, seq uint64, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key] != gen {
		return
	}
	if e, ok := c.entries[key]; ok && e.seq > seq {
		return
	}
	c.entries[key] = entry{value: v, storedAt: c.now(), seq: seq}
}

// Fetch is a typed wrapper around Cache.Get.
func Fetch[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("querycache: key %q holds %T", key, v)
	}
	return typed, nil
}
