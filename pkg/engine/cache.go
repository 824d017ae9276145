package engine

import (
	"context"
	"sync"
)

// Future is the eventual result of one node execution.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future that already holds a result. It is mainly useful
// for pre-seeding a cache.
func Resolved(value any, err error) *Future {
	f := newFuture()
	f.resolve(value, err)
	return f
}

func (f *Future) resolve(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the result without blocking. ok is false while the
// execution is still in flight.
func (f *Future) Result() (value any, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return nil, nil, false
	}
}

// Cache memoizes node executions by node id for the lifetime of one
// execution request. Sharing a cache across ExecuteNode calls makes every
// node in it run at most once; a failed entry stays failed.
type Cache struct {
	entries map[int]*Future
	mu      sync.Mutex
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int]*Future)}
}

// Get returns the entry for a node id.
func (c *Cache) Get(nodeID int) (*Future, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[nodeID]
	return f, ok
}

// Set stores an entry, replacing any existing one.
func (c *Cache) Set(nodeID int, f *Future) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nodeID] = f
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// claim returns the existing entry for nodeID, or registers and returns a new
// pending one when create is true. created reports which happened; a nil
// future means nothing existed and nothing was created.
func (c *Cache) claim(nodeID int, create bool) (f *Future, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.entries[nodeID]; ok {
		return f, false
	}
	if !create {
		return nil, false
	}
	f = newFuture()
	c.entries[nodeID] = f
	return f, true
}
