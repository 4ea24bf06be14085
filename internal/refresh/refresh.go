// Package refresh implements the generation counters that tell UI consumers
// to re-fetch after a reconciliation commit. Writers bump, readers either
// poll Load or receive on a Watch channel. The three counters are
// independent; no ordering is guaranteed across them beyond "bumped after
// commit".
package refresh

import (
	"sync"
	"sync/atomic"
)

// Counter is a single observable generation counter.
type Counter struct {
	n        atomic.Uint64
	mu       sync.Mutex
	watchers []chan uint64
}

// Bump increments the generation and notifies watchers. Watchers with full
// buffers are skipped; they catch up via Load.
func (c *Counter) Bump() {
	v := c.n.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.watchers {
		select {
		case ch <- v:
		default:
		}
	}
}

// Load returns the current generation.
func (c *Counter) Load() uint64 {
	return c.n.Load()
}

// Watch returns a channel that receives each new generation value.
func (c *Counter) Watch() <-chan uint64 {
	ch := make(chan uint64, 16)
	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()
	return ch
}

// Signals bundles the three refresh channels bumped after a reconciliation
// commit: the anchor list, the link menu, and the node content.
type Signals struct {
	Anchors Counter
	Links   Counter
	Content Counter
}
