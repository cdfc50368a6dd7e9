// Package gate tracks the runtime enabled/disabled flag per share. The
// flag lives only in memory: every share starts disabled after a process
// restart, regardless of its last state. That reset is a security default,
// not an omission.
package gate

import (
	"sync"
)

// Controller is the single authority on whether a share is currently
// serving. Session verification and the stream proxy both consult it, so
// flipping a share off takes effect on the very next request.
type Controller struct {
	mu       sync.RWMutex
	enabled  map[string]bool
	watchers map[string]map[int]chan bool
	nextID   int
}

func NewController() *Controller {
	return &Controller{
		enabled:  make(map[string]bool),
		watchers: make(map[string]map[int]chan bool),
	}
}

// Enabled reports the gate state for slug. Absent slugs are disabled.
func (c *Controller) Enabled(slug string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled[slug]
}

// Set flips the gate for slug and notifies watchers. Notification is
// non-blocking: each watcher channel holds one pending state and is
// drained-then-filled so a slow consumer only ever misses intermediate
// flips, never the latest one.
func (c *Controller) Set(slug string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled[slug] == enabled {
		return
	}
	c.enabled[slug] = enabled

	for _, ch := range c.watchers[slug] {
		select {
		case <-ch:
		default:
		}
		ch <- enabled
	}
}

// Watch subscribes to gate flips for slug. The returned cancel must be
// called when the consumer goes away; it is safe to call twice.
func (c *Controller) Watch(slug string) (<-chan bool, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan bool, 1)
	id := c.nextID
	c.nextID++
	if c.watchers[slug] == nil {
		c.watchers[slug] = make(map[int]chan bool)
	}
	c.watchers[slug][id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if m, ok := c.watchers[slug]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(c.watchers, slug)
			}
		}
	}
	return ch, cancel
}

// Forget drops all state for a deleted share. Watchers are notified with
// a disable so in-flight streams tear down.
func (c *Controller) Forget(slug string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.enabled, slug)
	for _, ch := range c.watchers[slug] {
		select {
		case <-ch:
		default:
		}
		ch <- false
	}
}

// CountEnabled returns how many shares are currently switched on.
func (c *Controller) CountEnabled() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, on := range c.enabled {
		if on {
			n++
		}
	}
	return n
}
