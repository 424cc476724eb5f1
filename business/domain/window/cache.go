package window

import (
	"sync"
)

type State int

const (
	Unscheduled State = iota
	Computing
	Completed
)

func (s State) String() string {
	switch s {
	case Computing:
		return "computing"
	case Completed:
		return "completed"
	default:
		return "unscheduled"
	}
}

type entry[V any] struct {
	state State
	value V
}

// Cache memoizes one result per key. Readers never wait for a computation,
// they observe its state instead.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]*entry[V])}
}

// TrySchedule moves key from unscheduled to computing. It returns false if
// the key is already computing or completed.
func (c *Cache[K, V]) TrySchedule(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = &entry[V]{state: Computing}
	return true
}

func (c *Cache[K, V]) Complete(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry[V]{state: Completed, value: value}
}

// Fail resets a computing key so that it can be scheduled again.
func (c *Cache[K, V]) Fail(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.state == Computing {
		delete(c.entries, key)
	}
}

func (c *Cache[K, V]) Get(key K) (V, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, Unscheduled
	}
	return e.value, e.state
}

// Completed returns the completed values, unordered.
func (c *Cache[K, V]) Completed() map[K]V {
	c.mu.Lock()
	defer c.mu.Unlock()

	completed := make(map[K]V)
	for k, e := range c.entries {
		if e.state == Completed {
			completed[k] = e.value
		}
	}
	return completed
}
