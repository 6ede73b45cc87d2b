// Package cache provides a small bounded least-frequently-used cache shared
// by the embedding store and the adapter memoisation layers.
package cache

import "sync"

// LFU is a capacity-bounded cache with least-frequently-used eviction.
// Get bumps an entry's access frequency; insertion alone does not. When
// full, an entry with the minimum frequency is evicted; ties are broken by
// map iteration order, which is deliberately unspecified.
type LFU[V any] struct {
	mu   sync.Mutex
	cap  int
	data map[string]V
	freq map[string]int
}

// NewLFU creates an LFU with the given capacity. Capacity below 1 is
// treated as 1.
func NewLFU[V any](capacity int) *LFU[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LFU[V]{
		cap:  capacity,
		data: make(map[string]V),
		freq: make(map[string]int),
	}
}

// Get returns the cached value and bumps its access frequency.
func (c *LFU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.freq[key]++
	}
	return v, ok
}

// Put inserts a value, evicting a minimum-frequency entry when at capacity.
// Existing keys are left untouched: the first embedding of a text is
// canonical for the run.
func (c *LFU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; exists {
		return
	}
	if len(c.data) >= c.cap {
		c.evictLocked()
	}
	c.data[key] = value
	c.freq[key] = 0
}

// Len returns the number of cached entries.
func (c *LFU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear drops every entry and all frequency state.
func (c *LFU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]V)
	c.freq = make(map[string]int)
}

func (c *LFU[V]) evictLocked() {
	victim := ""
	minFreq := -1
	for k, f := range c.freq {
		if minFreq < 0 || f < minFreq {
			victim = k
			minFreq = f
		}
	}
	if minFreq >= 0 {
		delete(c.data, victim)
		delete(c.freq, victim)
	}
}
