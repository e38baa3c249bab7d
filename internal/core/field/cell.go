package field

import "sync"

// Cell is a mutable value with change notification. Writes are
// last-writer-wins; observers run synchronously on the writing goroutine,
// after the lock is released, in subscription order.
type Cell[T any] struct {
	mu   sync.RWMutex
	v    T
	subs []subscriber[T]
	next int
}

type subscriber[T any] struct {
	id int
	fn func(old, cur T)
}

// NewCell returns a cell holding v.
func NewCell[T any](v T) *Cell[T] {
	return &Cell[T]{v: v}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Set stores v, notifies observers and returns the previous value.
func (c *Cell[T]) Set(v T) T {
	c.mu.Lock()
	old := c.v
	c.v = v
	subs := append([]subscriber[T](nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(old, v)
	}
	return old
}

// Subscribe registers fn for every subsequent Set. The returned func removes it.
func (c *Cell[T]) Subscribe(fn func(old, cur T)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}
