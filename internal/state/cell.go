// Package state provides the observable value holder every session uses to
// mirror asynchronous backend results.
//
// A Cell has exactly one writer: the session that owns it. Readers either
// poll Get, register a synchronous observer with Observe, or consume a
// latest-value channel from Watch.
package state

import (
	"context"
	"sync"
	"sync/atomic"
)

// Reader is the read-only view of a Cell handed out to consumers.
type Reader[T any] interface {
	Get() T
	Observe(fn func(T)) (cancel func())
	Watch(ctx context.Context) <-chan T
}

type observer[T any] struct {
	fn     func(T)
	active atomic.Bool
}

type Cell[T any] struct {
	mu        sync.RWMutex
	value     T
	observers []*observer[T]
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and then notifies observers synchronously, in registration order.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	observers := make([]*observer[T], len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		if o.active.Load() {
			o.fn(v)
		}
	}
}

// Update applies fn to the current value and stores the result.
func (c *Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.Get()))
}

// Observe registers fn for every subsequent Set. fn is not called with the
// current value. Once cancel returns, fn is never invoked again.
func (c *Cell[T]) Observe(fn func(T)) (cancel func()) {
	o := &observer[T]{fn: fn}
	o.active.Store(true)

	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(o) })
	}
}

func (c *Cell[T]) remove(o *observer[T]) {
	o.active.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.observers {
		if existing == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

// Watch returns a channel that first yields the current value and then every
// new value until ctx is done. A slow reader only ever sees the latest value;
// intermediate values are dropped.
func (c *Cell[T]) Watch(ctx context.Context) <-chan T {
	out := make(chan T, 1)
	pending := make(chan T, 1)

	var pushMu sync.Mutex
	push := func(v T) {
		pushMu.Lock()
		defer pushMu.Unlock()
		select {
		case <-pending:
		default:
		}
		pending <- v
	}

	c.mu.Lock()
	push(c.value)
	o := &observer[T]{fn: push}
	o.active.Store(true)
	c.observers = append(c.observers, o)
	c.mu.Unlock()

	go func() {
		defer close(out)
		defer c.remove(o)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-pending:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
