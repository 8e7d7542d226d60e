// Package event provides explicit extension points: ordered chains of
// listeners invoked synchronously while a request is being processed.
// Listeners may mutate the event payload; the first error stops the chain
// and is returned to the caller unchanged.
package event

import "context"

// Listener observes or mutates an event of type E.
type Listener[E any] func(ctx context.Context, event E) error

// Chain is an ordered list of listeners. The zero value is an empty chain.
// Register all listeners during startup; dispatching does not lock.
type Chain[E any] struct {
	listeners []Listener[E]
}

// NewChain creates a chain with the given listeners in order.
func NewChain[E any](listeners ...Listener[E]) *Chain[E] {
	return &Chain[E]{listeners: append([]Listener[E]{}, listeners...)}
}

// Add appends a listener.
func (c *Chain[E]) Add(l Listener[E]) {
	c.listeners = append(c.listeners, l)
}

// Len returns the number of registered listeners.
func (c *Chain[E]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.listeners)
}

// Dispatch calls every listener in registration order.
// A nil chain dispatches nothing.
func (c *Chain[E]) Dispatch(ctx context.Context, event E) error {
	if c == nil {
		return nil
	}
	for _, l := range c.listeners {
		if err := l(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// EntityLoaded is dispatched after a batch of entities has been loaded and
// before it is returned to the caller.
type EntityLoaded[T any] struct {
	Entity   string
	Entities []T
}
