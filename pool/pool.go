// Package pool provides object pools for the memory backing standalone
// hardware buffers.
package pool

import (
	"sync"

	"go.uber.org/atomic"
)

// ReuseMemory disables pooling when false: Put drops the items.
var ReuseMemory = true

// Pool is a typed sync.Pool that resets items before they are reused.
type Pool[T any] struct {
	pool      sync.Pool
	resetFunc func(*T)
	allocated atomic.Uint64
}

func NewPool[T any](
	allocFunc func() *T,
	resetFunc func(*T),
) *Pool[T] {
	p := &Pool[T]{
		resetFunc: resetFunc,
	}
	p.pool.New = func() any {
		p.allocated.Inc()
		return allocFunc()
	}
	return p
}

func (p *Pool[T]) Get() *T {
	return p.pool.Get().(*T)
}

func (p *Pool[T]) Put(item *T) {
	if !ReuseMemory || item == nil {
		return
	}
	if p.resetFunc != nil {
		p.resetFunc(item)
	}
	p.pool.Put(item)
}

// Allocated returns how many items were allocated because the pool was
// empty.
func (p *Pool[T]) Allocated() uint64 {
	return p.allocated.Load()
}
