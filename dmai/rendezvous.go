// rendezvous.go implements the wake primitive signaled when buffers return.

package dmai

import (
	"context"
	"sync/atomic"

	"github.com/go-ng/xatomic"
)

// Rendezvous lets threads wait until somebody forces them to proceed. Force
// wakes every current waiter; it is not remembered for future waiters, so a
// waiter has to take WaitChan before checking the condition it waits for.
type Rendezvous struct {
	changeChan *chan struct{}
	forceCount atomic.Uint64
}

func NewRendezvous() *Rendezvous {
	return &Rendezvous{
		changeChan: ptr(make(chan struct{})),
	}
}

// WaitChan returns a channel closed by the next Force.
func (r *Rendezvous) WaitChan() <-chan struct{} {
	return *xatomic.LoadPointer(&r.changeChan)
}

// Force wakes all waiters.
func (r *Rendezvous) Force() {
	r.forceCount.Add(1)
	close(*xatomic.SwapPointer(&r.changeChan, ptr(make(chan struct{}))))
}

// Wait blocks until the next Force or until ctx is done.
func (r *Rendezvous) Wait(ctx context.Context) error {
	ch := r.WaitChan()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// ForceCount returns how many times Force was called.
func (r *Rendezvous) ForceCount() uint64 {
	return r.forceCount.Load()
}

func ptr[T any](in T) *T {
	return &in
}
