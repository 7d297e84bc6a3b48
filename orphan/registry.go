// Package orphan tracks hardware buffers whose pool was destroyed while
// they were still referenced downstream.
//
// A Registry is the single mutual-exclusion domain for three things: recording
// the orphans of a pool that is being destroyed, freeing that pool, and the
// release decision of every transport over the pool's buffers. Holding one lock
// across all of them guarantees that a transport either returns its buffer to
// a live pool or observes the orphan entry, never a freed pool.
package orphan

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// Pool is a buffer pool that may be destroyed while some of its buffers are
// still in use downstream.
type Pool[H comparable] interface {
	fmt.Stringer

	// InUseDownstream returns the buffers currently held by the consumer graph.
	InUseDownstream(ctx context.Context) []H
}

type entry struct {
	Pool         string
	RegisteredAt time.Time
}

type Registry[H comparable] struct {
	locker  xsync.Mutex
	entries map[H]entry

	registered atomic.Uint64
	consumed   atomic.Uint64
}

func New[H comparable]() *Registry[H] {
	return &Registry[H]{
		entries: map[H]entry{},
	}
}

// Do runs fn inside the registry's critical section.
func (r *Registry[H]) Do(ctx context.Context, fn func()) {
	r.locker.Do(ctx, fn)
}

// RegisterOrphans records every buffer of pool that is still in use
// downstream. It has to be called before the pool's storage is freed; see
// DestroyPool for doing both atomically.
func (r *Registry[H]) RegisterOrphans(
	ctx context.Context,
	pool Pool[H],
) int {
	return xsync.DoA2R1(ctx, &r.locker, r.registerOrphansLocked, ctx, pool)
}

func (r *Registry[H]) registerOrphansLocked(
	ctx context.Context,
	pool Pool[H],
) int {
	now := time.Now()
	count := 0
	for _, h := range pool.InUseDownstream(ctx) {
		if _, ok := r.entries[h]; ok {
			continue
		}
		logger.DebugFields(ctx, "registered an orphaned buffer", logger.BufferFields(h, pool))
		r.entries[h] = entry{
			Pool:         pool.String(),
			RegisteredAt: now,
		}
		count++
	}
	r.registered.Add(uint64(count))
	return count
}

// IsOrphaned reports whether h was registered as an orphan. A positive answer
// consumes the entry: the next call for the same handle returns false.
func (r *Registry[H]) IsOrphaned(
	ctx context.Context,
	h H,
) bool {
	return xsync.DoA2R1(ctx, &r.locker, r.isOrphanedLocked, ctx, h)
}

func (r *Registry[H]) isOrphanedLocked(
	ctx context.Context,
	h H,
) bool {
	e, ok := r.entries[h]
	if !ok {
		return false
	}
	delete(r.entries, h)
	r.consumed.Inc()
	logger.DebugFields(ctx, fmt.Sprintf("found an orphaned buffer (orphaned %v ago)", time.Since(e.RegisteredAt)), logger.BufferFields(h, e.Pool))
	return true
}

// DestroyPool registers the orphans of pool and then calls destroy, without
// releasing the registry lock in between.
func (r *Registry[H]) DestroyPool(
	ctx context.Context,
	pool Pool[H],
	destroy func(context.Context),
) {
	logger.Tracef(ctx, "DestroyPool(%s)", pool)
	defer func() { logger.Tracef(ctx, "/DestroyPool(%s)", pool) }()
	r.locker.Do(ctx, func() {
		count := r.registerOrphansLocked(ctx, pool)
		if count > 0 {
			logger.Warnf(ctx, "destroying %s with %d buffer(s) still in use downstream", pool, count)
		}
		destroy(ctx)
	})
}

// ReleaseUnlessOrphaned consumes the orphan entry of h if there is one,
// otherwise it calls release. Both happen inside the registry's critical
// section, so the pool cannot be destroyed while release runs.
func (r *Registry[H]) ReleaseUnlessOrphaned(
	ctx context.Context,
	h H,
	release func(context.Context),
) (orphaned bool) {
	r.locker.Do(ctx, func() {
		orphaned = r.isOrphanedLocked(ctx, h)
		if !orphaned {
			release(ctx)
		}
	})
	return
}

func (r *Registry[H]) Len(ctx context.Context) int {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &r.locker, func() int {
		return len(r.entries)
	})
}

type Stats struct {
	Registered uint64
	Consumed   uint64
}

// Pending is the amount of orphans nobody released yet.
func (s Stats) Pending() uint64 {
	return s.Registered - s.Consumed
}

func (r *Registry[H]) Stats() Stats {
	return Stats{
		Registered: r.registered.Load(),
		Consumed:   r.consumed.Load(),
	}
}
