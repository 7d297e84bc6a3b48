// Package buffer provides the reference-counted pipeline buffer that the
// hardware buffer transports are built on.
//
// A Buffer exposes a borrowed payload to the consumer graph. Consumers may
// read and write the bytes but never free them: when the last reference is
// dropped the teardown hook installed by the concrete transport returns the
// memory to whatever hardware subsystem owns it.
package buffer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xaionaro-go/hwbuftransport/internal"
	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xcontext"
)

// Buffer is the pipeline-native view of a transport.
type Buffer interface {
	Data() []byte
	Size() int
	Ref(ctx context.Context)
	Unref(ctx context.Context)
	RefCount() int32
	IsReleased() bool
	PTS() typing.Optional[time.Duration]
	SetPTS(time.Duration)
}

// FinalizeFunc returns the underlying hardware buffer to its owner.
type FinalizeFunc func(ctx context.Context)

// Base implements Buffer. It has to be initialized with Init before it is
// shared and must not be copied afterwards.
type Base struct {
	data     []byte
	refCount atomic.Int32
	released atomic.Bool
	finalize FinalizeFunc
	pts      typing.Optional[time.Duration]
}

var _ Buffer = (*Base)(nil)

// Init sets the payload and the teardown hook, and takes the initial
// reference, which belongs to the caller.
func (b *Base) Init(data []byte, finalize FinalizeFunc) {
	b.data = data
	b.finalize = finalize
	b.refCount.Store(1)
}

// Data returns the payload, or nil once the buffer is released.
func (b *Base) Data() []byte {
	if b.released.Load() {
		return nil
	}
	return b.data
}

func (b *Base) Size() int {
	return len(b.Data())
}

func (b *Base) PTS() typing.Optional[time.Duration] {
	return b.pts
}

// SetPTS is meant to be called by the producer before the buffer is pushed
// downstream.
func (b *Base) SetPTS(pts time.Duration) {
	b.pts = typing.Opt(pts)
}

func (b *Base) RefCount() int32 {
	return b.refCount.Load()
}

func (b *Base) IsReleased() bool {
	return b.released.Load()
}

func (b *Base) Ref(ctx context.Context) {
	if b.refCount.Add(1) <= 1 || b.released.Load() {
		internal.Misuse(ctx, ErrRefAfterRelease{})
	}
}

// Unref drops a reference; dropping the last one tears the buffer down.
func (b *Base) Unref(ctx context.Context) {
	refCount := b.refCount.Add(-1)
	logger.Tracef(ctx, "Unref(%p): %d", b, refCount)
	switch {
	case refCount > 0:
		return
	case refCount < 0:
		internal.Misuse(ctx, ErrNegativeRefCount{RefCount: refCount})
	}
	b.teardown(ctx)
}

// Release tears the buffer down regardless of outstanding references. It is
// used by owners that shut down while consumers may still be holding the
// buffer; those references become inert. It reports whether this call
// performed the teardown.
func (b *Base) Release(ctx context.Context) bool {
	return b.teardown(ctx)
}

func (b *Base) teardown(ctx context.Context) bool {
	if !b.released.CompareAndSwap(false, true) {
		logger.Tracef(ctx, "teardown(%p): already released", b)
		return false
	}
	logger.Tracef(ctx, "teardown(%p)", b)
	defer logger.Tracef(ctx, "/teardown(%p)", b)

	finalize := b.finalize
	b.finalize = nil
	if finalize != nil {
		finalize(xcontext.DetachDone(ctx))
	}
	return true
}
