// owned_buftab.go implements the reference-counted BufTab owner.

package dmai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/xaionaro-go/hwbuftransport/internal"
	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/hwbuftransport/orphan"
)

// Registry is the orphan registry the pool-domain transports use.
type Registry = orphan.Registry[*Buffer]

func NewRegistry() *Registry {
	return orphan.New[*Buffer]()
}

// OwnedBufTab is a reference-counted owner of a BufTab. Transports created
// with an owner keep it alive; the BufTab is destroyed when the last
// reference is dropped. Waiters for free buffers park on its Rendezvous,
// which transports force when they return a buffer.
type OwnedBufTab struct {
	BufTab     *BufTab
	Rendezvous *Rendezvous

	registry *Registry
	refCount atomic.Int32
}

func NewOwnedBufTab(
	ctx context.Context,
	registry *Registry,
	numBufs int,
	size int,
) (*OwnedBufTab, error) {
	if registry == nil {
		return nil, ErrNoRegistry{}
	}
	bufTab, err := NewBufTab(ctx, numBufs, size)
	if err != nil {
		return nil, fmt.Errorf("unable to create a BufTab: %w", err)
	}
	o := &OwnedBufTab{
		BufTab:     bufTab,
		Rendezvous: NewRendezvous(),
		registry:   registry,
	}
	o.refCount.Store(1)
	return o, nil
}

func (o *OwnedBufTab) String() string {
	return fmt.Sprintf("Owned%s", o.BufTab)
}

func (o *OwnedBufTab) RefCount() int32 {
	return o.refCount.Load()
}

func (o *OwnedBufTab) Ref(ctx context.Context) {
	if o.refCount.Add(1) <= 1 {
		internal.Misuse(ctx, fmt.Errorf("%v: %w", o, ErrAlreadyReleased{}))
	}
}

// Unref drops a reference; the last one destroys the BufTab, registering the
// buffers still held downstream as orphans.
func (o *OwnedBufTab) Unref(ctx context.Context) {
	refCount := o.refCount.Add(-1)
	logger.Tracef(ctx, "%v: Unref: %d", o, refCount)
	switch {
	case refCount > 0:
		return
	case refCount < 0:
		internal.Misuse(ctx, fmt.Errorf("%v: the reference count dropped below zero: %d", o, refCount))
	}
	o.registry.DestroyPool(ctx, o.BufTab, o.BufTab.Delete)
	o.Rendezvous.Force()
}

// GetFreeBuf waits until the BufTab has a free buffer (or ctx is done) and
// returns it marked as used by the codec.
func (o *OwnedBufTab) GetFreeBuf(ctx context.Context) (_ret *Buffer, _err error) {
	logger.Tracef(ctx, "%v: GetFreeBuf", o)
	defer func() { logger.Tracef(ctx, "/%v: GetFreeBuf: %v %v", o, _ret, _err) }()
	for {
		ch := o.Rendezvous.WaitChan()
		buf, err := o.BufTab.GetFreeBuf(ctx)
		if err == nil {
			return buf, nil
		}
		if !errors.As(err, &ErrNoFreeBuffer{}) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// AcquireTransport waits for a free buffer and wraps it into a transport
// owned by o. The codec bit is dropped, so the buffer returns to the free set
// as soon as the transport is released.
func (o *OwnedBufTab) AcquireTransport(ctx context.Context) (*Transport, error) {
	buf, err := o.GetFreeBuf(ctx)
	if err != nil {
		return nil, err
	}
	t, err := NewTransport(ctx, o.registry, buf, TransportConfig{Owner: o})
	if err != nil {
		buf.FreeUseMask(ctx, UseMaskCodec)
		o.Rendezvous.Force()
		return nil, fmt.Errorf("unable to wrap %v: %w", buf, err)
	}
	buf.FreeUseMask(ctx, UseMaskCodec)
	return t, nil
}
