// transport.go implements the pipeline buffer wrapping a DMAI-style buffer.

package dmai

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/hwbuftransport/buffer"
	"github.com/xaionaro-go/hwbuftransport/internal"
	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/xsync"
)

type TransportConfig struct {
	// Owner is kept alive (referenced) until the transport is released, and
	// its Rendezvous is forced on release.
	Owner *OwnedBufTab

	// Rendezvous is forced on release. Mutually exclusive with Owner.
	Rendezvous *Rendezvous
}

// Transport is a pipeline buffer exposing the memory of a DMAI buffer. On
// release the buffer goes back to its BufTab (or is deleted if it is
// standalone), unless the BufTab was destroyed in the meantime.
type Transport struct {
	buffer.Base

	registry *Registry

	locker     xsync.Mutex
	dmaiBuffer *Buffer
	owner      *OwnedBufTab
	rendezvous *Rendezvous
}

var _ buffer.Buffer = (*Transport)(nil)

func NewTransport(
	ctx context.Context,
	registry *Registry,
	buf *Buffer,
	cfg TransportConfig,
) (_ret *Transport, _err error) {
	logger.Tracef(ctx, "NewTransport(%v, %#+v)", buf, cfg)
	defer func() { logger.Tracef(ctx, "/NewTransport(%v): %v", buf, _err) }()

	if registry == nil {
		return nil, ErrNoRegistry{}
	}
	if cfg.Owner != nil && cfg.Rendezvous != nil {
		internal.Misuse(ctx, ErrOwnerAndRendezvous{})
	}

	t := &Transport{
		registry:   registry,
		dmaiBuffer: buf,
		rendezvous: cfg.Rendezvous,
	}

	// the BufTab cannot be destroyed between reading the memory and
	// marking the buffer as used downstream
	registry.Do(ctx, func() {
		memory := buf.UserPtr()
		if memory == nil {
			_err = ErrNoPayload{Buffer: buf}
			return
		}
		t.Base.Init(memory, t.finalize)
		if buf.BufTab() != nil {
			buf.AddUseMask(ctx, UseMaskDownstream)
		}
	})
	if _err != nil {
		logger.Errorf(ctx, "unable to wrap %v: %v", buf, _err)
		return nil, _err
	}

	if cfg.Owner != nil {
		t.owner = cfg.Owner
		t.rendezvous = cfg.Owner.Rendezvous
		cfg.Owner.Ref(ctx)
	}
	return t, nil
}

func (t *Transport) String() string {
	return fmt.Sprintf("DmaiTransport(%v)", t.DmaiBuffer())
}

// SetOwner attaches the owner of the buffer. It may be called at most once
// and only on transports created without an owner or a rendezvous; anything
// else is a contract violation and panics.
func (t *Transport) SetOwner(ctx context.Context, owner *OwnedBufTab) {
	var err error
	t.locker.Do(ctx, func() {
		switch {
		case owner == nil:
			err = ErrNilOwner{}
		case t.IsReleased():
			err = ErrAlreadyReleased{}
		case t.owner != nil:
			err = ErrOwnerAlreadySet{Owner: t.owner}
		case t.rendezvous != nil:
			err = ErrRendezvousAlreadySet{}
		default:
			owner.Ref(ctx)
			t.owner = owner
			t.rendezvous = owner.Rendezvous
		}
	})
	if err != nil {
		internal.Misuse(ctx, fmt.Errorf("%v: unable to set owner %v: %w", t, owner, err))
	}
}

func (t *Transport) DmaiBuffer() *Buffer {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &t.locker, func() *Buffer {
		return t.dmaiBuffer
	})
}

func (t *Transport) Owner() *OwnedBufTab {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &t.locker, func() *OwnedBufTab {
		return t.owner
	})
}

func (t *Transport) finalize(ctx context.Context) {
	logger.Tracef(ctx, "finalize(%p)", t)
	defer func() { logger.Tracef(ctx, "/finalize(%p)", t) }()

	var (
		buf   *Buffer
		owner *OwnedBufTab
		rv    *Rendezvous
	)
	t.locker.Do(ctx, func() {
		buf, owner, rv = t.dmaiBuffer, t.owner, t.rendezvous
		t.dmaiBuffer, t.owner, t.rendezvous = nil, nil, nil
	})

	orphaned := t.registry.ReleaseUnlessOrphaned(ctx, buf, func(ctx context.Context) {
		if buf.BufTab() != nil {
			logger.Tracef(ctx, "clearing the downstream use bit of %v", buf)
			buf.FreeUseMask(ctx, UseMaskDownstream)
			return
		}
		logger.Tracef(ctx, "deleting %v", buf)
		if err := buf.Delete(ctx); err != nil {
			logger.ErrorFields(ctx, err.Error(), logger.BufferFields(buf, nil))
		}
	})
	if orphaned {
		logger.DebugFields(ctx, "skipped returning an orphaned buffer", logger.BufferFields(buf, owner))
	}

	if rv != nil {
		rv.Force()
	}
	if owner != nil {
		owner.Unref(ctx)
	}
}

// IsTransport reports whether b wraps a DMAI buffer.
func IsTransport(b buffer.Buffer) bool {
	_, ok := b.(*Transport)
	return ok
}

// BufferOf returns the DMAI buffer wrapped by b, or nil if b is not a
// transport or is already released.
func BufferOf(b buffer.Buffer) *Buffer {
	t, ok := b.(*Transport)
	if !ok {
		return nil
	}
	return t.DmaiBuffer()
}
