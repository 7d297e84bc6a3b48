// buftab.go implements a fixed table of pre-allocated hardware buffers.

package dmai

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/hwbuftransport/orphan"
	"github.com/xaionaro-go/xsync"
)

// BufTab is a pool of equally sized buffers with a use mask per buffer.
type BufTab struct {
	ID uuid.UUID

	locker  xsync.Mutex
	buffers []*Buffer
	deleted bool

	// lateFrees counts use mask changes attempted after Delete.
	lateFrees atomic.Uint64
}

var _ orphan.Pool[*Buffer] = (*BufTab)(nil)

func NewBufTab(
	ctx context.Context,
	numBufs int,
	size int,
) (*BufTab, error) {
	if numBufs <= 0 {
		return nil, ErrInvalidNumBufs{NumBufs: numBufs}
	}
	if size <= 0 {
		return nil, ErrInvalidSize{Size: size}
	}
	t := &BufTab{
		ID:      uuid.New(),
		buffers: make([]*Buffer, numBufs),
	}
	for idx := range t.buffers {
		t.buffers[idx] = newBuffer(make([]byte, size), t)
	}
	logger.Debugf(ctx, "created %v: %d buffers of %d bytes", t, numBufs, size)
	return t, nil
}

func (t *BufTab) String() string {
	return fmt.Sprintf("BufTab(%s)", t.ID)
}

func (t *BufTab) NumBufs() int {
	return len(t.buffers)
}

func (t *BufTab) GetBuf(idx int) *Buffer {
	return t.buffers[idx]
}

// GetFreeBuf returns a buffer with an empty use mask and marks it as used by
// the codec.
func (t *BufTab) GetFreeBuf(ctx context.Context) (*Buffer, error) {
	return xsync.DoA1R2(xsync.WithNoLogging(ctx, true), &t.locker, t.getFreeBufLocked, ctx)
}

func (t *BufTab) getFreeBufLocked(ctx context.Context) (*Buffer, error) {
	if t.deleted {
		return nil, ErrBufTabDeleted{BufTab: t}
	}
	for _, buf := range t.buffers {
		if buf.useMask != 0 {
			continue
		}
		buf.useMask = UseMaskCodec
		logger.Tracef(ctx, "%v: handing out %v", t, buf)
		return buf, nil
	}
	return nil, ErrNoFreeBuffer{BufTab: t}
}

// NumFree returns the amount of buffers with an empty use mask.
func (t *BufTab) NumFree(ctx context.Context) int {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &t.locker, func() int {
		count := 0
		for _, buf := range t.buffers {
			if buf.useMask == 0 {
				count++
			}
		}
		return count
	})
}

// IsFree reports whether buf belongs to this BufTab and has an empty use mask.
func (t *BufTab) IsFree(ctx context.Context, buf *Buffer) bool {
	if buf.bufTab != t {
		return false
	}
	return buf.UseMask(ctx) == 0
}

// FreeAll clears the given bits on every buffer.
func (t *BufTab) FreeAll(ctx context.Context, mask UseMask) {
	t.locker.Do(ctx, func() {
		for _, buf := range t.buffers {
			buf.useMask &^= mask
		}
	})
}

// InUseDownstream returns the buffers currently held by the pipeline.
func (t *BufTab) InUseDownstream(ctx context.Context) []*Buffer {
	return xsync.DoR1(ctx, &t.locker, func() []*Buffer {
		var result []*Buffer
		for _, buf := range t.buffers {
			if buf.useMask&UseMaskDownstream != 0 {
				result = append(result, buf)
			}
		}
		return result
	})
}

func (t *BufTab) IsDeleted(ctx context.Context) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &t.locker, func() bool {
		return t.deleted
	})
}

// Delete frees the memory of every buffer, including the ones still in use.
// Buffers still held downstream have to be registered as orphans first,
// see orphan.Registry.DestroyPool.
func (t *BufTab) Delete(ctx context.Context) {
	t.locker.Do(ctx, func() {
		if t.deleted {
			return
		}
		if logger.IsTraceEnabled(ctx) {
			logger.Tracef(ctx, "deleting %v: %s", t, spew.Sdump(t.useMasksLocked()))
		}
		t.deleted = true
		for _, buf := range t.buffers {
			buf.memory.Store(nil)
		}
	})
	logger.Debugf(ctx, "deleted %v", t)
}

func (t *BufTab) useMasksLocked() map[uint64]UseMask {
	result := make(map[uint64]UseMask, len(t.buffers))
	for _, buf := range t.buffers {
		result[buf.id] = buf.useMask
	}
	return result
}
