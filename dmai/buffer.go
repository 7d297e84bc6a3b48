// buffer.go implements the hardware buffer handle.

package dmai

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/hwbuftransport/pool"
)

// UseMask is a set of bits, one per party currently using a BufTab buffer.
// A buffer with an empty mask is free.
type UseMask uint32

const (
	UseMaskCodec      = UseMask(1 << 0)
	UseMaskDisplay    = UseMask(1 << 1)
	UseMaskDownstream = UseMask(1 << 8)
)

var (
	standaloneMemory = pool.NewBytes()
	nextBufferID     atomic.Uint64
)

// Buffer is a handle to a piece of hardware-accessible memory. It either
// belongs to a BufTab or is standalone.
type Buffer struct {
	id     uint64
	size   int
	memory atomic.Pointer[[]byte]
	slab   *pool.Slab
	bufTab *BufTab

	// useMask is guarded by bufTab.locker.
	useMask UseMask
}

func newBuffer(memory []byte, bufTab *BufTab) *Buffer {
	buf := &Buffer{
		id:     nextBufferID.Add(1),
		size:   len(memory),
		bufTab: bufTab,
	}
	buf.memory.Store(&memory)
	return buf
}

// NewBuffer allocates a standalone buffer. It has to be freed with Delete.
func NewBuffer(ctx context.Context, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, ErrInvalidSize{Size: size}
	}
	slab := standaloneMemory.Get(size)
	buf := newBuffer(slab.Data, nil)
	buf.slab = slab
	logger.Tracef(ctx, "NewBuffer(%d): %v", size, buf)
	return buf, nil
}

func (buf *Buffer) String() string {
	if buf == nil {
		return "Buffer(nil)"
	}
	return fmt.Sprintf("Buffer#%d", buf.id)
}

func (buf *Buffer) ID() uint64 {
	return buf.id
}

// UserPtr returns the memory of the buffer, or nil if it was freed.
func (buf *Buffer) UserPtr() []byte {
	if buf == nil {
		return nil
	}
	memory := buf.memory.Load()
	if memory == nil {
		return nil
	}
	return *memory
}

func (buf *Buffer) Size() int {
	return buf.size
}

// BufTab returns the pool the buffer belongs to, or nil for a standalone buffer.
func (buf *Buffer) BufTab() *BufTab {
	return buf.bufTab
}

func (buf *Buffer) UseMask(ctx context.Context) UseMask {
	if buf.bufTab == nil {
		return 0
	}
	var mask UseMask
	buf.bufTab.locker.Do(ctx, func() {
		mask = buf.useMask
	})
	return mask
}

// AddUseMask marks the buffer as used by the parties in mask.
func (buf *Buffer) AddUseMask(ctx context.Context, mask UseMask) {
	if buf.bufTab == nil {
		return
	}
	buf.bufTab.locker.Do(ctx, func() {
		buf.useMask |= mask
	})
}

// FreeUseMask clears the bits of mask; once the mask is empty the buffer is
// back in the free set of its BufTab.
func (buf *Buffer) FreeUseMask(ctx context.Context, mask UseMask) {
	if buf.bufTab == nil {
		return
	}
	buf.bufTab.locker.Do(ctx, func() {
		if buf.bufTab.deleted {
			buf.bufTab.lateFrees.Add(1)
			logger.WarnFields(ctx, "freeing the use mask of a buffer of a deleted BufTab", logger.BufferFields(buf, buf.bufTab))
			return
		}
		buf.useMask &^= mask
	})
}

// Delete frees a standalone buffer.
func (buf *Buffer) Delete(ctx context.Context) error {
	if buf.bufTab != nil {
		return ErrBufferInBufTab{Buffer: buf}
	}
	if buf.memory.Swap(nil) == nil {
		logger.Warnf(ctx, "%v is already deleted", buf)
		return nil
	}
	logger.Tracef(ctx, "deleting %v", buf)
	standaloneMemory.Put(buf.slab)
	buf.slab = nil
	return nil
}
