// bytes.go implements size-tiered pools of byte slabs.

package pool

import (
	"math/bits"
)

const (
	minSlabShift = 12 // 4 KiB
	maxSlabShift = 24 // 16 MiB
)

// Slab is a piece of memory handed out by Bytes. Data has the requested
// length; the full capacity is kept to return the slab to its tier.
type Slab struct {
	Data []byte
	tier int
}

// Bytes is a set of pools of power-of-two sized slabs. Requests larger than
// the biggest tier are allocated directly and never pooled.
type Bytes struct {
	tiers [maxSlabShift - minSlabShift + 1]*Pool[[]byte]
}

func NewBytes() *Bytes {
	b := &Bytes{}
	for idx := range b.tiers {
		size := 1 << (minSlabShift + idx)
		b.tiers[idx] = NewPool(
			func() *[]byte {
				buf := make([]byte, size)
				return &buf
			},
			func(buf *[]byte) {
				*buf = (*buf)[:cap(*buf)]
			},
		)
	}
	return b
}

func tierFor(size int) int {
	if size <= 1<<minSlabShift {
		return 0
	}
	shift := bits.Len(uint(size - 1))
	if shift > maxSlabShift {
		return -1
	}
	return shift - minSlabShift
}

// Get returns a zeroed slab with len(Data) == size.
func (b *Bytes) Get(size int) *Slab {
	tier := tierFor(size)
	if tier < 0 {
		return &Slab{Data: make([]byte, size), tier: -1}
	}
	buf := b.tiers[tier].Get()
	data := (*buf)[:size]
	clear(data)
	return &Slab{Data: data, tier: tier}
}

// Put returns the slab to its tier. The slab must not be used afterwards.
func (b *Bytes) Put(slab *Slab) {
	if slab == nil || slab.tier < 0 {
		return
	}
	buf := slab.Data[:cap(slab.Data)]
	slab.Data = nil
	b.tiers[slab.tier].Put(&buf)
}

// Allocated returns how many slabs of the pooled tiers were allocated.
func (b *Bytes) Allocated() uint64 {
	var total uint64
	for _, tier := range b.tiers {
		total += tier.Allocated()
	}
	return total
}
