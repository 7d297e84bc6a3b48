package softcomponent

import (
	"go.uber.org/atomic"
)

type Counters struct {
	EmptyThisBuffer atomic.Uint64
	FillThisBuffer  atomic.Uint64
	EmptyBufferDone atomic.Uint64
	FillBufferDone  atomic.Uint64
	Rejected        atomic.Uint64
}

type Stats struct {
	EmptyThisBuffer uint64
	FillThisBuffer  uint64
	EmptyBufferDone uint64
	FillBufferDone  uint64
	Rejected        uint64
}

func (c *Counters) Stats() Stats {
	return Stats{
		EmptyThisBuffer: c.EmptyThisBuffer.Load(),
		FillThisBuffer:  c.FillThisBuffer.Load(),
		EmptyBufferDone: c.EmptyBufferDone.Load(),
		FillBufferDone:  c.FillBufferDone.Load(),
		Rejected:        c.Rejected.Load(),
	}
}
