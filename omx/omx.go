// Package omx wraps OpenMAX IL buffer headers into pipeline buffers.
//
// A header emitted by a component's port is wrapped into a Transport; when
// the pipeline drops the last reference to it, the header is handed back to
// the component: EmptyThisBuffer for input ports (the data was consumed,
// refill it) and FillThisBuffer for output ports (the frame was consumed,
// fill it again).
package omx

import (
	"context"
	"fmt"
)

type Direction int

const (
	UndefinedDirection Direction = iota
	DirectionInput
	DirectionOutput
	EndOfDirection
)

func (d Direction) String() string {
	switch d {
	case UndefinedDirection:
		return "undefined"
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	}
	return fmt.Sprintf("unknown_direction_%d", int(d))
}

// BufferHeader is the OMX_BUFFERHEADERTYPE equivalent: a buffer owned by the
// component and lent to the client between callbacks.
type BufferHeader struct {
	Buffer     []byte
	FilledLen  uint32
	Offset     uint32
	Flags      uint32
	TimeStamp  int64
	PortIndex  uint32
	AppPrivate any
}

func (hdr *BufferHeader) String() string {
	if hdr == nil {
		return "BufferHeader(nil)"
	}
	return fmt.Sprintf("BufferHeader(%p; port:%d; filled:%d)", hdr, hdr.PortIndex, hdr.FilledLen)
}

// Component is the hardware component buffers are returned to. Both calls
// are asynchronous: errors of the actual processing are reported through
// the component's own event channel.
type Component interface {
	EmptyThisBuffer(ctx context.Context, hdr *BufferHeader) error
	FillThisBuffer(ctx context.Context, hdr *BufferHeader) error
}

type Port struct {
	Component Component
	Index     uint32
	Direction Direction
	Name      string
	Caps      string
}

func (p *Port) String() string {
	if p == nil {
		return "Port(nil)"
	}
	if p.Name != "" {
		return fmt.Sprintf("Port(%s:%d:%s)", p.Name, p.Index, p.Direction)
	}
	return fmt.Sprintf("Port(%d:%s)", p.Index, p.Direction)
}
