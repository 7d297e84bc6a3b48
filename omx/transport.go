// transport.go implements the pipeline buffer wrapping an OMX buffer header.

package omx

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/hwbuftransport/buffer"
	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/hwbuftransport/types"
	"github.com/xaionaro-go/xsync"
)

// Transport is a pipeline buffer exposing the filled region of an OMX buffer
// header. Releasing it hands the header (and the additional headers, if any)
// back to the port it came from.
type Transport struct {
	buffer.Base

	locker            xsync.Mutex
	header            *BufferHeader
	port              *Port
	direction         Direction
	caps              string
	additionalHeaders []*BufferHeader
}

var _ buffer.Buffer = (*Transport)(nil)

func NewTransport(
	ctx context.Context,
	port *Port,
	hdr *BufferHeader,
) (_ret *Transport, _err error) {
	logger.Tracef(ctx, "NewTransport(%v, %v)", port, hdr)
	defer func() { logger.Tracef(ctx, "/NewTransport(%v, %v): %v", port, hdr, _err) }()
	defer func() {
		if _err != nil {
			logger.ErrorFields(ctx, fmt.Sprintf("unable to wrap the header: %v", _err), logger.BufferFields(hdr, port))
		}
	}()

	if port == nil || port.Component == nil {
		return nil, ErrNoPort{}
	}
	switch port.Direction {
	case DirectionInput, DirectionOutput:
	default:
		return nil, ErrInvalidDirection{Direction: port.Direction}
	}
	if hdr == nil || hdr.Buffer == nil {
		return nil, ErrNoPayload{Header: hdr}
	}
	end := uint64(hdr.Offset) + uint64(hdr.FilledLen)
	if end > uint64(len(hdr.Buffer)) {
		return nil, ErrFilledRangeOutOfBounds{Header: hdr}
	}

	t := &Transport{
		header:    hdr,
		port:      port,
		direction: port.Direction,
		caps:      port.Caps,
	}
	t.Base.Init(hdr.Buffer[hdr.Offset:end], t.finalize)
	return t, nil
}

func (t *Transport) String() string {
	return fmt.Sprintf("OMXTransport(%v)", t.Header())
}

// SetAdditionalHeaders attaches headers to release together with the main
// one (the other planes of a multi-planar frame). An empty list is a no-op;
// a second non-empty list is rejected.
func (t *Transport) SetAdditionalHeaders(
	ctx context.Context,
	hdrs ...*BufferHeader,
) (_err error) {
	logger.Tracef(ctx, "SetAdditionalHeaders(%d)", len(hdrs))
	defer func() { logger.Tracef(ctx, "/SetAdditionalHeaders(%d): %v", len(hdrs), _err) }()

	if len(hdrs) == 0 {
		return nil
	}
	for _, hdr := range hdrs {
		if hdr == nil {
			return ErrNoPayload{}
		}
	}
	return xsync.DoR1(ctx, &t.locker, func() error {
		if t.IsReleased() {
			return ErrAlreadyReleased{}
		}
		if len(t.additionalHeaders) != 0 {
			return ErrAdditionalHeadersAlreadySet{Count: len(t.additionalHeaders)}
		}
		t.additionalHeaders = append(make([]*BufferHeader, 0, len(hdrs)), hdrs...)
		return nil
	})
}

func (t *Transport) Header() *BufferHeader {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &t.locker, func() *BufferHeader {
		return t.header
	})
}

// AdditionalHeaders returns a copy of the additional headers.
func (t *Transport) AdditionalHeaders() []*BufferHeader {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &t.locker, func() []*BufferHeader {
		return append([]*BufferHeader(nil), t.additionalHeaders...)
	})
}

func (t *Transport) Port() *Port {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &t.locker, func() *Port {
		return t.port
	})
}

func (t *Transport) Direction() Direction {
	return t.direction
}

// Caps returns the caps of the port the header came from.
func (t *Transport) Caps() string {
	return t.caps
}

func (t *Transport) finalize(ctx context.Context) {
	logger.Tracef(ctx, "finalize(%p)", t)
	defer func() { logger.Tracef(ctx, "/finalize(%p)", t) }()

	var (
		hdr        *BufferHeader
		additional []*BufferHeader
		port       *Port
	)
	t.locker.Do(ctx, func() {
		hdr, additional, port = t.header, t.additionalHeaders, t.port
		t.header, t.additionalHeaders, t.port = nil, nil, nil
	})

	releaseHeader(ctx, port.Component, t.direction, hdr)
	for _, hdr := range additional {
		releaseHeader(ctx, port.Component, t.direction, hdr)
	}
}

func releaseHeader(
	ctx context.Context,
	component Component,
	direction Direction,
	hdr *BufferHeader,
) {
	var err error
	switch direction {
	case DirectionInput:
		logger.Tracef(ctx, "ETB: header=%v, buffer=%p, obj=%s", hdr, hdr.Buffer, types.GetObjectID(hdr))
		err = component.EmptyThisBuffer(ctx, hdr)
	case DirectionOutput:
		logger.Tracef(ctx, "FTB: header=%v, buffer=%p, obj=%s", hdr, hdr.Buffer, types.GetObjectID(hdr))
		err = component.FillThisBuffer(ctx, hdr)
	default:
		err = ErrInvalidDirection{Direction: direction}
	}
	if err != nil {
		logger.ErrorFields(ctx, fmt.Sprintf("unable to return the header to the %s port: %v", direction, err), logger.BufferFields(hdr, component))
	}
}

// IsTransport reports whether b wraps an OMX buffer header.
func IsTransport(b buffer.Buffer) bool {
	_, ok := b.(*Transport)
	return ok
}

// HeaderOf returns the header wrapped by b, or nil if b is not a transport or
// is already released.
func HeaderOf(b buffer.Buffer) *BufferHeader {
	t, ok := b.(*Transport)
	if !ok {
		return nil
	}
	return t.Header()
}
