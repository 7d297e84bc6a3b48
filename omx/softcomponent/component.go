// Package softcomponent implements an OMX component in software: it lends
// buffer headers to the client and takes them back through EmptyThisBuffer
// and FillThisBuffer, reporting completions on channels the way an OMX IL
// callback thread does.
package softcomponent

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/hwbuftransport/internal"
	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/hwbuftransport/omx"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

const (
	InputPortIndex  = 0
	OutputPortIndex = 1
)

type headerState struct {
	direction     omx.Direction
	ownedByClient bool
}

type command struct {
	direction omx.Direction
	header    *omx.BufferHeader
}

type Component struct {
	Config Config
	Counters

	locker        xsync.Mutex
	headers       map[*omx.BufferHeader]*headerState
	inputHeaders  []*omx.BufferHeader
	outputHeaders []*omx.BufferHeader
	closed        bool

	inputPort  *omx.Port
	outputPort *omx.Port

	commands        chan command
	emptyBufferDone chan *omx.BufferHeader
	fillBufferDone  chan *omx.BufferHeader
	cancelFn        context.CancelFunc
	loopDone        chan struct{}
}

var _ omx.Component = (*Component)(nil)

// New allocates the headers of both ports and starts the event loop. All
// headers start owned by the client; output headers have to be handed to
// the component with FillThisBuffer before they get filled.
func New(
	ctx context.Context,
	cfg Config,
) (_ret *Component, _err error) {
	logger.Debugf(ctx, "New(%#+v)", cfg)
	defer func() { logger.Debugf(ctx, "/New: %v", _err) }()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	total := cfg.InputBuffers + cfg.OutputBuffers
	c := &Component{
		Config:          cfg,
		headers:         make(map[*omx.BufferHeader]*headerState, total),
		commands:        make(chan command, total),
		emptyBufferDone: make(chan *omx.BufferHeader, cfg.InputBuffers),
		fillBufferDone:  make(chan *omx.BufferHeader, cfg.OutputBuffers),
		loopDone:        make(chan struct{}),
	}
	c.outputPort = &omx.Port{
		Component: c,
		Index:     OutputPortIndex,
		Direction: omx.DirectionOutput,
		Name:      "soft",
	}
	c.outputHeaders = c.allocHeaders(omx.DirectionOutput, OutputPortIndex, cfg.OutputBuffers)
	if cfg.InputBuffers > 0 {
		c.inputPort = &omx.Port{
			Component: c,
			Index:     InputPortIndex,
			Direction: omx.DirectionInput,
			Name:      "soft",
		}
		c.inputHeaders = c.allocHeaders(omx.DirectionInput, InputPortIndex, cfg.InputBuffers)
	}

	ctx, cancelFn := context.WithCancel(ctx)
	c.cancelFn = cancelFn
	observability.Go(ctx, func(ctx context.Context) {
		c.loop(ctx)
	})
	return c, nil
}

func (c *Component) allocHeaders(
	direction omx.Direction,
	portIndex uint32,
	count int,
) []*omx.BufferHeader {
	hdrs := make([]*omx.BufferHeader, 0, count)
	for i := 0; i < count; i++ {
		hdr := &omx.BufferHeader{
			Buffer:    make([]byte, c.Config.BufferSize),
			PortIndex: portIndex,
		}
		c.headers[hdr] = &headerState{
			direction:     direction,
			ownedByClient: true,
		}
		hdrs = append(hdrs, hdr)
	}
	return hdrs
}

func (c *Component) String() string {
	return fmt.Sprintf("SoftComponent(in:%d; out:%d)", c.Config.InputBuffers, c.Config.OutputBuffers)
}

// InputPort returns nil if the component has no input port.
func (c *Component) InputPort() *omx.Port {
	return c.inputPort
}

func (c *Component) OutputPort() *omx.Port {
	return c.outputPort
}

func (c *Component) InputHeaders() []*omx.BufferHeader {
	return append([]*omx.BufferHeader(nil), c.inputHeaders...)
}

func (c *Component) OutputHeaders() []*omx.BufferHeader {
	return append([]*omx.BufferHeader(nil), c.outputHeaders...)
}

// EmptyBufferDone reports input headers the component is done with. The
// channel is closed when the component stops.
func (c *Component) EmptyBufferDone() <-chan *omx.BufferHeader {
	return c.emptyBufferDone
}

// FillBufferDone reports filled output headers. The channel is closed when
// the component stops.
func (c *Component) FillBufferDone() <-chan *omx.BufferHeader {
	return c.fillBufferDone
}

func (c *Component) EmptyThisBuffer(
	ctx context.Context,
	hdr *omx.BufferHeader,
) (_err error) {
	logger.Tracef(ctx, "EmptyThisBuffer(%v)", hdr)
	defer func() { logger.Tracef(ctx, "/EmptyThisBuffer(%v): %v", hdr, _err) }()
	return c.submit(ctx, omx.DirectionInput, hdr)
}

func (c *Component) FillThisBuffer(
	ctx context.Context,
	hdr *omx.BufferHeader,
) (_err error) {
	logger.Tracef(ctx, "FillThisBuffer(%v)", hdr)
	defer func() { logger.Tracef(ctx, "/FillThisBuffer(%v): %v", hdr, _err) }()
	return c.submit(ctx, omx.DirectionOutput, hdr)
}

func (c *Component) submit(
	ctx context.Context,
	direction omx.Direction,
	hdr *omx.BufferHeader,
) error {
	err := xsync.DoR1(ctx, &c.locker, func() error {
		if c.closed {
			return ErrClosed{}
		}
		state, ok := c.headers[hdr]
		if !ok {
			return ErrUnknownHeader{Header: hdr}
		}
		if state.direction != direction {
			return ErrWrongPort{Header: hdr, Expected: state.direction}
		}
		if !state.ownedByClient {
			return ErrHeaderNotOwnedByClient{Header: hdr}
		}
		state.ownedByClient = false
		switch direction {
		case omx.DirectionInput:
			c.Counters.EmptyThisBuffer.Inc()
		case omx.DirectionOutput:
			c.Counters.FillThisBuffer.Inc()
		}
		// every header is queued at most once, so this never blocks
		c.commands <- command{direction: direction, header: hdr}
		return nil
	})
	if err != nil {
		c.Counters.Rejected.Inc()
	}
	return err
}

// IsOwnedByClient reports whether the client currently holds hdr.
func (c *Component) IsOwnedByClient(ctx context.Context, hdr *omx.BufferHeader) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &c.locker, func() bool {
		state, ok := c.headers[hdr]
		return ok && state.ownedByClient
	})
}

// Close stops the event loop; headers still owned by the component are
// never returned.
func (c *Component) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	err := xsync.DoR1(ctx, &c.locker, func() error {
		if c.closed {
			return ErrClosed{}
		}
		c.closed = true
		return nil
	})
	if err != nil {
		return err
	}
	c.cancelFn()
	select {
	case <-c.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Component) loop(ctx context.Context) {
	logger.Debugf(ctx, "loop")
	defer logger.Debugf(ctx, "/loop")
	defer close(c.loopDone)
	defer close(c.fillBufferDone)
	defer close(c.emptyBufferDone)

	isSource := c.inputPort == nil
	var tick <-chan time.Time
	if isSource && c.Config.FrameInterval > 0 {
		ticker := time.NewTicker(c.Config.FrameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var (
		freeOutputs   []*omx.BufferHeader
		pendingInputs []*omx.BufferHeader
		seq           uint64
	)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.commands:
			switch cmd.direction {
			case omx.DirectionInput:
				pendingInputs = append(pendingInputs, cmd.header)
			case omx.DirectionOutput:
				freeOutputs = append(freeOutputs, cmd.header)
			}
		case <-tick:
			if len(freeOutputs) > 0 {
				c.fill(ctx, freeOutputs[0], seq)
				seq++
				freeOutputs = freeOutputs[1:]
			}
			continue
		}

		switch {
		case isSource:
			if tick != nil {
				continue
			}
			for _, out := range freeOutputs {
				c.fill(ctx, out, seq)
				seq++
			}
			freeOutputs = freeOutputs[:0]
		default:
			for len(pendingInputs) > 0 && len(freeOutputs) > 0 {
				c.process(ctx, pendingInputs[0], freeOutputs[0], seq)
				seq++
				pendingInputs = pendingInputs[1:]
				freeOutputs = freeOutputs[1:]
			}
		}
	}
}

func (c *Component) fill(ctx context.Context, out *omx.BufferHeader, seq uint64) {
	n := 0
	if c.Config.Fill != nil {
		n = c.Config.Fill(ctx, seq, out.Buffer)
	}
	c.emitFilled(ctx, out, n, seq)
}

func (c *Component) process(ctx context.Context, in, out *omx.BufferHeader, seq uint64) {
	var payload []byte
	if end := uint64(in.Offset) + uint64(in.FilledLen); end <= uint64(len(in.Buffer)) {
		payload = in.Buffer[in.Offset:end]
	}
	var n int
	if c.Config.Process != nil {
		n = c.Config.Process(ctx, payload, out.Buffer)
	} else {
		n = copy(out.Buffer, payload)
	}
	out.Flags = in.Flags
	c.emitEmptied(ctx, in)
	c.emitFilled(ctx, out, n, seq)
}

func (c *Component) emitEmptied(ctx context.Context, in *omx.BufferHeader) {
	in.FilledLen = 0
	in.Offset = 0
	c.giveBack(ctx, in)
	c.Counters.EmptyBufferDone.Inc()
	c.emptyBufferDone <- in
}

func (c *Component) emitFilled(ctx context.Context, out *omx.BufferHeader, n int, seq uint64) {
	switch {
	case n < 0:
		n = 0
	case n > len(out.Buffer):
		n = len(out.Buffer)
	}
	out.Offset = 0
	out.FilledLen = uint32(n)
	out.TimeStamp = int64(seq)
	c.giveBack(ctx, out)
	c.Counters.FillBufferDone.Inc()
	c.fillBufferDone <- out
}

func (c *Component) giveBack(ctx context.Context, hdr *omx.BufferHeader) {
	c.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		state, ok := c.headers[hdr]
		internal.Assert(ctx, ok, hdr)
		state.ownedByClient = true
	})
}
