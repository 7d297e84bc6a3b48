// port_source.go implements pulling filled buffers out of an output port.

package omx

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/hwbuftransport/logger"
)

type PortSourceConfig struct {
	// Clock returns the current pipeline clock time; nil means there is no
	// clock and buffers are left without timestamps.
	Clock func() time.Duration

	// BaseTime is subtracted from the clock time.
	BaseTime time.Duration

	// LatencyCompensation is subtracted from every timestamp to account for
	// the capture lag of the hardware.
	LatencyCompensation time.Duration
}

func DefaultPortSourceConfig() PortSourceConfig {
	return PortSourceConfig{
		LatencyCompensation: 65 * time.Millisecond,
	}
}

// PortSource wraps the headers an output port reports as filled into
// transports.
type PortSource struct {
	Port   *Port
	Filled <-chan *BufferHeader
	Config PortSourceConfig
}

func NewPortSource(
	port *Port,
	filled <-chan *BufferHeader,
	cfg PortSourceConfig,
) *PortSource {
	return &PortSource{
		Port:   port,
		Filled: filled,
		Config: cfg,
	}
}

// Next waits for the next filled header and returns it wrapped. A header
// that cannot be wrapped is handed back to the port right away.
func (s *PortSource) Next(ctx context.Context) (_ret *Transport, _err error) {
	logger.Tracef(ctx, "Next")
	defer func() { logger.Tracef(ctx, "/Next: %v", _err) }()

	var hdr *BufferHeader
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case h, ok := <-s.Filled:
		if !ok {
			return nil, ErrPortClosed{Port: s.Port}
		}
		hdr = h
	}

	t, err := NewTransport(ctx, s.Port, hdr)
	if err != nil {
		if hdr != nil && s.Port != nil && s.Port.Component != nil {
			releaseHeader(ctx, s.Port.Component, s.Port.Direction, hdr)
		}
		return nil, fmt.Errorf("unable to wrap %v: %w", hdr, err)
	}
	if pts, ok := s.timestamp(); ok {
		t.SetPTS(pts)
	}
	return t, nil
}

func (s *PortSource) timestamp() (time.Duration, bool) {
	if s.Config.Clock == nil {
		return 0, false
	}
	ts := s.Config.Clock() - s.Config.BaseTime - s.Config.LatencyCompensation
	if ts < 0 {
		ts = 0
	}
	return ts, true
}
