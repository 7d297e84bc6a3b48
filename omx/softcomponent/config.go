package softcomponent

import (
	"context"
	"time"
)

const (
	MinBuffers        = 1
	MaxBuffers        = 10
	DefaultBufferSize = 4096
)

// FillFunc produces the next frame into out and returns the amount of bytes
// written.
type FillFunc func(ctx context.Context, seq uint64, out []byte) int

// ProcessFunc consumes an input payload and writes the result into out,
// returning the amount of bytes written.
type ProcessFunc func(ctx context.Context, in, out []byte) int

type Config struct {
	// InputBuffers is the amount of input port headers; zero means the
	// component has no input port and acts as a source.
	InputBuffers int

	// OutputBuffers is the amount of output port headers.
	OutputBuffers int

	BufferSize int

	// Fill is used by a source component (no input port). Nil means the
	// output buffers are returned with a zero filled length.
	Fill FillFunc

	// Process is used when there is an input port. Nil means the input is
	// copied as is.
	Process ProcessFunc

	// FrameInterval paces a source component; zero means every returned
	// output header is refilled right away.
	FrameInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		OutputBuffers: 4,
		BufferSize:    DefaultBufferSize,
	}
}

func (cfg Config) validate() error {
	if cfg.InputBuffers != 0 && (cfg.InputBuffers < MinBuffers || cfg.InputBuffers > MaxBuffers) {
		return ErrInvalidBufferCount{Port: "input", Count: cfg.InputBuffers, Min: MinBuffers, Max: MaxBuffers}
	}
	if cfg.OutputBuffers < MinBuffers || cfg.OutputBuffers > MaxBuffers {
		return ErrInvalidBufferCount{Port: "output", Count: cfg.OutputBuffers, Min: MinBuffers, Max: MaxBuffers}
	}
	if cfg.BufferSize <= 0 {
		return ErrInvalidBufferSize{Size: cfg.BufferSize}
	}
	return nil
}
