package omx

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"

	"github.com/facebookincubator/go-belt/tool/logger/implementation/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwbuftransport/logger"
)

// fakeComponent implements Component and records every returned header.
type fakeComponent struct {
	mu    sync.Mutex
	etb   []*BufferHeader
	ftb   []*BufferHeader
	etbFn func(*BufferHeader) error
}

func (c *fakeComponent) EmptyThisBuffer(ctx context.Context, hdr *BufferHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.etb = append(c.etb, hdr)
	if c.etbFn != nil {
		return c.etbFn(hdr)
	}
	return nil
}

func (c *fakeComponent) FillThisBuffer(ctx context.Context, hdr *BufferHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ftb = append(c.ftb, hdr)
	return nil
}

func (c *fakeComponent) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.etb), len(c.ftb)
}

func newHeader(size int, filled uint32) *BufferHeader {
	return &BufferHeader{
		Buffer:    make([]byte, size),
		FilledLen: filled,
	}
}

func TestTransportOutputPortRoundTrip(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComponent{}
	port := &Port{Component: comp, Index: 1, Direction: DirectionOutput, Caps: "video/x-raw,format=NV12"}
	hdr := newHeader(16, 10)
	hdr.Offset = 2
	copy(hdr.Buffer[2:], "abcdefghij")

	tr, err := NewTransport(ctx, port, hdr)
	require.NoError(t, err)
	require.Equal(t, 10, tr.Size())
	require.Equal(t, "abcdefghij", string(tr.Data()))
	require.Equal(t, DirectionOutput, tr.Direction())
	require.Equal(t, port, tr.Port())
	require.Equal(t, "video/x-raw,format=NV12", tr.Caps())
	require.True(t, IsTransport(tr))
	require.Equal(t, hdr, HeaderOf(tr))

	tr.Unref(ctx)
	etb, ftb := comp.counts()
	require.Zero(t, etb)
	require.Equal(t, 1, ftb)
	require.Equal(t, hdr, comp.ftb[0])
	require.Nil(t, HeaderOf(tr))
	require.Nil(t, tr.Port())
}

func TestTransportInputPortUsesEmptyThisBuffer(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComponent{}
	port := &Port{Component: comp, Index: 0, Direction: DirectionInput}

	tr, err := NewTransport(ctx, port, newHeader(8, 8))
	require.NoError(t, err)
	tr.Unref(ctx)

	etb, ftb := comp.counts()
	require.Equal(t, 1, etb)
	require.Zero(t, ftb)
}

func TestTransportReleaseErrorsAreNotPropagated(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComponent{etbFn: func(*BufferHeader) error { return errors.New("hardware is busy") }}
	port := &Port{Component: comp, Direction: DirectionInput}

	tr, err := NewTransport(ctx, port, newHeader(8, 8))
	require.NoError(t, err)
	require.NoError(t, tr.SetAdditionalHeaders(ctx, newHeader(8, 0)))
	tr.Unref(ctx)

	etb, _ := comp.counts()
	require.Equal(t, 2, etb)
}

func TestTransportConstructionFailures(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComponent{}
	port := &Port{Component: comp, Direction: DirectionOutput}

	_, err := NewTransport(ctx, port, nil)
	require.ErrorAs(t, err, &ErrNoPayload{})

	_, err = NewTransport(ctx, port, &BufferHeader{FilledLen: 0})
	require.ErrorAs(t, err, &ErrNoPayload{})

	hdr := newHeader(4, 4)
	hdr.Offset = 1
	_, err = NewTransport(ctx, port, hdr)
	require.ErrorAs(t, err, &ErrFilledRangeOutOfBounds{})

	_, err = NewTransport(ctx, nil, newHeader(4, 4))
	require.ErrorAs(t, err, &ErrNoPort{})

	_, err = NewTransport(ctx, &Port{Direction: DirectionOutput}, newHeader(4, 4))
	require.ErrorAs(t, err, &ErrNoPort{})

	_, err = NewTransport(ctx, &Port{Component: comp}, newHeader(4, 4))
	require.ErrorAs(t, err, &ErrInvalidDirection{})

	etb, ftb := comp.counts()
	require.Zero(t, etb+ftb, "a failed construction must not release anything")
}

func TestTransportAdditionalHeaders(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		comp := &fakeComponent{}
		port := &Port{Component: comp, Direction: DirectionOutput}
		tr, err := NewTransport(ctx, port, newHeader(8, 8))
		require.NoError(t, err)
		require.NoError(t, tr.SetAdditionalHeaders(ctx))
		require.Empty(t, tr.AdditionalHeaders())
		tr.Unref(ctx)
		_, ftb := comp.counts()
		require.Equal(t, 1, ftb)
	})

	for _, direction := range []Direction{DirectionInput, DirectionOutput} {
		t.Run(direction.String(), func(t *testing.T) {
			comp := &fakeComponent{}
			port := &Port{Component: comp, Direction: direction}
			main := newHeader(8, 8)
			tr, err := NewTransport(ctx, port, main)
			require.NoError(t, err)

			extra := []*BufferHeader{newHeader(4, 4), newHeader(4, 4), newHeader(4, 4)}
			require.NoError(t, tr.SetAdditionalHeaders(ctx, extra...))
			require.Equal(t, extra, tr.AdditionalHeaders())

			err = tr.SetAdditionalHeaders(ctx, newHeader(4, 4))
			require.ErrorAs(t, err, &ErrAdditionalHeadersAlreadySet{})
			require.Equal(t, extra, tr.AdditionalHeaders())

			tr.Unref(ctx)
			etb, ftb := comp.counts()
			var released []*BufferHeader
			if direction == DirectionInput {
				require.Zero(t, ftb)
				require.Equal(t, 4, etb)
				released = comp.etb
			} else {
				require.Zero(t, etb)
				require.Equal(t, 4, ftb)
				released = comp.ftb
			}
			require.Equal(t, append([]*BufferHeader{main}, extra...), released)
		})
	}

	t.Run("after release", func(t *testing.T) {
		comp := &fakeComponent{}
		port := &Port{Component: comp, Direction: DirectionOutput}
		tr, err := NewTransport(ctx, port, newHeader(8, 8))
		require.NoError(t, err)
		tr.Unref(ctx)
		require.ErrorAs(t, tr.SetAdditionalHeaders(ctx, newHeader(4, 4)), &ErrAlreadyReleased{})
		require.ErrorAs(t, tr.SetAdditionalHeaders(ctx, nil), &ErrNoPayload{})
	})
}

func TestTransportReleaseExactlyOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComponent{}
	port := &Port{Component: comp, Direction: DirectionOutput}

	const rounds = 50
	for round := 0; round < rounds; round++ {
		tr, err := NewTransport(ctx, port, newHeader(8, 8))
		require.NoError(t, err)
		require.NoError(t, tr.SetAdditionalHeaders(ctx, newHeader(8, 8)))

		const holders = 16
		for i := 1; i < holders; i++ {
			tr.Ref(ctx)
		}
		var wg sync.WaitGroup
		for i := 0; i < holders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tr.Unref(ctx)
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Release(ctx)
		}()
		wg.Wait()
	}

	_, ftb := comp.counts()
	require.Equal(t, 2*rounds, ftb)
}

func TestTransportConstructionFailureIsLogged(t *testing.T) {
	var logBuf bytes.Buffer
	l := stdlib.New(log.New(&logBuf, "", 0), logger.LevelError)
	ctx := logger.CtxWithLogger(context.Background(), l)

	hdr := &BufferHeader{PortIndex: 3}
	_, err := NewTransport(ctx, &Port{Component: &fakeComponent{}, Direction: DirectionOutput}, hdr)
	require.ErrorAs(t, err, &ErrNoPayload{})
	require.Contains(t, logBuf.String(), "unable to wrap the header")
	require.Contains(t, logBuf.String(), hdr.String())
}
