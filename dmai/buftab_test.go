package dmai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufTabGetFreeBuf(t *testing.T) {
	ctx := context.Background()
	bt, err := NewBufTab(ctx, 2, 64)
	require.NoError(t, err)
	require.Equal(t, 2, bt.NumBufs())
	require.Equal(t, 2, bt.NumFree(ctx))

	b0, err := bt.GetFreeBuf(ctx)
	require.NoError(t, err)
	require.Equal(t, UseMaskCodec, b0.UseMask(ctx))
	require.Equal(t, bt, b0.BufTab())
	require.Len(t, b0.UserPtr(), 64)

	b1, err := bt.GetFreeBuf(ctx)
	require.NoError(t, err)
	require.NotEqual(t, b0, b1)

	_, err = bt.GetFreeBuf(ctx)
	require.True(t, errors.As(err, &ErrNoFreeBuffer{}))

	b0.FreeUseMask(ctx, UseMaskCodec)
	require.True(t, bt.IsFree(ctx, b0))
	require.Equal(t, 1, bt.NumFree(ctx))

	bt.FreeAll(ctx, UseMaskCodec)
	require.Equal(t, 2, bt.NumFree(ctx))
}

func TestBufTabInvalidParams(t *testing.T) {
	ctx := context.Background()
	_, err := NewBufTab(ctx, 0, 64)
	require.ErrorAs(t, err, &ErrInvalidNumBufs{})
	_, err = NewBufTab(ctx, 1, 0)
	require.ErrorAs(t, err, &ErrInvalidSize{})
}

func TestBufTabInUseDownstreamAndDelete(t *testing.T) {
	ctx := context.Background()
	bt, err := NewBufTab(ctx, 3, 16)
	require.NoError(t, err)

	bt.GetBuf(0).AddUseMask(ctx, UseMaskDownstream)
	bt.GetBuf(2).AddUseMask(ctx, UseMaskDownstream|UseMaskCodec)
	require.Equal(t, []*Buffer{bt.GetBuf(0), bt.GetBuf(2)}, bt.InUseDownstream(ctx))

	bt.Delete(ctx)
	require.True(t, bt.IsDeleted(ctx))
	for idx := 0; idx < bt.NumBufs(); idx++ {
		require.Nil(t, bt.GetBuf(idx).UserPtr())
	}
	_, err = bt.GetFreeBuf(ctx)
	require.ErrorAs(t, err, &ErrBufTabDeleted{})

	// no-op on a deleted BufTab
	bt.GetBuf(0).FreeUseMask(ctx, UseMaskDownstream)
	require.Equal(t, UseMaskDownstream, bt.GetBuf(0).UseMask(ctx))
	require.Equal(t, uint64(1), bt.lateFrees.Load())
	bt.Delete(ctx)
}

func TestStandaloneBuffer(t *testing.T) {
	ctx := context.Background()
	_, err := NewBuffer(ctx, 0)
	require.ErrorAs(t, err, &ErrInvalidSize{})

	buf, err := NewBuffer(ctx, 100)
	require.NoError(t, err)
	require.Nil(t, buf.BufTab())
	require.Len(t, buf.UserPtr(), 100)
	require.Zero(t, buf.UseMask(ctx))

	require.NoError(t, buf.Delete(ctx))
	require.Nil(t, buf.UserPtr())
	require.NoError(t, buf.Delete(ctx))

	bt, err := NewBufTab(ctx, 1, 8)
	require.NoError(t, err)
	require.ErrorAs(t, bt.GetBuf(0).Delete(ctx), &ErrBufferInBufTab{})
}
