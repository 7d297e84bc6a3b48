package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type errTest struct{}

func (errTest) Error() string { return "test" }

func TestMisusePanicsWithTheError(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok, "panic value is not an error: %#+v", r)
		require.True(t, errors.Is(err, errTest{}))
	}()
	Misuse(context.Background(), errTest{})
	t.Fatal("Misuse returned")
}

func TestAssert(t *testing.T) {
	ctx := context.Background()
	require.NotPanics(t, func() { Assert(ctx, true) })
	require.Panics(t, func() { Assert(ctx, false, "value", 1) })
}
