//go:build debug_trace
// +build debug_trace

package logger

import (
	"context"
	"testing"

	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/stretchr/testify/require"
)

func TestIsTraceEnabled(t *testing.T) {
	ctx := CtxWithLogger(context.Background(), logrus.Default().WithLevel(LevelTrace))
	require.True(t, IsTraceEnabled(ctx))

	ctx = CtxWithLogger(context.Background(), logrus.Default().WithLevel(LevelDebug))
	require.False(t, IsTraceEnabled(ctx))
}
