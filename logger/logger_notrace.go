//go:build !debug_trace
// +build !debug_trace

package logger

import (
	"context"
)

// Tracef is a no-op unless built with the debug_trace tag.
func Tracef(ctx context.Context, format string, args ...any) {}

// IsTraceEnabled reports whether Tracef would emit anything; use it to skip
// building expensive trace arguments.
func IsTraceEnabled(ctx context.Context) bool {
	return false
}
