// Package internal contains helpers shared by the transport packages.
package internal

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/hwbuftransport/logger"
)

// Misuse reports a violated calling contract: the error is logged and then
// raised as a panic with err as the value. It never returns.
func Misuse(ctx context.Context, err error) {
	logger.Errorf(ctx, "contract violation: %v", err)
	panic(err)
}

func Assert(
	ctx context.Context,
	mustBeTrue bool,
	extraArgs ...any,
) {
	if mustBeTrue {
		return
	}

	Misuse(ctx, fmt.Errorf("assertion failed: %v", extraArgs))
}
