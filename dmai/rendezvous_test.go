package dmai

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRendezvousForceWakesAllWaiters(t *testing.T) {
	ctx := context.Background()
	rv := NewRendezvous()

	const waiters = 8
	var ready, done sync.WaitGroup
	for i := 0; i < waiters; i++ {
		ready.Add(1)
		done.Add(1)
		ch := rv.WaitChan()
		go func() {
			defer done.Done()
			ready.Done()
			<-ch
		}()
	}
	ready.Wait()
	rv.Force()
	done.Wait()
	require.Equal(t, uint64(1), rv.ForceCount())

	// a past Force does not release future waiters
	waitCtx, cancelFn := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancelFn()
	require.ErrorIs(t, rv.Wait(waitCtx), context.DeadlineExceeded)
}

func TestRendezvousWait(t *testing.T) {
	ctx := context.Background()
	rv := NewRendezvous()

	errCh := make(chan error, 1)
	ch := rv.WaitChan()
	go func() {
		errCh <- rv.Wait(ctx)
	}()
	for {
		// Wait takes its own channel; keep forcing until it is woken
		rv.Force()
		select {
		case err := <-errCh:
			require.NoError(t, err)
			<-ch
			return
		case <-time.After(time.Millisecond):
		}
	}
}
