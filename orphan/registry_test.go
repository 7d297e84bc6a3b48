package orphan

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	name     string
	inUse    []string
	deleted  bool
	released []string
}

func (p *fakePool) String() string { return p.name }

func (p *fakePool) InUseDownstream(context.Context) []string {
	return append([]string(nil), p.inUse...)
}

func TestRegistryOrphanOrdering(t *testing.T) {
	ctx := context.Background()
	r := New[string]()
	pool := &fakePool{name: "P1", inUse: []string{"A", "B"}}

	require.Equal(t, 2, r.RegisterOrphans(ctx, pool))
	require.Equal(t, 2, r.Len(ctx))

	orphaned := r.ReleaseUnlessOrphaned(ctx, "A", func(context.Context) {
		t.Fatal("must not touch the memory of an orphaned buffer")
	})
	require.True(t, orphaned)
	require.Equal(t, 1, r.Len(ctx))

	// B is still pending until its own release
	require.True(t, r.IsOrphaned(ctx, "B"))
	require.False(t, r.IsOrphaned(ctx, "B"))
	require.Zero(t, r.Len(ctx))

	if diff := cmp.Diff(Stats{Registered: 2, Consumed: 2}, r.Stats()); diff != "" {
		t.Fatalf("unexpected stats (-want +got):\n%s", diff)
	}
	require.Zero(t, r.Stats().Pending())
}

func TestRegistryReleaseWhenNotOrphaned(t *testing.T) {
	ctx := context.Background()
	r := New[string]()
	pool := &fakePool{name: "P1"}

	orphaned := r.ReleaseUnlessOrphaned(ctx, "A", func(context.Context) {
		pool.released = append(pool.released, "A")
	})
	require.False(t, orphaned)
	require.Equal(t, []string{"A"}, pool.released)
	require.False(t, r.IsOrphaned(ctx, "unknown"))
}

func TestRegistryDestroyPool(t *testing.T) {
	ctx := context.Background()
	r := New[string]()
	pool := &fakePool{name: "P1", inUse: []string{"A"}}

	r.DestroyPool(ctx, pool, func(context.Context) {
		// the orphans have to be known before the storage goes away
		require.Equal(t, 1, len(r.entries))
		pool.deleted = true
	})
	require.True(t, pool.deleted)
	require.True(t, r.IsOrphaned(ctx, "A"))
}

func TestRegistryDoubleRegistrationCountsOnce(t *testing.T) {
	ctx := context.Background()
	r := New[string]()
	pool := &fakePool{name: "P1", inUse: []string{"A"}}

	require.Equal(t, 1, r.RegisterOrphans(ctx, pool))
	require.Equal(t, 0, r.RegisterOrphans(ctx, pool))
	require.Equal(t, uint64(1), r.Stats().Pending())
}

func TestRegistryConcurrentPools(t *testing.T) {
	ctx := context.Background()
	r := New[string]()

	const pools = 16
	var wg sync.WaitGroup
	for i := 0; i < pools; i++ {
		pool := &fakePool{
			name:  string(rune('a' + i)),
			inUse: []string{string(rune('a'+i)) + "1", string(rune('a'+i)) + "2"},
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RegisterOrphans(ctx, pool)
			require.True(t, r.IsOrphaned(ctx, pool.inUse[0]))
		}()
	}
	wg.Wait()

	var left []string
	for h := range r.entries {
		left = append(left, h)
	}
	sort.Strings(left)
	require.Len(t, left, pools)
	for _, h := range left {
		require.Equal(t, byte('2'), h[len(h)-1])
	}
}
