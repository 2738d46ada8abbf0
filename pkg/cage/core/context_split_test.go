package core_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/graybat-go/cage/pkg/cage/core"
	"github.com/graybat-go/cage/pkg/cage/internal/substratetest"
	"github.com/graybat-go/cage/pkg/cage/types"
)

func TestSplitContextPartitionsByRankParity(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(4, "split")

	results := make([]types.Context, 4)
	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		half, err := p.SplitContext(p.InitialContext())
		if err != nil {
			return err
		}
		results[p.LocalVAddr()] = half
		return nil
	})
	requireAllNil(t, errs)

	// ranks 0,2 (even) share one context; ranks 1,3 (odd) share another.
	assert.True(t, results[0].Valid())
	assert.Equal(t, results[0].ID(), results[2].ID())
	assert.Equal(t, results[1].ID(), results[3].ID())
	assert.NotEqual(t, results[0].ID(), results[1].ID())
	assert.Equal(t, 2, results[0].Size())
	assert.Equal(t, 2, results[1].Size())
}

func TestSplitContextAllReduceIsScopedToHalf(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(4, "split-allreduce")

	var mu sync.Mutex
	sums := make(map[types.VAddr]uint32)
	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		half, err := p.SplitContext(p.InitialContext())
		if err != nil {
			return err
		}
		in := core.EncodeUint32(uint32(half.Rank()))
		var out []byte
		if err := p.AllReduce(half, core.SumUint32, in, &out); err != nil {
			return err
		}
		mu.Lock()
		sums[p.LocalVAddr()] = core.DecodeUint32(out)
		mu.Unlock()
		return nil
	})
	requireAllNil(t, errs)

	// each half has ranks {0,1}, so sum is 1 on both halves.
	for v, sum := range sums {
		assert.Equalf(t, uint32(1), sum, "peer %d", v)
	}
}

func TestCreateContextExcludesNonMembers(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(3, "create")

	var wg sync.WaitGroup
	results := make([]types.Context, 3)
	subset := []types.VAddr{0, 1}
	for _, v := range []types.VAddr{0, 1, 2} {
		wg.Add(1)
		go func(v types.VAddr) {
			defer wg.Done()
			p := cl.Peer(v)
			ctx, err := p.CreateContext(subset, p.InitialContext())
			require.NoError(t, err)
			results[v] = ctx
		}(v)
	}
	wg.Wait()

	assert.True(t, results[0].Valid())
	assert.True(t, results[1].Valid())
	assert.False(t, results[2].Valid())
}
