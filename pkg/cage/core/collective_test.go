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

// runAcrossCluster calls fn concurrently once per peer and collects the
// per-peer errors, preserving peer order in the returned slice.
func runAcrossCluster(cl *substratetest.Cluster, fn func(p *substratetest.LocalSubstrate) error) []error {
	peers := cl.Peers()
	errs := make([]error, len(peers))
	var wg sync.WaitGroup
	for i, p := range peers {
		wg.Add(1)
		go func(i int, p *substratetest.LocalSubstrate) {
			defer wg.Done()
			errs[i] = fn(p)
		}(i, p)
	}
	wg.Wait()
	return errs
}

func requireAllNil(t *testing.T, errs []error) {
	t.Helper()
	for i, err := range errs {
		require.NoErrorf(t, err, "peer %d", i)
	}
}

func TestCollectiveBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(4, "broadcast")
	root := types.VAddr(0)

	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		ctx := p.InitialContext()
		if p.LocalVAddr() == root {
			buf := []byte("hello")
			return p.Broadcast(root, ctx, buf)
		}
		buf := make([]byte, 5)
		if err := p.Broadcast(root, ctx, buf); err != nil {
			return err
		}
		if string(buf) != "hello" {
			t.Errorf("peer %d got %q, want hello", p.LocalVAddr(), buf)
		}
		return nil
	})
	requireAllNil(t, errs)
}

func TestCollectiveGather(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(4, "gather")
	root := types.VAddr(0)

	var mu sync.Mutex
	var gathered [][]byte
	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		ctx := p.InitialContext()
		in := core.EncodeUint32(uint32(p.LocalVAddr()))
		if p.LocalVAddr() != root {
			return p.Gather(root, ctx, in, nil)
		}
		out := make([][]byte, ctx.Size())
		if err := p.Gather(root, ctx, in, out); err != nil {
			return err
		}
		mu.Lock()
		gathered = out
		mu.Unlock()
		return nil
	})
	requireAllNil(t, errs)
	require.Len(t, gathered, 4)
	for i, b := range gathered {
		assert.Equal(t, uint32(i), core.DecodeUint32(b))
	}
}

func TestCollectiveAllGather(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(3, "allgather")
	root := types.VAddr(0)

	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		ctx := p.InitialContext()
		in := core.EncodeUint32(uint32(p.LocalVAddr()) * 10)
		out := make([][]byte, ctx.Size())
		if err := p.AllGather(root, ctx, in, out); err != nil {
			return err
		}
		for i, b := range out {
			if got := core.DecodeUint32(b); got != uint32(i)*10 {
				t.Errorf("peer %d: out[%d] = %d, want %d", p.LocalVAddr(), i, got, i*10)
			}
		}
		return nil
	})
	requireAllNil(t, errs)
}

func TestCollectiveScatter(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(4, "scatter")
	root := types.VAddr(0)

	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		ctx := p.InitialContext()
		var out []byte
		if p.LocalVAddr() == root {
			in := make([][]byte, ctx.Size())
			for i := range in {
				in[i] = core.EncodeUint32(uint32(i) * 100)
			}
			if err := p.Scatter(root, ctx, in, &out); err != nil {
				return err
			}
		} else {
			out = make([]byte, 4)
			if err := p.Scatter(root, ctx, nil, &out); err != nil {
				return err
			}
		}
		rank := ctx.Rank()
		if got := core.DecodeUint32(out); got != uint32(rank)*100 {
			t.Errorf("peer %d (rank %d): got %d, want %d", p.LocalVAddr(), rank, got, rank*100)
		}
		return nil
	})
	requireAllNil(t, errs)
}

func TestCollectiveAllToAll(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(3, "alltoall")

	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		ctx := p.InitialContext()
		n := ctx.Size()
		rank := ctx.Rank()
		in := make([][]byte, n)
		out := make([][]byte, n)
		for i := range in {
			in[i] = core.EncodeUint32(uint32(rank)*10 + uint32(i))
			out[i] = make([]byte, 4)
		}
		if err := p.AllToAll(ctx, in, out); err != nil {
			return err
		}
		for i, b := range out {
			want := uint32(i)*10 + uint32(rank)
			if got := core.DecodeUint32(b); got != want {
				t.Errorf("peer rank %d: out[%d] = %d, want %d", rank, i, got, want)
			}
		}
		return nil
	})
	requireAllNil(t, errs)
}

func TestCollectiveReduceSum(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(5, "reduce")
	root := types.VAddr(0)

	var mu sync.Mutex
	var result []byte
	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		ctx := p.InitialContext()
		in := core.EncodeUint32(uint32(p.LocalVAddr()))
		var out []byte
		if err := p.Reduce(root, ctx, core.SumUint32, in, &out); err != nil {
			return err
		}
		if p.LocalVAddr() == root {
			mu.Lock()
			result = out
			mu.Unlock()
		}
		return nil
	})
	requireAllNil(t, errs)
	// sum of VAddrs 0..4
	assert.Equal(t, uint32(10), core.DecodeUint32(result))
}

func TestCollectiveAllReduceSum(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(4, "allreduce")

	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		ctx := p.InitialContext()
		in := core.EncodeUint32(uint32(p.LocalVAddr()))
		var out []byte
		if err := p.AllReduce(ctx, core.SumUint32, in, &out); err != nil {
			return err
		}
		if got := core.DecodeUint32(out); got != 6 {
			t.Errorf("peer %d: allreduce sum = %d, want 6", p.LocalVAddr(), got)
		}
		return nil
	})
	requireAllNil(t, errs)
}

func TestCollectiveBarrierReleasesEveryone(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(6, "barrier")

	errs := runAcrossCluster(cl, func(p *substratetest.LocalSubstrate) error {
		return p.Barrier(p.InitialContext())
	})
	requireAllNil(t, errs)
}
