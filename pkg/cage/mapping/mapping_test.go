package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graybat-go/cage/pkg/cage/types"
)

func chainGraph(n int) types.GraphDescription {
	var g types.GraphDescription
	for i := 0; i < n; i++ {
		g.Vertices = append(g.Vertices, types.VID(i))
	}
	for i := 0; i < n-1; i++ {
		g.Edges = append(g.Edges, types.EdgeDescription{Src: types.VID(i), Dst: types.VID(i + 1)})
	}
	return g
}

func peerSet(n int) []types.VAddr {
	out := make([]types.VAddr, n)
	for i := range out {
		out[i] = types.VAddr(i)
	}
	return out
}

func assertFullyMapped(t *testing.T, g types.GraphDescription, m map[types.VID]types.VAddr) {
	t.Helper()
	for _, vid := range g.Vertices {
		_, ok := m[vid]
		assert.True(t, ok, "vertex %d left unmapped", vid)
	}
}

func TestConsecutivePartitionsEvenly(t *testing.T) {
	g := chainGraph(6)
	m, err := Consecutive(g, peerSet(3))
	require.NoError(t, err)
	assertFullyMapped(t, g, m)
	assert.Equal(t, types.VAddr(0), m[0])
	assert.Equal(t, types.VAddr(0), m[1])
	assert.Equal(t, types.VAddr(1), m[2])
	assert.Equal(t, types.VAddr(1), m[3])
	assert.Equal(t, types.VAddr(2), m[4])
	assert.Equal(t, types.VAddr(2), m[5])
}

func TestConsecutiveRemainderGoesToLowPeers(t *testing.T) {
	g := chainGraph(7)
	m, err := Consecutive(g, peerSet(3))
	require.NoError(t, err)
	assertFullyMapped(t, g, m)
	counts := map[types.VAddr]int{}
	for _, v := range m {
		counts[v]++
	}
	assert.Equal(t, 3, counts[0])
	assert.Equal(t, 2, counts[1])
	assert.Equal(t, 2, counts[2])
}

func TestRoundRobinIsModular(t *testing.T) {
	g := chainGraph(6)
	m, err := RoundRobin(g, peerSet(3))
	require.NoError(t, err)
	assertFullyMapped(t, g, m)
	for _, vid := range g.Vertices {
		assert.Equal(t, types.VAddr(int(vid)%3), m[vid])
	}
}

func TestRandomIsDeterministicGivenSeed(t *testing.T) {
	g := chainGraph(20)
	peers := peerSet(4)
	m1, err := Random(42)(g, peers)
	require.NoError(t, err)
	m2, err := Random(42)(g, peers)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
	assertFullyMapped(t, g, m1)
}

func TestRandomDiffersAcrossSeeds(t *testing.T) {
	g := chainGraph(50)
	peers := peerSet(4)
	m1, err := Random(1)(g, peers)
	require.NoError(t, err)
	m2, err := Random(2)(g, peers)
	require.NoError(t, err)
	assert.NotEqual(t, m1, m2)
}

func TestFilterRestrictsToMatchingPeers(t *testing.T) {
	g := chainGraph(6)
	peers := peerSet(4)
	evenOnly := func(v types.VAddr) bool { return uint32(v)%2 == 0 }
	m, err := Filter(evenOnly)(g, peers)
	require.NoError(t, err)
	assertFullyMapped(t, g, m)
	for _, v := range m {
		assert.Zero(t, uint32(v)%2)
	}
}

func TestFilterWithNoMatchIsMappingError(t *testing.T) {
	g := chainGraph(3)
	peers := peerSet(2)
	_, err := Filter(func(types.VAddr) bool { return false })(g, peers)
	require.Error(t, err)
	var mapErr *types.MappingError
	assert.ErrorAs(t, err, &mapErr)
}

func TestEmptyPeerSetIsMappingError(t *testing.T) {
	g := chainGraph(3)
	_, err := Consecutive(g, nil)
	require.Error(t, err)
}
