package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphValidateRejectsUnknownVertex(t *testing.T) {
	g := GraphDescription{
		Vertices: []VID{0, 1},
		Edges:    []EdgeDescription{{Src: 0, Dst: 2}},
	}
	err := g.Validate()
	require.Error(t, err)
	var mapErr *MappingError
	assert.ErrorAs(t, err, &mapErr)
}

func TestGraphOutInEdges(t *testing.T) {
	g := GraphDescription{
		Vertices: []VID{0, 1, 2},
		Edges: []EdgeDescription{
			{Src: 0, Dst: 1},
			{Src: 1, Dst: 2},
			{Src: 0, Dst: 2},
		},
	}
	require.NoError(t, g.Validate())
	assert.Equal(t, []EdgeID{0, 2}, g.OutEdges(0))
	assert.Equal(t, []EdgeID{1}, g.InEdges(2))
	assert.Equal(t, EdgeDescription{Src: 1, Dst: 2}, g.Edge(1))
}

func TestEdgeTagIsEdgeID(t *testing.T) {
	assert.Equal(t, Tag(5), EdgeTag(EdgeID(5)))
}

func TestIsCollectiveTag(t *testing.T) {
	assert.False(t, IsCollectiveTag(Tag(0)))
	assert.False(t, IsCollectiveTag(EdgeTagLimit-1))
	assert.True(t, IsCollectiveTag(EdgeTagLimit))
}

func TestInMemoryGraphStoreRoundTrips(t *testing.T) {
	store := NewInMemoryGraphStore()
	g := GraphDescription{Vertices: []VID{0, 1}, Edges: []EdgeDescription{{Src: 0, Dst: 1}}}
	require.NoError(t, store.Install(g))
	assert.Equal(t, g.Vertices, store.Vertices())
	assert.Equal(t, g.Edges, store.Edges())
	assert.Equal(t, []EdgeID{0}, store.OutEdges(0))
}
