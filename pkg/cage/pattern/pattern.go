// Package pattern implements topology generators: pure functions
// producing a GraphDescription for a named
// shape, grounded in original_source/include/pattern.hpp and the
// example/chain.cpp, example/ring.cpp programs built on top of it. Mesh
// patterns install one directed edge per ordered pair of neighbours, so
// every neighbour relationship is usable from either endpoint without a
// separate "reverse" pass by the caller.
package pattern

import "github.com/graybat-go/cage/pkg/cage/types"

func addEdge(g *types.GraphDescription, src, dst types.VID) {
	g.Edges = append(g.Edges, types.EdgeDescription{Src: src, Dst: dst})
}

func addBidirectional(g *types.GraphDescription, a, b types.VID) {
	addEdge(g, a, b)
	addEdge(g, b, a)
}

func vertices(n int) []types.VID {
	out := make([]types.VID, n)
	for i := range out {
		out[i] = types.VID(i)
	}
	return out
}

// Chain produces n vertices 0..n-1 with a directed edge i -> i+1, matching
// example/chain.cpp: a strictly one-directional pipeline.
func Chain(n int) types.GraphDescription {
	g := types.GraphDescription{Vertices: vertices(n)}
	for i := 0; i < n-1; i++ {
		addEdge(&g, types.VID(i), types.VID(i+1))
	}
	return g
}

// Ring is Chain closed by one extra edge n-1 -> 0, matching
// example/ring.cpp.
func Ring(n int) types.GraphDescription {
	g := Chain(n)
	if n > 1 {
		addEdge(&g, types.VID(n-1), types.VID(0))
	}
	return g
}

// Grid produces a rows x cols mesh with the four-neighbour (von Neumann)
// pattern: each interior vertex connects to its north/south/east/west
// neighbour, bidirectionally.
func Grid(rows, cols int) types.GraphDescription {
	g := types.GraphDescription{Vertices: vertices(rows * cols)}
	idx := func(r, c int) types.VID { return types.VID(r*cols + c) }
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				addBidirectional(&g, idx(r, c), idx(r, c+1))
			}
			if r+1 < rows {
				addBidirectional(&g, idx(r, c), idx(r+1, c))
			}
		}
	}
	return g
}

// GridDiagonal is Grid plus the four diagonal neighbours: the Moore
// neighbourhood, an eight-neighbour mesh.
func GridDiagonal(rows, cols int) types.GraphDescription {
	g := Grid(rows, cols)
	idx := func(r, c int) types.VID { return types.VID(r*cols + c) }
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if r+1 < rows && c+1 < cols {
				addBidirectional(&g, idx(r, c), idx(r+1, c+1))
			}
			if r+1 < rows && c-1 >= 0 {
				addBidirectional(&g, idx(r, c), idx(r+1, c-1))
			}
		}
	}
	return g
}

// HyperCube produces a 2^dims-vertex hypercube: an edge between every
// pair of vertices whose binary indices differ in exactly one bit,
// bidirectionally.
func HyperCube(dims int) types.GraphDescription {
	n := 1 << uint(dims)
	g := types.GraphDescription{Vertices: vertices(n)}
	for v := 0; v < n; v++ {
		for bit := 0; bit < dims; bit++ {
			neighbor := v ^ (1 << uint(bit))
			if neighbor > v {
				addBidirectional(&g, types.VID(v), types.VID(neighbor))
			}
		}
	}
	return g
}

// FullyConnected produces an edge between every ordered pair of distinct
// vertices.
func FullyConnected(n int) types.GraphDescription {
	g := types.GraphDescription{Vertices: vertices(n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				addEdge(&g, types.VID(i), types.VID(j))
			}
		}
	}
	return g
}

// Star connects vertex 0 (the hub) bidirectionally to every other
// vertex; the spokes carry no edges among themselves.
func Star(n int) types.GraphDescription {
	g := types.GraphDescription{Vertices: vertices(n)}
	for i := 1; i < n; i++ {
		addBidirectional(&g, types.VID(0), types.VID(i))
	}
	return g
}
