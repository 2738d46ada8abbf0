// Package mapping implements pure vertex->peer assignment strategies:
// deterministic functions from a graph description and an ordered peer
// set to a total VID->VAddr table. Every strategy here is
// side-effect free so that distribute can call it independently on every
// peer and rely on identical output.
package mapping

import (
	"math/rand"
	"sort"

	"github.com/graybat-go/cage/pkg/cage/types"
)

// Strategy assigns every vertex of g to one of peers. A Strategy must
// leave no vertex unmapped.
type Strategy func(g types.GraphDescription, peers []types.VAddr) (map[types.VID]types.VAddr, error)

func sortedVertices(g types.GraphDescription) []types.VID {
	out := append([]types.VID(nil), g.Vertices...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func requirePeers(peers []types.VAddr) error {
	if len(peers) == 0 {
		return types.NewMappingError("mapping strategy invoked with an empty peer set")
	}
	return nil
}

// Consecutive block-partitions the vertex set into len(peers) contiguous
// ranges of equal size (±1 for the remainder), in VID order.
func Consecutive(g types.GraphDescription, peers []types.VAddr) (map[types.VID]types.VAddr, error) {
	if err := requirePeers(peers); err != nil {
		return nil, err
	}
	vids := sortedVertices(g)
	n := len(vids)
	p := len(peers)
	base := n / p
	rem := n % p

	out := make(map[types.VID]types.VAddr, n)
	idx := 0
	for peerIdx, peer := range peers {
		size := base
		if peerIdx < rem {
			size++
		}
		for i := 0; i < size && idx < n; i++ {
			out[vids[idx]] = peer
			idx++
		}
	}
	return out, nil
}

// RoundRobin assigns vid to peers[vid % len(peers)].
func RoundRobin(g types.GraphDescription, peers []types.VAddr) (map[types.VID]types.VAddr, error) {
	if err := requirePeers(peers); err != nil {
		return nil, err
	}
	out := make(map[types.VID]types.VAddr, len(g.Vertices))
	for _, vid := range g.Vertices {
		out[vid] = peers[int(vid)%len(peers)]
	}
	return out, nil
}

// Random returns a Strategy that assigns every vertex to a
// pseudo-randomly chosen peer, deterministic given seed: every peer
// calling Random(seed) over the same graph and peer set derives an
// identical table. Cage.Distribute does not exchange the seed between
// peers; the tables agree only when every peer passes the same seed.
func Random(seed uint64) Strategy {
	return func(g types.GraphDescription, peers []types.VAddr) (map[types.VID]types.VAddr, error) {
		if err := requirePeers(peers); err != nil {
			return nil, err
		}
		r := rand.New(rand.NewSource(int64(seed)))
		out := make(map[types.VID]types.VAddr, len(g.Vertices))
		for _, vid := range sortedVertices(g) {
			out[vid] = peers[r.Intn(len(peers))]
		}
		return out, nil
	}
}

// Filter returns a Strategy that restricts assignment to the peers
// satisfying pred, claiming vertices in a deterministic round-robin
// sweep over the eligible subset (in the order they appear in peers). A
// predicate matching no peer is a usage error, surfaced as a
// MappingError since it would otherwise silently leave every vertex
// unmapped.
func Filter(pred func(types.VAddr) bool) Strategy {
	return func(g types.GraphDescription, peers []types.VAddr) (map[types.VID]types.VAddr, error) {
		if err := requirePeers(peers); err != nil {
			return nil, err
		}
		var eligible []types.VAddr
		for _, p := range peers {
			if pred(p) {
				eligible = append(eligible, p)
			}
		}
		if len(eligible) == 0 {
			return nil, types.NewMappingError("filter predicate matched no peer in the set")
		}
		return RoundRobin(g, eligible)
	}
}
