// Package cage implements the graph overlay: it binds a
// graph description, a vertex->peer mapping and a substrate into the
// object application code actually drives ("send on edge", "collect at
// vertex", "reduce across a subgraph").
package cage

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/graybat-go/cage/pkg/cage/core"
	"github.com/graybat-go/cage/pkg/cage/definition"
	"github.com/graybat-go/cage/pkg/cage/mapping"
	"github.com/graybat-go/cage/pkg/cage/types"
)

// Cage is the graph overlay held by one peer: an immutable graph
// description once installed, the vertex->VAddr mapping once
// distributed, and the substrate connection it rides on.
type Cage struct {
	sub   core.Substrate
	store types.GraphStore
	log   definition.Logger

	ctx   types.Context
	graph types.GraphDescription

	vmap   map[types.VID]types.VAddr
	hosted map[types.VID]bool
}

// Connect bootstraps a substrate connection from cfg and wraps it in a
// Cage with the default in-memory graph store. It blocks until the
// initial context is complete, exactly as core.NewTransport does.
func Connect(cfg *Config) (*Cage, error) {
	sub, err := core.NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithSubstrate(sub, types.NewInMemoryGraphStore(), cfg.Logger), nil
}

// NewWithSubstrate builds a Cage directly over an already-connected
// Substrate and GraphStore. Tests use this to wire up an in-process
// Substrate without ZMQ sockets.
func NewWithSubstrate(sub core.Substrate, store types.GraphStore, log definition.Logger) *Cage {
	return &Cage{sub: sub, store: store, log: log, ctx: sub.InitialContext()}
}

// Context returns the overlay's context: the initial context for a Cage
// built by Connect or NewWithSubstrate, the calling peer's half for a
// Cage returned by Split. Split does not change the receiver's context.
func (c *Cage) Context() types.Context { return c.ctx }

// LocalVAddr returns the local peer's VAddr.
func (c *Cage) LocalVAddr() types.VAddr { return c.sub.LocalVAddr() }

// Graph returns the installed graph description. Only meaningful after
// SetGraph.
func (c *Cage) Graph() types.GraphDescription { return c.graph }

// Close runs the substrate's teardown protocol.
func (c *Cage) Close() error { return c.sub.Destruct() }

func hashGraph(desc types.GraphDescription) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, v := range desc.Vertices {
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		h.Write(buf[:])
	}
	for _, e := range desc.Edges {
		binary.LittleEndian.PutUint32(buf[:], uint32(e.Src))
		h.Write(buf[:])
		binary.LittleEndian.PutUint32(buf[:], uint32(e.Dst))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// SetGraph installs desc on the overlay. It is collective over Context:
// every peer must call it with an identical description, checked here by
// exchanging a structural hash through an all-gather and comparing every
// entry against the local one.
func (c *Cage) SetGraph(desc types.GraphDescription) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	local := hashGraph(desc)
	hashBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(hashBuf, local)

	out := make([][]byte, c.ctx.Size())
	if err := c.sub.AllGather(c.ctx.Root(), c.ctx, hashBuf, out); err != nil {
		return err
	}
	for rank, b := range out {
		if binary.LittleEndian.Uint64(b) != local {
			return types.NewMappingError(fmt.Sprintf("graph description disagrees with peer at rank %d", rank))
		}
	}

	if err := c.store.Install(desc); err != nil {
		return err
	}
	c.graph = desc
	c.vmap = nil
	c.hosted = nil
	return nil
}

// Distribute runs strategy over the installed graph and the overlay
// context's membership, rebuilding the vertex->VAddr table and the
// hosted-VID set. strategy must be pure: every peer invoking it with the
// same graph and member list must derive the same table.
func (c *Cage) Distribute(strategy mapping.Strategy) error {
	vmap, err := strategy(c.graph, c.ctx.Members())
	if err != nil {
		return err
	}
	for _, vid := range c.graph.Vertices {
		if _, ok := vmap[vid]; !ok {
			return types.NewMappingError(fmt.Sprintf("vertex %d left unmapped by strategy", vid))
		}
	}

	hosted := make(map[types.VID]bool)
	local := c.sub.LocalVAddr()
	for vid, vaddr := range vmap {
		if vaddr == local {
			hosted[vid] = true
		}
	}
	c.vmap = vmap
	c.hosted = hosted
	return nil
}

// Hosted reports whether vid is mapped to the local peer.
func (c *Cage) Hosted(vid types.VID) bool { return c.hosted[vid] }

// HostedVertices returns every VID mapped to the local peer. Order is
// unspecified.
func (c *Cage) HostedVertices() []types.VID {
	out := make([]types.VID, 0, len(c.hosted))
	for vid := range c.hosted {
		out = append(out, vid)
	}
	return out
}

func (c *Cage) vaddrOf(vid types.VID) (types.VAddr, error) {
	v, ok := c.vmap[vid]
	if !ok {
		return 0, types.NewMappingError(fmt.Sprintf("vertex %d is not mapped; call Distribute first", vid))
	}
	return v, nil
}

// Barrier blocks every member of the overlay context until all have
// called it.
func (c *Cage) Barrier() error { return c.sub.Barrier(c.ctx) }

// Split partitions the overlay context by rank parity and returns a new
// Cage scoped to the calling peer's half,
// sharing the same substrate and graph store.
func (c *Cage) Split() (*Cage, error) {
	half, err := c.sub.SplitContext(c.ctx)
	if err != nil {
		return nil, err
	}
	return &Cage{sub: c.sub, store: c.store, log: c.log, ctx: half, graph: c.graph}, nil
}

// AllReduce folds op over every member's in, VAddr-ascending, delivering
// the identical result to every member of the overlay context.
func (c *Cage) AllReduce(op core.ReduceOp, in []byte) ([]byte, error) {
	out := make([]byte, 0)
	if err := c.sub.AllReduce(c.ctx, op, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReduceToVertex folds op over every member's contribution, delivering
// the result to the peer currently hosting root. This is a "reduce to
// root" scoped to the overlay context rather than an arbitrary vertex
// subset: every peer is assumed to contribute exactly one value.
func (c *Cage) ReduceToVertex(root types.VID, op core.ReduceOp, contribute []byte) ([]byte, error) {
	rootAddr, err := c.vaddrOf(root)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0)
	if err := c.sub.Reduce(rootAddr, c.ctx, op, contribute, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GatherToVertex collects one contribution from every member into a
// VAddr-ordered slice at the peer hosting root.
func (c *Cage) GatherToVertex(root types.VID, contribute []byte) ([][]byte, error) {
	rootAddr, err := c.vaddrOf(root)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, c.ctx.Size())
	if err := c.sub.Gather(rootAddr, c.ctx, contribute, out); err != nil {
		return nil, err
	}
	return out, nil
}
