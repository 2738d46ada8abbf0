package cage

import "github.com/graybat-go/cage/pkg/cage/types"

// Edge is the operational handle (edge_id, src_vid, dst_vid) an
// application drives directly. Sending on it translates to sending a
// message tagged with edge_id to the VAddr currently hosting dst_vid,
// in the overlay's context; receiving matches source = VAddr(src_vid),
// same tag. Distinct edges never share a tag, so two edges between the
// same peer pair never interfere.
type Edge struct {
	cage *Cage
	id   types.EdgeID
	desc types.EdgeDescription
}

// Edge returns the handle for edge id. The graph must already be
// installed via SetGraph.
func (c *Cage) Edge(id types.EdgeID) Edge {
	return Edge{cage: c, id: id, desc: c.store.Edge(id)}
}

// ID returns the edge's identifier (and wire tag).
func (e Edge) ID() types.EdgeID { return e.id }

// Src returns the edge's source vertex.
func (e Edge) Src() types.VID { return e.desc.Src }

// Dst returns the edge's destination vertex.
func (e Edge) Dst() types.VID { return e.desc.Dst }

// Send pushes payload to the peer hosting the edge's destination vertex,
// tagged with the edge's identifier.
func (e Edge) Send(payload []byte) (*types.Event, error) {
	dst, err := e.cage.vaddrOf(e.desc.Dst)
	if err != nil {
		return nil, err
	}
	return e.cage.sub.AsyncSend(dst, types.EdgeTag(e.id), e.cage.ctx, payload)
}

// Recv posts a recv matching the edge's source vertex and tag.
func (e Edge) Recv(buf []byte) (*types.Event, error) {
	src, err := e.cage.vaddrOf(e.desc.Src)
	if err != nil {
		return nil, err
	}
	return e.cage.sub.AsyncRecv(src, types.EdgeTag(e.id), e.cage.ctx, buf)
}
