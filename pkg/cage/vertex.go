package cage

import (
	"github.com/hashicorp/go-multierror"

	"github.com/graybat-go/cage/pkg/cage/core"
	"github.com/graybat-go/cage/pkg/cage/types"
)

func waitAll(events []*types.Event) error {
	var result error
	for _, ev := range events {
		if err := ev.Wait(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// VertexSpread sends a copy of payload on every out-edge of vid,
// returning one Event per edge.
func (c *Cage) VertexSpread(vid types.VID, payload []byte) ([]*types.Event, error) {
	edges := c.store.OutEdges(vid)
	events := make([]*types.Event, 0, len(edges))
	for _, id := range edges {
		ev, err := c.Edge(id).Send(payload)
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// VertexCollect receives exactly one elemSize payload on every in-edge of
// vid, concatenated into out in in-edge insertion order. out must be at
// least len(in-edges)*elemSize long.
func (c *Cage) VertexCollect(vid types.VID, elemSize int, out []byte) error {
	edges := c.store.InEdges(vid)
	if len(out) < len(edges)*elemSize {
		return types.NewProtocolError("collect buffer too small for the vertex's in-edge count")
	}
	events := make([]*types.Event, len(edges))
	for i, id := range edges {
		ev, err := c.Edge(id).Recv(out[i*elemSize : (i+1)*elemSize])
		if err != nil {
			return err
		}
		events[i] = ev
	}
	return waitAll(events)
}

// VertexForward collects on every in-edge, optionally transforms the
// concatenated payload, then spreads the result on every out-edge.
// Requires |in-edges| == |out-edges|.
func (c *Cage) VertexForward(vid types.VID, elemSize int, transform func([]byte) []byte) error {
	in := c.store.InEdges(vid)
	out := c.store.OutEdges(vid)
	if len(in) != len(out) {
		return types.NewProtocolError("forward requires an equal number of in- and out-edges")
	}

	buf := make([]byte, len(in)*elemSize)
	if err := c.VertexCollect(vid, elemSize, buf); err != nil {
		return err
	}
	payload := buf
	if transform != nil {
		payload = transform(buf)
	}

	events := make([]*types.Event, len(out))
	for i, id := range out {
		ev, err := c.Edge(id).Send(payload)
		if err != nil {
			return err
		}
		events[i] = ev
	}
	return waitAll(events)
}

// VertexAccumulate collects on every in-edge of vid then folds the
// results with op starting from init, in in-edge order.
func (c *Cage) VertexAccumulate(vid types.VID, elemSize int, op core.ReduceOp, init []byte) ([]byte, error) {
	edges := c.store.InEdges(vid)
	acc := init
	for _, id := range edges {
		buf := make([]byte, elemSize)
		ev, err := c.Edge(id).Recv(buf)
		if err != nil {
			return nil, err
		}
		if err := ev.Wait(); err != nil {
			return nil, err
		}
		acc = op(acc, buf)
	}
	return acc, nil
}
