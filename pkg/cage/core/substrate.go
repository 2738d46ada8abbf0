// Package core implements the communication substrate: the socket pair
// pool, message dispatch, context/collective machinery and the ZMQ-backed
// Substrate realization. An in-process realization for tests lives in
// internal/substratetest.
package core

import (
	"github.com/graybat-go/cage/pkg/cage/types"
)

// Substrate is the transport contract the graph overlay is built on top
// of (the "communicationPolicy" of the original design, replacing its
// compile-time policy templates per DESIGN NOTES). A concrete Substrate
// owns its own VAddr, knows its initial Context, and provides
// point-to-point, context and collective primitives.
type Substrate interface {
	// LocalVAddr returns this peer's VAddr in the initial context.
	LocalVAddr() types.VAddr

	// InitialContext returns the process-wide context every connected
	// peer belongs to.
	InitialContext() types.Context

	// AsyncSend frames and enqueues payload for delivery to dst, tagged
	// tag, within ctx. Returns immediately with a pending Event.
	AsyncSend(dst types.VAddr, tag types.Tag, ctx types.Context, payload []byte) (*types.Event, error)

	// AsyncRecv posts a recv request matching (src, tag, ctx) and
	// returns immediately with a pending Event. buf receives the
	// payload once the Event fires with a nil error; it must be large
	// enough for the eventual message or the Event fires with a
	// ProtocolError.
	AsyncRecv(src types.VAddr, tag types.Tag, ctx types.Context, buf []byte) (*types.Event, error)

	// Recv blocks for any message in ctx (match-any), draining already
	// queued messages before waiting on new arrivals. Returns the
	// source VAddr and tag of the message copied into buf.
	Recv(ctx types.Context, buf []byte) (types.VAddr, types.Tag, error)

	// CreateContext is collective over parent: every member must call
	// it with the same members slice. Peers not present in members
	// receive an invalid Context.
	CreateContext(members []types.VAddr, parent types.Context) (types.Context, error)

	// SplitContext is collective over parent: it partitions parent's
	// membership into two contexts keyed by rank parity and returns the
	// one the local peer belongs to.
	SplitContext(parent types.Context) (types.Context, error)

	// Barrier blocks every member of ctx until all have called it.
	Barrier(ctx types.Context) error

	// Broadcast sends buf from root to every other member of ctx, who
	// receive into their own buf.
	Broadcast(root types.VAddr, ctx types.Context, buf []byte) error

	// Gather collects one same-size in from every member of ctx into
	// out, indexed by VAddr-ascending position. Only meaningful on root.
	Gather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error

	// GatherVar is Gather for variable-size payloads, also reporting
	// each member's byte count.
	GatherVar(root types.VAddr, ctx types.Context, in []byte, out [][]byte, counts []int) error

	// AllGather is Gather followed by a broadcast of the assembled
	// result to every member.
	AllGather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error

	// Scatter distributes in[i] (VAddr-ascending) from root to member i.
	Scatter(root types.VAddr, ctx types.Context, in [][]byte, out *[]byte) error

	// AllToAll has every member of ctx send a slice to every other
	// member, receiving one slice from each in VAddr-ascending order.
	AllToAll(ctx types.Context, in [][]byte, out [][]byte) error

	// Reduce folds op over every member's in, VAddr-ascending, delivering
	// the result to root's out.
	Reduce(root types.VAddr, ctx types.Context, op ReduceOp, in []byte, out *[]byte) error

	// AllReduce is Reduce followed by a broadcast of the result.
	AllReduce(ctx types.Context, op ReduceOp, in []byte, out *[]byte) error

	// Destruct runs the teardown protocol: DESTRUCT to every peer in
	// the initial context, wait for DESTRUCT from each, then stop the
	// dispatcher. Outstanding unmatched recvs are cancelled.
	Destruct() error
}
