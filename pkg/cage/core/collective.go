package core

import (
	"encoding/binary"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/graybat-go/cage/pkg/cage/types"
)

// Reserved tags for the collective engine, all within the top 16 tag
// values so they never collide with application edge tags.
const (
	tagBarrier types.Tag = types.EdgeTagLimit + iota
	tagBroadcast
	tagGather
	tagGatherVar
	tagScatter
	tagAllToAll
	tagReduce
)

// ReduceOp folds two payloads into one. It must be associative for the
// result to be well defined when the engine reorders partial folds;
// ordering is fixed VAddr-ascending to make results bit-reproducible for
// non-associative float ops on identical inputs.
type ReduceOp func(a, b []byte) []byte

// pointToPoint is the slice of Substrate the collective engine actually
// needs. Keeping it this narrow (rather than depending on *Transport)
// lets any Substrate implementation — including an in-process one built
// for tests — reuse this engine unchanged.
type pointToPoint interface {
	LocalVAddr() types.VAddr
	AsyncSend(dst types.VAddr, tag types.Tag, ctx types.Context, payload []byte) (*types.Event, error)
	AsyncRecv(src types.VAddr, tag types.Tag, ctx types.Context, buf []byte) (*types.Event, error)
}

// Collectives implements the collective engine over a Substrate's
// point-to-point primitives. Trees are flat (root <-> every
// member): latency is predictable at the peer counts these workloads
// target, and a binomial tree can be substituted with no contract
// change.
type Collectives struct {
	t pointToPoint
}

// NewCollectives builds a collective engine over any point-to-point
// Substrate.
func NewCollectives(t pointToPoint) *Collectives {
	return &Collectives{t: t}
}

func sortedMembers(ctx types.Context) []types.VAddr {
	out := append([]types.VAddr(nil), ctx.Members()...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Broadcast sends buf from root to every other member, who receive into
// their own buf.
func (c *Collectives) Broadcast(root types.VAddr, ctx types.Context, buf []byte) error {
	local := c.t.LocalVAddr()
	if local == root {
		var result error
		for _, m := range ctx.Members() {
			if m == root {
				continue
			}
			ev, err := c.t.AsyncSend(m, tagBroadcast, ctx, buf)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if err := ev.Wait(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result
	}
	ev, err := c.t.AsyncRecv(root, tagBroadcast, ctx, buf)
	if err != nil {
		return err
	}
	return ev.Wait()
}

// Gather collects one same-size `in` from every member into out, indexed
// by the member's position in VAddr-ascending order. out must already be
// sized len(ctx.Members()); only root's out is populated.
func (c *Collectives) Gather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error {
	local := c.t.LocalVAddr()
	members := sortedMembers(ctx)

	if local != root {
		ev, err := c.t.AsyncSend(root, tagGather, ctx, in)
		if err != nil {
			return err
		}
		return ev.Wait()
	}

	var result error
	for i, m := range members {
		if m == root {
			out[i] = in
			continue
		}
		buf := make([]byte, len(in))
		ev, err := c.t.AsyncRecv(m, tagGather, ctx, buf)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := ev.Wait(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out[i] = buf
	}
	return result
}

// GatherVar collects variable-size `in` from every member into out,
// ordered by VAddr, alongside the per-peer byte counts.
func (c *Collectives) GatherVar(root types.VAddr, ctx types.Context, in []byte, out [][]byte, counts []int) error {
	local := c.t.LocalVAddr()
	members := sortedMembers(ctx)

	if local != root {
		lenBuf := make([]byte, 8)
		binary.LittleEndian.PutUint64(lenBuf, uint64(len(in)))
		ev, err := c.t.AsyncSend(root, tagGatherVar, ctx, lenBuf)
		if err != nil {
			return err
		}
		if err := ev.Wait(); err != nil {
			return err
		}
		ev, err = c.t.AsyncSend(root, tagGather, ctx, in)
		if err != nil {
			return err
		}
		return ev.Wait()
	}

	var result error
	for i, m := range members {
		if m == root {
			out[i] = in
			counts[i] = len(in)
			continue
		}
		lenBuf := make([]byte, 8)
		ev, err := c.t.AsyncRecv(m, tagGatherVar, ctx, lenBuf)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := ev.Wait(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		n := binary.LittleEndian.Uint64(lenBuf)
		buf := make([]byte, n)
		ev, err = c.t.AsyncRecv(m, tagGather, ctx, buf)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := ev.Wait(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out[i] = buf
		counts[i] = int(n)
	}
	return result
}

// AllGather is Gather followed by a Broadcast of the assembled result
// from root to everyone.
func (c *Collectives) AllGather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error {
	if err := c.Gather(root, ctx, in, out); err != nil {
		return err
	}
	return c.broadcastConcat(root, ctx, out)
}

func (c *Collectives) broadcastConcat(root types.VAddr, ctx types.Context, out [][]byte) error {
	local := c.t.LocalVAddr()
	elemSize := 0
	if local == root {
		for _, b := range out {
			if len(b) > elemSize {
				elemSize = len(b)
			}
		}
	}
	sizeBuf := make([]byte, 8)
	if local == root {
		binary.LittleEndian.PutUint64(sizeBuf, uint64(elemSize))
	}
	if err := c.Broadcast(root, ctx, sizeBuf); err != nil {
		return err
	}
	elemSize = int(binary.LittleEndian.Uint64(sizeBuf))

	members := sortedMembers(ctx)
	n := len(members)
	flat := make([]byte, n*elemSize)
	if local == root {
		for i, b := range out {
			copy(flat[i*elemSize:(i+1)*elemSize], b)
		}
	}
	if err := c.Broadcast(root, ctx, flat); err != nil {
		return err
	}
	if local != root {
		for i := range members {
			out[i] = append([]byte(nil), flat[i*elemSize:(i+1)*elemSize]...)
		}
	}
	return nil
}

// Scatter distributes in[i] (ordered by VAddr-ascending member position)
// from root to member i; each member receives its own slice into out.
func (c *Collectives) Scatter(root types.VAddr, ctx types.Context, in [][]byte, out *[]byte) error {
	local := c.t.LocalVAddr()
	members := sortedMembers(ctx)

	if local == root {
		var result error
		for i, m := range members {
			if m == root {
				*out = in[i]
				continue
			}
			ev, err := c.t.AsyncSend(m, tagScatter, ctx, in[i])
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if err := ev.Wait(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result
	}

	ev, err := c.t.AsyncRecv(root, tagScatter, ctx, *out)
	if err != nil {
		return err
	}
	return ev.Wait()
}

// AllToAll has every member send a uniform-size slice to every other
// member, receiving one slice from each in VAddr-ascending order.
func (c *Collectives) AllToAll(ctx types.Context, in [][]byte, out [][]byte) error {
	members := sortedMembers(ctx)
	local := c.t.LocalVAddr()
	localIdx := -1
	for i, m := range members {
		if m == local {
			localIdx = i
		}
	}

	var result error
	var sendErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, m := range members {
			if m == local {
				continue
			}
			ev, err := c.t.AsyncSend(m, tagAllToAll, ctx, in[i])
			if err != nil {
				sendErr = multierror.Append(sendErr, err)
				continue
			}
			if err := ev.Wait(); err != nil {
				sendErr = multierror.Append(sendErr, err)
			}
		}
	}()

	for i, m := range members {
		if m == local {
			out[localIdx] = in[localIdx]
			continue
		}
		ev, err := c.t.AsyncRecv(m, tagAllToAll, ctx, out[i])
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := ev.Wait(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	<-done
	if sendErr != nil {
		result = multierror.Append(result, sendErr)
	}
	return result
}

// Reduce folds op over every member's `in`, VAddr-ascending, delivering
// the result to root's out.
func (c *Collectives) Reduce(root types.VAddr, ctx types.Context, op ReduceOp, in []byte, out *[]byte) error {
	members := sortedMembers(ctx)
	gathered := make([][]byte, len(members))
	if err := c.Gather(root, ctx, in, gathered); err != nil {
		return err
	}
	if c.t.LocalVAddr() != root {
		return nil
	}
	acc := gathered[0]
	for _, v := range gathered[1:] {
		acc = op(acc, v)
	}
	*out = acc
	return nil
}

// AllReduce is Reduce followed by a Broadcast of the result.
func (c *Collectives) AllReduce(ctx types.Context, op ReduceOp, in []byte, out *[]byte) error {
	root := sortedMembers(ctx)[0]
	if err := c.Reduce(root, ctx, op, in, out); err != nil {
		return err
	}
	if c.t.LocalVAddr() != root {
		*out = make([]byte, 0)
	}
	if err := c.broadcastLenPrefixed(root, ctx, out); err != nil {
		return err
	}
	return nil
}

func (c *Collectives) broadcastLenPrefixed(root types.VAddr, ctx types.Context, out *[]byte) error {
	local := c.t.LocalVAddr()
	sizeBuf := make([]byte, 8)
	if local == root {
		binary.LittleEndian.PutUint64(sizeBuf, uint64(len(*out)))
	}
	if err := c.Broadcast(root, ctx, sizeBuf); err != nil {
		return err
	}
	n := binary.LittleEndian.Uint64(sizeBuf)
	buf := make([]byte, n)
	if local == root {
		copy(buf, *out)
	}
	if err := c.Broadcast(root, ctx, buf); err != nil {
		return err
	}
	*out = buf
	return nil
}

// Broadcast implements Substrate by delegating to the transport's
// collective engine.
func (t *Transport) Broadcast(root types.VAddr, ctx types.Context, buf []byte) error {
	return t.collectives.Broadcast(root, ctx, buf)
}

// Gather implements Substrate.
func (t *Transport) Gather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error {
	return t.collectives.Gather(root, ctx, in, out)
}

// GatherVar implements Substrate.
func (t *Transport) GatherVar(root types.VAddr, ctx types.Context, in []byte, out [][]byte, counts []int) error {
	return t.collectives.GatherVar(root, ctx, in, out, counts)
}

// AllGather implements Substrate.
func (t *Transport) AllGather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error {
	return t.collectives.AllGather(root, ctx, in, out)
}

// Scatter implements Substrate.
func (t *Transport) Scatter(root types.VAddr, ctx types.Context, in [][]byte, out *[]byte) error {
	return t.collectives.Scatter(root, ctx, in, out)
}

// AllToAll implements Substrate.
func (t *Transport) AllToAll(ctx types.Context, in [][]byte, out [][]byte) error {
	return t.collectives.AllToAll(ctx, in, out)
}

// Reduce implements Substrate.
func (t *Transport) Reduce(root types.VAddr, ctx types.Context, op ReduceOp, in []byte, out *[]byte) error {
	return t.collectives.Reduce(root, ctx, op, in, out)
}

// AllReduce implements Substrate.
func (t *Transport) AllReduce(ctx types.Context, op ReduceOp, in []byte, out *[]byte) error {
	return t.collectives.AllReduce(ctx, op, in, out)
}

// Barrier blocks every member until the root (lowest VAddr) has heard
// from each.
func (c *Collectives) Barrier(ctx types.Context) error {
	root := sortedMembers(ctx)[0]
	local := c.t.LocalVAddr()

	if local == root {
		var result error
		for _, m := range ctx.Members() {
			if m == root {
				continue
			}
			buf := make([]byte, 1)
			ev, err := c.t.AsyncRecv(m, tagBarrier, ctx, buf)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if err := ev.Wait(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if result != nil {
			return result
		}
		for _, m := range ctx.Members() {
			if m == root {
				continue
			}
			ev, err := c.t.AsyncSend(m, tagBarrier, ctx, []byte{1})
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if err := ev.Wait(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result
	}

	ev, err := c.t.AsyncSend(root, tagBarrier, ctx, []byte{1})
	if err != nil {
		return err
	}
	if err := ev.Wait(); err != nil {
		return err
	}
	buf := make([]byte, 1)
	ev, err = c.t.AsyncRecv(root, tagBarrier, ctx, buf)
	if err != nil {
		return err
	}
	return ev.Wait()
}
