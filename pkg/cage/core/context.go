package core

import (
	"sort"
	"strings"
	"time"

	"github.com/graybat-go/cage/pkg/cage/types"
)

// ctxAggregation is the coordinator-side state for one in-flight
// createContext: the set of CONTEXT_INIT senders observed so far for a
// given member set.
type ctxAggregation struct {
	members  []types.VAddr
	received map[types.VAddr]bool
	assigned types.ContextID
	done     bool
}

func memberKey(members []types.VAddr) string {
	sorted := append([]types.VAddr(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

func contains(members []types.VAddr, v types.VAddr) bool {
	for _, m := range members {
		if m == v {
			return true
		}
	}
	return false
}

func coordinatorOf(members []types.VAddr) types.VAddr {
	c := members[0]
	for _, m := range members[1:] {
		if m < c {
			c = m
		}
	}
	return c
}

// CreateContext implements Substrate. Every member sends CONTEXT_INIT to
// the coordinator (lowest VAddr in members); the coordinator allocates a
// fresh ContextID and replies ACK with the full membership to every
// member. A peer not present in members gets an invalid Context back
// without any network round-trip.
func (t *Transport) CreateContext(members []types.VAddr, parent types.Context) (types.Context, error) {
	if !contains(members, t.local) {
		return types.InvalidContext(), nil
	}

	key := memberKey(members)
	wait := make(chan types.ContextReplyBody, 1)
	t.ctxMu.Lock()
	t.ctxWaiters[key] = append(t.ctxWaiters[key], wait)
	t.ctxMu.Unlock()

	coordinator := coordinatorOf(members)
	if coordinator == t.local {
		t.registerContextInit(key, members, t.local)
	}

	req := types.Message{
		Header: types.Header{
			Type:        types.ContextInit,
			Source:      t.local,
			Destination: coordinator,
			ContextID:   parent.ID(),
		},
		Payload: types.Marshal(types.ContextInitBody{Members: members}),
	}
	if err := t.sendControl(coordinator, req); err != nil {
		return types.Context{}, err
	}

	select {
	case reply := <-wait:
		return types.NewContext(reply.ContextID, parent.Name(), reply.Members, t.local), nil
	case <-time.After(t.cfg.recvTimeout()):
		return types.Context{}, types.NewTransportFailure(types.Timeout, "createContext: coordinator did not reply")
	}
}

// registerContextInit records that src has sent its CONTEXT_INIT for
// the aggregation keyed by key, assigning a fresh ContextID and notifying
// every local waiter once every member has reported in. Only called on
// the coordinator.
func (t *Transport) registerContextInit(key string, members []types.VAddr, src types.VAddr) {
	t.ctxMu.Lock()
	agg, ok := t.ctxPending[key]
	if !ok {
		agg = &ctxAggregation{members: members, received: make(map[types.VAddr]bool)}
		t.ctxPending[key] = agg
	}
	agg.received[src] = true
	ready := !agg.done && len(agg.received) == len(members)
	if ready {
		t.ctxCount++
		agg.assigned = types.ContextID(t.ctxCount)
		agg.done = true
	}
	assigned := agg.assigned
	done := agg.done
	t.ctxMu.Unlock()

	if !ready && !done {
		return
	}
	if !ready {
		return
	}

	body := types.ContextReplyBody{ContextID: assigned, Members: members}
	reply := types.Message{
		Header: types.Header{Type: types.Ack, Source: t.local},
		Payload: types.Marshal(body),
	}
	for _, m := range members {
		if m == t.local {
			t.deliverContextReply(key, body)
			continue
		}
		_ = t.sendControl(m, reply)
	}
}

// recvContextInit handles an inbound CONTEXT_INIT on the control
// channel: only ever received by a coordinator.
func (t *Transport) recvContextInit(msg types.Message) {
	var body types.ContextInitBody
	if err := types.Unmarshal(msg.Payload, &body); err != nil {
		t.log.Errorf("createContext: malformed CONTEXT_INIT: %v", err)
		return
	}
	key := memberKey(body.Members)
	t.registerContextInit(key, body.Members, msg.Header.Source)
}

// recvContextAck handles the coordinator's reply to a CONTEXT_INIT.
func (t *Transport) recvContextAck(msg types.Message) {
	var body types.ContextReplyBody
	if err := types.Unmarshal(msg.Payload, &body); err != nil {
		t.log.Errorf("createContext: malformed ACK: %v", err)
		return
	}
	t.deliverContextReply(memberKey(body.Members), body)
}

func (t *Transport) deliverContextReply(key string, body types.ContextReplyBody) {
	t.ctxMu.Lock()
	waiters := t.ctxWaiters[key]
	if len(waiters) > 0 {
		w := waiters[0]
		t.ctxWaiters[key] = waiters[1:]
		if len(t.ctxWaiters[key]) == 0 {
			delete(t.ctxWaiters, key)
		}
	} else {
		t.ctxMu.Unlock()
		return
	}
	t.ctxMu.Unlock()
	w <- body
}

// SplitContext implements Substrate: partitions parent by rank parity.
// Each half independently runs the createContext protocol (each has its
// own coordinator, the lowest VAddr within that half), so the two halves
// never need to communicate with one another.
func (t *Transport) SplitContext(parent types.Context) (types.Context, error) {
	parity := parent.Rank() % 2
	var half []types.VAddr
	for _, m := range parent.Members() {
		if parent.RankOf(m)%2 == parity {
			half = append(half, m)
		}
	}
	return t.CreateContext(half, parent)
}

// Barrier implements Substrate: every member contacts the context's
// root (lowest VAddr); the root replies once all have checked in. This
// reuses the same point-to-point primitives as the collective engine,
// under the reserved barrier tag.
func (t *Transport) Barrier(ctx types.Context) error {
	return t.collectives.Barrier(ctx)
}
