package substratetest

import (
	"sync"

	"github.com/graybat-go/cage/pkg/cage/core"
	"github.com/graybat-go/cage/pkg/cage/definition"
	"github.com/graybat-go/cage/pkg/cage/types"
)

type pendingRecv struct {
	buf      []byte
	event    *types.Event
	matchAny bool
	result   chan types.Message
}

// LocalSubstrate implements core.Substrate entirely in process: sends
// hand the message straight to the destination peer's dispatch table on
// a goroutine, skipping socket I/O altogether. The recv-matching and
// collective logic otherwise behaves exactly like core.Transport (the
// collective engine is the same core.Collectives, since it only depends
// on AsyncSend/AsyncRecv/LocalVAddr).
type LocalSubstrate struct {
	cluster *Cluster
	local   types.VAddr
	initial types.Context
	log     definition.Logger

	mu        sync.Mutex
	pending   map[types.MatchKey][]*pendingRecv
	queued    map[types.MatchKey][]types.Message
	anyWaiter map[types.ContextID][]*pendingRecv
	torndown  bool

	idMu   sync.Mutex
	nextID map[types.MatchKey]uint32

	sendMu   sync.Mutex
	sendLock map[types.VAddr]*sync.Mutex

	collectives *core.Collectives
}

func newLocalSubstrate(cl *Cluster, local types.VAddr, initial types.Context) *LocalSubstrate {
	ls := &LocalSubstrate{
		cluster:   cl,
		local:     local,
		initial:   initial,
		log:       definition.NewDefaultLogger(local.String()),
		pending:   make(map[types.MatchKey][]*pendingRecv),
		queued:    make(map[types.MatchKey][]types.Message),
		anyWaiter: make(map[types.ContextID][]*pendingRecv),
		nextID:    make(map[types.MatchKey]uint32),
		sendLock:  make(map[types.VAddr]*sync.Mutex),
	}
	ls.collectives = core.NewCollectives(ls)
	return ls
}

func (l *LocalSubstrate) LocalVAddr() types.VAddr      { return l.local }
func (l *LocalSubstrate) InitialContext() types.Context { return l.initial }

func (l *LocalSubstrate) allocateMessageID(key types.MatchKey) uint32 {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	id := l.nextID[key]
	l.nextID[key] = id + 1
	return id
}

// sendLockFor returns the mutex serializing delivery to dst, creating it
// on first use, mirroring core.Transport's per-destination send lock.
// It must be locked synchronously by the caller so concurrent AsyncSend
// calls to the same destination are granted it in call order.
func (l *LocalSubstrate) sendLockFor(dst types.VAddr) *sync.Mutex {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	m, ok := l.sendLock[dst]
	if !ok {
		m = &sync.Mutex{}
		l.sendLock[dst] = m
	}
	return m
}

// AsyncSend implements core.Substrate.
func (l *LocalSubstrate) AsyncSend(dst types.VAddr, tag types.Tag, ctx types.Context, payload []byte) (*types.Event, error) {
	key := types.MatchKey{Source: l.local, Tag: tag, ContextID: ctx.ID()}
	msg := types.Message{
		Header: types.Header{
			Type:        types.DATA,
			Source:      l.local,
			Destination: dst,
			ContextID:   ctx.ID(),
			Tag:         tag,
			MessageID:   l.allocateMessageID(key),
		},
		Payload: append([]byte(nil), payload...),
	}
	ev := types.NewEvent(dst, tag)

	sendMu := l.sendLockFor(dst)
	sendMu.Lock()
	go func() {
		defer sendMu.Unlock()
		l.cluster.route(msg)
		ev.Fire(nil)
	}()
	return ev, nil
}

// AsyncRecv implements core.Substrate.
func (l *LocalSubstrate) AsyncRecv(src types.VAddr, tag types.Tag, ctx types.Context, buf []byte) (*types.Event, error) {
	key := types.MatchKey{Source: src, Tag: tag, ContextID: ctx.ID()}
	return l.postRecv(key, buf), nil
}

// Recv implements core.Substrate.
func (l *LocalSubstrate) Recv(ctx types.Context, buf []byte) (types.VAddr, types.Tag, error) {
	return l.postAny(ctx.ID(), buf)
}

func (l *LocalSubstrate) postRecv(key types.MatchKey, buf []byte) *types.Event {
	ev := types.NewEvent(key.Source, key.Tag)
	l.mu.Lock()
	if q := l.queued[key]; len(q) > 0 {
		msg := q[0]
		l.queued[key] = q[1:]
		if len(l.queued[key]) == 0 {
			delete(l.queued, key)
		}
		l.mu.Unlock()
		l.deliver(buf, msg, ev)
		return ev
	}
	l.pending[key] = append(l.pending[key], &pendingRecv{buf: buf, event: ev})
	l.mu.Unlock()
	return ev
}

func (l *LocalSubstrate) postAny(ctxID types.ContextID, buf []byte) (types.VAddr, types.Tag, error) {
	result := make(chan types.Message, 1)
	pr := &pendingRecv{buf: buf, matchAny: true, result: result}

	l.mu.Lock()
	for key, msgs := range l.queued {
		if key.ContextID != ctxID || len(msgs) == 0 {
			continue
		}
		msg := msgs[0]
		l.queued[key] = msgs[1:]
		if len(l.queued[key]) == 0 {
			delete(l.queued, key)
		}
		l.mu.Unlock()
		copy(buf, msg.Payload)
		return msg.Header.Source, msg.Header.Tag, nil
	}
	if l.torndown {
		l.mu.Unlock()
		return 0, 0, types.NewTransportFailure(types.Cancelled, "substrate already torn down")
	}
	l.anyWaiter[ctxID] = append(l.anyWaiter[ctxID], pr)
	l.mu.Unlock()

	msg, ok := <-result
	if !ok {
		return 0, 0, types.NewTransportFailure(types.Cancelled, "recv cancelled by shutdown")
	}
	copy(buf, msg.Payload)
	return msg.Header.Source, msg.Header.Tag, nil
}

func (l *LocalSubstrate) deliver(buf []byte, msg types.Message, ev *types.Event) {
	if len(buf) < len(msg.Payload) {
		ev.Fire(types.NewProtocolError("recv buffer too small for arrived payload"))
		return
	}
	copy(buf, msg.Payload)
	ev.Fire(nil)
}

func (l *LocalSubstrate) handle(msg types.Message) {
	if msg.Header.Type != types.DATA {
		l.log.Warnf("dispatch received non-DATA message type %s, dropping", msg.Header.Type)
		return
	}
	key := msg.Key()

	l.mu.Lock()
	if waiters := l.anyWaiter[key.ContextID]; len(waiters) > 0 {
		pr := waiters[0]
		l.anyWaiter[key.ContextID] = waiters[1:]
		if len(l.anyWaiter[key.ContextID]) == 0 {
			delete(l.anyWaiter, key.ContextID)
		}
		l.mu.Unlock()
		pr.result <- msg
		return
	}
	if waiters := l.pending[key]; len(waiters) > 0 {
		pr := waiters[0]
		l.pending[key] = waiters[1:]
		if len(l.pending[key]) == 0 {
			delete(l.pending, key)
		}
		l.mu.Unlock()
		l.deliver(pr.buf, msg, pr.event)
		return
	}
	l.queued[key] = append(l.queued[key], msg)
	l.mu.Unlock()
}

// CreateContext implements core.Substrate via the cluster's in-process
// rendezvous: no coordinator round-trip is needed since every peer lives
// in the same process.
func (l *LocalSubstrate) CreateContext(members []types.VAddr, parent types.Context) (types.Context, error) {
	if !containsVAddr(members, l.local) {
		return types.InvalidContext(), nil
	}
	id := l.cluster.rendezvousContext(members)
	return types.NewContext(id, parent.Name(), members, l.local), nil
}

// SplitContext implements core.Substrate: partitions parent by rank
// parity, same rule as core.Transport.SplitContext.
func (l *LocalSubstrate) SplitContext(parent types.Context) (types.Context, error) {
	parity := parent.Rank() % 2
	var half []types.VAddr
	for _, m := range parent.Members() {
		if parent.RankOf(m)%2 == parity {
			half = append(half, m)
		}
	}
	return l.CreateContext(half, parent)
}

// Barrier implements core.Substrate.
func (l *LocalSubstrate) Barrier(ctx types.Context) error { return l.collectives.Barrier(ctx) }

// Broadcast implements core.Substrate.
func (l *LocalSubstrate) Broadcast(root types.VAddr, ctx types.Context, buf []byte) error {
	return l.collectives.Broadcast(root, ctx, buf)
}

// Gather implements core.Substrate.
func (l *LocalSubstrate) Gather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error {
	return l.collectives.Gather(root, ctx, in, out)
}

// GatherVar implements core.Substrate.
func (l *LocalSubstrate) GatherVar(root types.VAddr, ctx types.Context, in []byte, out [][]byte, counts []int) error {
	return l.collectives.GatherVar(root, ctx, in, out, counts)
}

// AllGather implements core.Substrate.
func (l *LocalSubstrate) AllGather(root types.VAddr, ctx types.Context, in []byte, out [][]byte) error {
	return l.collectives.AllGather(root, ctx, in, out)
}

// Scatter implements core.Substrate.
func (l *LocalSubstrate) Scatter(root types.VAddr, ctx types.Context, in [][]byte, out *[]byte) error {
	return l.collectives.Scatter(root, ctx, in, out)
}

// AllToAll implements core.Substrate.
func (l *LocalSubstrate) AllToAll(ctx types.Context, in [][]byte, out [][]byte) error {
	return l.collectives.AllToAll(ctx, in, out)
}

// Reduce implements core.Substrate.
func (l *LocalSubstrate) Reduce(root types.VAddr, ctx types.Context, op core.ReduceOp, in []byte, out *[]byte) error {
	return l.collectives.Reduce(root, ctx, op, in, out)
}

// AllReduce implements core.Substrate.
func (l *LocalSubstrate) AllReduce(ctx types.Context, op core.ReduceOp, in []byte, out *[]byte) error {
	return l.collectives.AllReduce(ctx, op, in, out)
}

// Destruct implements core.Substrate: cancels every outstanding posted
// recv and any-waiter. There is no real teardown handshake to run since
// there is no network to tear down.
func (l *LocalSubstrate) Destruct() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.torndown = true
	for key, waiters := range l.pending {
		for _, pr := range waiters {
			pr.event.Fire(types.NewTransportFailure(types.Cancelled, "substrate destructed"))
		}
		delete(l.pending, key)
	}
	for ctxID, waiters := range l.anyWaiter {
		for _, pr := range waiters {
			close(pr.result)
		}
		delete(l.anyWaiter, ctxID)
	}
	return nil
}

var _ core.Substrate = (*LocalSubstrate)(nil)
