package core

import (
	"sync"

	"github.com/graybat-go/cage/pkg/cage/definition"
	"github.com/graybat-go/cage/pkg/cage/types"
)

// pendingRecv is a posted recv request waiting for a DATA message on its
// key, or a match-any waiter with key.Tag/Source ignored.
type pendingRecv struct {
	buf      []byte
	event    *types.Event
	matchAny bool
	result   chan types.Message
}

// dispatchTable is the owner of the recv-request table and the per-key
// deques of queued, unmatched DATA messages, shared by every Substrate
// implementation regardless of how bytes actually move on the wire. All
// access goes through its mutex; the dispatcher goroutine and
// application goroutines both call into it.
type dispatchTable struct {
	mu        sync.Mutex
	pending   map[types.MatchKey][]*pendingRecv
	queued    map[types.MatchKey][]types.Message
	anyWaiter map[types.ContextID][]*pendingRecv
	log       definition.Logger
	torndown  bool
}

func newDispatchTable(log definition.Logger) *dispatchTable {
	return &dispatchTable{
		pending:   make(map[types.MatchKey][]*pendingRecv),
		queued:    make(map[types.MatchKey][]types.Message),
		anyWaiter: make(map[types.ContextID][]*pendingRecv),
		log:       log,
	}
}

// postRecv registers a pending receive for key. If a DATA message is
// already queued under key (drains-queued-first, per the Open Question
// resolution), it is matched immediately and the Event fires before
// postRecv returns.
func (d *dispatchTable) postRecv(key types.MatchKey, buf []byte) *types.Event {
	ev := types.NewEvent(key.Source, key.Tag)
	d.mu.Lock()
	if q := d.queued[key]; len(q) > 0 {
		msg := q[0]
		d.queued[key] = q[1:]
		if len(d.queued[key]) == 0 {
			delete(d.queued, key)
		}
		d.mu.Unlock()
		d.deliver(buf, msg, ev)
		return ev
	}
	d.pending[key] = append(d.pending[key], &pendingRecv{buf: buf, event: ev})
	d.mu.Unlock()
	return ev
}

// postAny registers a blocking match-any waiter for ctx and blocks until
// a message arrives or the waiter is cancelled by teardown.
func (d *dispatchTable) postAny(ctxID types.ContextID, buf []byte) (types.VAddr, types.Tag, error) {
	result := make(chan types.Message, 1)
	pr := &pendingRecv{buf: buf, matchAny: true, result: result}

	d.mu.Lock()
	// Drain-queued-first: look for any already-queued DATA message in
	// this context before registering as a waiter.
	for key, msgs := range d.queued {
		if key.ContextID != ctxID || len(msgs) == 0 {
			continue
		}
		msg := msgs[0]
		d.queued[key] = msgs[1:]
		if len(d.queued[key]) == 0 {
			delete(d.queued, key)
		}
		d.mu.Unlock()
		n := copy(buf, msg.Payload)
		_ = n
		return msg.Header.Source, msg.Header.Tag, nil
	}
	if d.torndown {
		d.mu.Unlock()
		return 0, 0, types.NewTransportFailure(types.Cancelled, "substrate already torn down")
	}
	d.anyWaiter[ctxID] = append(d.anyWaiter[ctxID], pr)
	d.mu.Unlock()

	msg, ok := <-result
	if !ok {
		return 0, 0, types.NewTransportFailure(types.Cancelled, "recv cancelled by shutdown")
	}
	copy(buf, msg.Payload)
	return msg.Header.Source, msg.Header.Tag, nil
}

func (d *dispatchTable) deliver(buf []byte, msg types.Message, ev *types.Event) {
	if len(buf) < len(msg.Payload) {
		ev.Fire(types.NewProtocolError("recv buffer too small for arrived payload"))
		return
	}
	copy(buf, msg.Payload)
	ev.Fire(nil)
}

// Handle classifies an arrived message and either fulfills a posted
// recv, an any-waiter, or queues it for later matching. Messages are not
// checked for duplicate delivery: the message ID is not consulted, and a
// DATA message that matches no waiter is always queued.
func (d *dispatchTable) Handle(msg types.Message) {
	if msg.Header.Type != types.DATA {
		d.log.Warnf("dispatch table received non-DATA message type %s, dropping", msg.Header.Type)
		return
	}
	key := msg.Key()

	d.mu.Lock()
	if waiters := d.anyWaiter[key.ContextID]; len(waiters) > 0 {
		pr := waiters[0]
		d.anyWaiter[key.ContextID] = waiters[1:]
		if len(d.anyWaiter[key.ContextID]) == 0 {
			delete(d.anyWaiter, key.ContextID)
		}
		d.mu.Unlock()
		pr.result <- msg
		return
	}
	if waiters := d.pending[key]; len(waiters) > 0 {
		pr := waiters[0]
		d.pending[key] = waiters[1:]
		if len(d.pending[key]) == 0 {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		d.deliver(pr.buf, msg, pr.event)
		return
	}
	d.queued[key] = append(d.queued[key], msg)
	d.mu.Unlock()
}

// cancelAll transitions every outstanding posted recv and any-waiter to
// Cancelled, used during Destruct.
func (d *dispatchTable) cancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.torndown = true
	for key, waiters := range d.pending {
		for _, pr := range waiters {
			pr.event.Fire(types.NewTransportFailure(types.Cancelled, "transport destructed"))
		}
		delete(d.pending, key)
	}
	for ctxID, waiters := range d.anyWaiter {
		for _, pr := range waiters {
			close(pr.result)
		}
		delete(d.anyWaiter, ctxID)
	}
}

// failPending transitions every posted recv keyed to src to a PeerGone
// failure, used when the control channel observes src's DESTRUCT while
// recvs to it are still outstanding. Match-any waiters are not affected.
func (d *dispatchTable) failPending(src types.VAddr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, waiters := range d.pending {
		if key.Source != src {
			continue
		}
		for _, pr := range waiters {
			pr.event.Fire(types.NewTransportFailure(types.PeerGone, src.String()))
		}
		delete(d.pending, key)
	}
}
