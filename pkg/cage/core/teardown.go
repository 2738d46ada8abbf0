package core

import (
	"sync"
	"time"

	"github.com/graybat-go/cage/pkg/cage/types"
)

// sendControl frames and pushes msg on dst's control channel.
func (t *Transport) sendControl(dst types.VAddr, msg types.Message) error {
	sock, err := t.sockets.ensureCtrlPush(dst)
	if err != nil {
		return err
	}
	msg.Header.Source = t.local
	msg.Header.Destination = dst
	_, err = sock.SendBytes(msg.Encode(), 0)
	return err
}

// recvDestruct handles an inbound DESTRUCT: it records src's departure,
// fails any recvs still pending from src, and — if we are mid-teardown
// ourselves — counts it towards the set we are waiting on.
func (t *Transport) recvDestruct(src types.VAddr) {
	t.peerMu.Lock()
	t.peerGone[src] = true
	t.peerMu.Unlock()

	t.dispatch.failPending(src)

	t.teardownMu.Lock()
	if ch, ok := t.teardownWaiters[src]; ok {
		close(ch)
		delete(t.teardownWaiters, src)
	}
	t.teardownMu.Unlock()
}

// runTeardown sends DESTRUCT to every other peer in the initial context,
// waits for DESTRUCT from each, stops the dispatcher, and cancels
// outstanding unmatched recvs.
func (t *Transport) runTeardown() error {
	members := t.initial.Members()
	t.teardownMu.Lock()
	t.teardownWaiters = make(map[types.VAddr]chan struct{}, len(members))
	for _, m := range members {
		t.peerMu.Lock()
		gone := t.peerGone[m]
		t.peerMu.Unlock()
		if m == t.local || gone {
			continue
		}
		t.teardownWaiters[m] = make(chan struct{})
	}
	waiters := make([]chan struct{}, 0, len(t.teardownWaiters))
	peers := make([]types.VAddr, 0, len(t.teardownWaiters))
	for p, ch := range t.teardownWaiters {
		waiters = append(waiters, ch)
		peers = append(peers, p)
	}
	t.teardownMu.Unlock()

	msg := types.Message{Header: types.Header{Type: types.Destruct, Source: t.local}}
	var wg sync.WaitGroup
	for _, p := range peers {
		p := p
		wg.Add(1)
		t.invoker.Spawn(func() {
			defer wg.Done()
			_ = t.sendControl(p, msg)
		})
	}
	wg.Wait()

	deadline := time.After(t.cfg.recvTimeout())
	for _, ch := range waiters {
		select {
		case <-ch:
		case <-deadline:
		}
	}

	close(t.done)
	t.dispatch.cancelAll()
	t.sockets.close()
	t.invoker.Stop()
	return nil
}
