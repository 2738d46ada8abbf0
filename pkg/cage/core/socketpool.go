package core

import (
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/graybat-go/cage/pkg/cage/signaling"
	"github.com/graybat-go/cage/pkg/cage/types"
)

// socketPool owns the per-peer PUSH sockets (one per destination, lazily
// connected once its endpoint URI is known) plus the two PULL sockets
// this peer binds for its own main and control channels. Per-destination
// PUSH sockets are what give the ordering contract its foundation: a
// receiver cannot observe reordering of two messages the same sender
// pushed, since they share one connection.
type socketPool struct {
	mu       sync.Mutex
	ctx      *zmq.Context
	push     map[types.VAddr]*zmq.Socket
	ctrl     map[types.VAddr]*zmq.Socket
	sendLock map[types.VAddr]*sync.Mutex

	recvSock *zmq.Socket
	ctrlSock *zmq.Socket

	peerURI string
	ctrlURI string

	signalingURI  string
	sendTimeout   time.Duration
	recvTimeout   time.Duration
}

func newSocketPool(zctx *zmq.Context, cfg *Config) (*socketPool, error) {
	p := &socketPool{
		ctx:          zctx,
		push:         make(map[types.VAddr]*zmq.Socket),
		ctrl:         make(map[types.VAddr]*zmq.Socket),
		sendLock:     make(map[types.VAddr]*sync.Mutex),
		signalingURI: cfg.SignalingURI,
		sendTimeout:  cfg.sendTimeout(),
		recvTimeout:  cfg.recvTimeout(),
	}

	recvSock, uri, err := bindToNextFreePort(zctx, zmq.PULL, cfg.PeerURI)
	if err != nil {
		return nil, err
	}
	p.recvSock = recvSock
	p.peerURI = uri

	ctrlSock, ctrlURI, err := bindToNextFreePort(zctx, zmq.PULL, cfg.PeerURI)
	if err != nil {
		return nil, err
	}
	p.ctrlSock = ctrlSock
	p.ctrlURI = ctrlURI

	if err := recvSock.SetRcvtimeo(p.recvTimeout); err != nil {
		return nil, err
	}
	if err := ctrlSock.SetRcvtimeo(p.recvTimeout); err != nil {
		return nil, err
	}
	return p, nil
}

// bindToNextFreePort binds socket type kind to base, incrementing the
// port until one succeeds, mirroring the original ZMQ policy's
// bindToNextFreePort.
func bindToNextFreePort(zctx *zmq.Context, kind zmq.Type, base string) (*zmq.Socket, string, error) {
	sock, err := zctx.NewSocket(kind)
	if err != nil {
		return nil, "", err
	}
	host, port, err := splitURI(base)
	if err != nil {
		sock.Close()
		return nil, "", err
	}
	for {
		uri := joinURI(host, port)
		if err := sock.Bind(uri); err == nil {
			return sock, uri, nil
		}
		port++
	}
}

// ensurePush returns the PUSH socket for dst's main channel, connecting
// it lazily (resolving dst's endpoint URI via the signaling server on
// first use, which is how a late-arriving peer is still discoverable).
func (p *socketPool) ensurePush(dst types.VAddr) (*zmq.Socket, error) {
	return p.ensureSocket(dst, p.push, false)
}

// ensureCtrlPush returns the PUSH socket for dst's control channel.
func (p *socketPool) ensureCtrlPush(dst types.VAddr) (*zmq.Socket, error) {
	return p.ensureSocket(dst, p.ctrl, true)
}

// sendLockFor returns the mutex serializing sends on dst's PUSH socket,
// creating it on first use. Callers must Lock it synchronously, before
// handing the actual send off to another goroutine, so that lock
// acquisition happens in call order and the send order matches.
func (p *socketPool) sendLockFor(dst types.VAddr) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.sendLock[dst]
	if !ok {
		m = &sync.Mutex{}
		p.sendLock[dst] = m
	}
	return m
}

func (p *socketPool) ensureSocket(dst types.VAddr, set map[types.VAddr]*zmq.Socket, ctrl bool) (*zmq.Socket, error) {
	p.mu.Lock()
	if s, ok := set[dst]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	client, err := signaling.NewClient(p.signalingURI)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	// A late-arriving peer may not be registered yet; block (with
	// backoff, bounded by recvTimeout) until VADDR_LOOKUP succeeds.
	uri, err := client.LookupPeer(dst, p.recvTimeout)
	if err != nil {
		return nil, err
	}
	if ctrl {
		uri = controlURI(uri)
	}

	sock, err := p.ctx.NewSocket(zmq.PUSH)
	if err != nil {
		return nil, err
	}
	if err := sock.SetSndtimeo(p.sendTimeout); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Connect(uri); err != nil {
		sock.Close()
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := set[dst]; ok {
		sock.Close()
		return existing, nil
	}
	set[dst] = sock
	return sock, nil
}

// close releases every socket owned by the pool.
func (p *socketPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.push {
		s.Close()
	}
	for _, s := range p.ctrl {
		s.Close()
	}
	p.recvSock.Close()
	p.ctrlSock.Close()
}
