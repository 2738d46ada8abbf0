package core

import (
	"sync"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/graybat-go/cage/pkg/cage/definition"
	"github.com/graybat-go/cage/pkg/cage/signaling"
	"github.com/graybat-go/cage/pkg/cage/types"
)

// Transport is the ZMQ-backed Substrate: a brokerless, asynchronous
// socket transport built directly on PUSH/PULL sockets.
type Transport struct {
	cfg     *Config
	log     definition.Logger
	invoker Invoker

	zctx    *zmq.Context
	sockets *socketPool
	dispatch *dispatchTable

	local   types.VAddr
	initial types.Context

	idMu    sync.Mutex
	nextID  map[types.MatchKey]uint32

	ctxMu      sync.Mutex
	ctxCount   uint32
	ctxWaiters map[string][]chan types.ContextReplyBody
	ctxPending map[string]*ctxAggregation

	peerMu   sync.Mutex
	peerGone map[types.VAddr]bool

	teardownMu      sync.Mutex
	teardownWaiters map[types.VAddr]chan struct{}

	closeOnce sync.Once
	done      chan struct{}

	collectives *Collectives
}

// NewTransport bootstraps a peer onto the substrate: it opens its
// sockets, registers with the signaling server to receive a VAddr, waits
// for the initial context to fill, connects its push sockets lazily, and
// starts the dispatcher goroutine. It blocks until the initial context's
// membership is complete.
func NewTransport(cfg *Config) (*Transport, error) {
	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, err
	}

	pool, err := newSocketPool(zctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := signaling.NewClient(cfg.SignalingURI)
	if err != nil {
		pool.close()
		return nil, err
	}
	defer client.Close()

	va, err := client.RequestVAddr(pool.peerURI, cfg.ContextSize, cfg.ContextName)
	if err != nil {
		pool.close()
		return nil, err
	}

	members, contextID, err := client.RequestContext(cfg.ContextName, cfg.recvTimeout()*time.Duration(cfg.ContextSize+1))
	if err != nil {
		pool.close()
		return nil, err
	}

	initial := types.NewContext(contextID, cfg.ContextName, members, va)

	t := &Transport{
		cfg:      cfg,
		log:      cfg.Logger,
		invoker:  NewInvoker(),
		zctx:     zctx,
		sockets:  pool,
		dispatch: newDispatchTable(cfg.Logger),
		local:    va,
		initial:  initial,
		nextID:     make(map[types.MatchKey]uint32),
		ctxCount:   uint32(contextID),
		ctxWaiters: make(map[string][]chan types.ContextReplyBody),
		ctxPending: make(map[string]*ctxAggregation),
		peerGone:   make(map[types.VAddr]bool),
		done:       make(chan struct{}),
	}
	t.collectives = NewCollectives(t)

	t.invoker.Spawn(t.pollMain)
	t.invoker.Spawn(t.pollControl)

	return t, nil
}

func (t *Transport) LocalVAddr() types.VAddr { return t.local }

func (t *Transport) InitialContext() types.Context { return t.initial }

// pollMain drains the main PULL socket, classifying and dispatching each
// arrival. This is the transport's background dispatch loop, run on its
// own goroutine for the lifetime of the connection.
func (t *Transport) pollMain() {
	for {
		select {
		case <-t.done:
			return
		default:
		}
		raw, err := t.sockets.recvSock.RecvBytes(0)
		if err != nil {
			if e := zmq.AsErrno(err); e == zmq.Errno(syscall.EAGAIN) || e == zmq.Errno(zmq.ETIMEDOUT) {
				continue
			}
			select {
			case <-t.done:
				return
			default:
				t.log.Errorf("main dispatch loop: recv failed: %v", err)
				return
			}
		}
		msg, err := types.DecodeMessage(raw)
		if err != nil {
			t.log.Fatalf("fatal protocol error decoding message: %v", err)
			return
		}
		switch msg.Header.Type {
		case types.DATA:
			t.dispatch.Handle(msg)
		default:
			t.log.Warnf("main channel received unexpected control type %s", msg.Header.Type)
		}
	}
}

// pollControl drains the control PULL socket: DESTRUCT notifications,
// CONTEXT_INIT requests and the coordinator's ACK replies.
func (t *Transport) pollControl() {
	for {
		select {
		case <-t.done:
			return
		default:
		}
		raw, err := t.sockets.ctrlSock.RecvBytes(0)
		if err != nil {
			if e := zmq.AsErrno(err); e == zmq.Errno(syscall.EAGAIN) || e == zmq.Errno(zmq.ETIMEDOUT) {
				continue
			}
			select {
			case <-t.done:
				return
			default:
				t.log.Errorf("control dispatch loop: recv failed: %v", err)
				return
			}
		}
		msg, err := types.DecodeMessage(raw)
		if err != nil {
			t.log.Fatalf("fatal protocol error decoding control message: %v", err)
			return
		}
		switch msg.Header.Type {
		case types.Destruct:
			t.recvDestruct(msg.Header.Source)
		case types.ContextInit:
			t.recvContextInit(msg)
		case types.Ack:
			t.recvContextAck(msg)
		default:
			t.log.Warnf("control channel received unexpected type %s", msg.Header.Type)
		}
	}
}

func (t *Transport) allocateMessageID(key types.MatchKey) uint32 {
	t.idMu.Lock()
	defer t.idMu.Unlock()
	id := t.nextID[key]
	t.nextID[key] = id + 1
	return id
}

// AsyncSend implements Substrate.
func (t *Transport) AsyncSend(dst types.VAddr, tag types.Tag, ctx types.Context, payload []byte) (*types.Event, error) {
	sock, err := t.sockets.ensurePush(dst)
	if err != nil {
		return nil, err
	}
	key := types.MatchKey{Source: t.local, Tag: tag, ContextID: ctx.ID()}
	msg := types.Message{
		Header: types.Header{
			Type:        types.DATA,
			Source:      t.local,
			Destination: dst,
			ContextID:   ctx.ID(),
			Tag:         tag,
			MessageID:   t.allocateMessageID(key),
		},
		Payload: payload,
	}
	ev := types.NewEvent(dst, tag)

	// Lock dst's send mutex here, synchronously, so that concurrent
	// AsyncSend calls to the same destination acquire it in call order;
	// the spawned goroutine below only unlocks once its own send has
	// gone out, so socket writes (and therefore receive order) match
	// send order.
	sendMu := t.sockets.sendLockFor(dst)
	sendMu.Lock()
	t.invoker.Spawn(func() {
		defer sendMu.Unlock()
		_, err := sock.SendBytes(msg.Encode(), 0)
		if err != nil {
			if e := zmq.AsErrno(err); e == zmq.Errno(syscall.EAGAIN) || e == zmq.Errno(zmq.ETIMEDOUT) {
				// One automatic retry on a soft timeout, per policy.
				_, err = sock.SendBytes(msg.Encode(), 0)
			}
		}
		if err != nil {
			ev.Fire(types.NewTransportFailure(types.Timeout, err.Error()))
			return
		}
		ev.Fire(nil)
	})
	return ev, nil
}

// AsyncRecv implements Substrate.
func (t *Transport) AsyncRecv(src types.VAddr, tag types.Tag, ctx types.Context, buf []byte) (*types.Event, error) {
	key := types.MatchKey{Source: src, Tag: tag, ContextID: ctx.ID()}
	return t.dispatch.postRecv(key, buf), nil
}

// Recv implements Substrate: blocking match-any within ctx, draining
// queued messages first.
func (t *Transport) Recv(ctx types.Context, buf []byte) (types.VAddr, types.Tag, error) {
	return t.dispatch.postAny(ctx.ID(), buf)
}

// Destruct implements Substrate.
func (t *Transport) Destruct() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.runTeardown()
	})
	return err
}
