// Package signaling implements the standalone rendezvous process: VAddr
// assignment, endpoint discovery and context bootstrap. State is
// in-memory and non-durable — a restart during a run is fatal to
// participants.
package signaling

import (
	"sync"

	zmq "github.com/pebbe/zmq4"

	"github.com/graybat-go/cage/pkg/cage/definition"
	"github.com/graybat-go/cage/pkg/cage/types"
)

// pendingContext accumulates VADDR_REQUESTs sharing one context_name
// until its size hint is satisfied.
type pendingContext struct {
	sizeHint int
	members  []types.VAddr
	id       types.ContextID
	ready    bool
}

// Server is the rendezvous process. It is a single-goroutine REP loop:
// one request, one reply, always in order, so the in-memory state never
// needs its own lock beyond what concurrent signaling clients require —
// but VaddrLookup/ContextRequest can interleave with VaddrRequest from a
// different peer's retry loop, so the state is still mutex-guarded to
// let Serve be called from a pool of workers if a deployment wants that.
type Server struct {
	mu       sync.Mutex
	log      definition.Logger
	uri      string
	sock     *zmq.Socket
	endpoint map[types.VAddr]string
	nextVA   uint32
	contexts map[string]*pendingContext
	nextCtxID uint32
}

// NewServer constructs a Server bound to uri. Call Serve to run it.
func NewServer(uri string, log definition.Logger) (*Server, error) {
	sock, err := zmq.NewSocket(zmq.REP)
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(uri); err != nil {
		sock.Close()
		return nil, err
	}
	return &Server{
		log:      log,
		uri:      uri,
		sock:     sock,
		endpoint: make(map[types.VAddr]string),
		contexts: make(map[string]*pendingContext),
		nextCtxID: 1, // 0 is InvalidContextID
	}, nil
}

// Close releases the server's socket.
func (s *Server) Close() error {
	return s.sock.Close()
}

// Serve processes requests until the socket is closed or recvs an
// error. It is synchronous: each iteration does exactly one
// request/reply round-trip over a REP socket.
func (s *Server) Serve() error {
	for {
		raw, err := s.sock.RecvBytes(0)
		if err != nil {
			return err
		}
		msg, err := types.DecodeMessage(raw)
		if err != nil {
			s.log.Errorf("signaling server: malformed request: %v", err)
			continue
		}
		reply := s.handle(msg)
		if _, err := s.sock.SendBytes(reply.Encode(), 0); err != nil {
			return err
		}
	}
}

func (s *Server) handle(msg types.Message) types.Message {
	switch msg.Header.Type {
	case types.VaddrRequest:
		return s.handleVaddrRequest(msg)
	case types.VaddrLookup:
		return s.handleVaddrLookup(msg)
	case types.ContextRequest:
		return s.handleContextRequest(msg)
	default:
		s.log.Warnf("signaling server: unexpected request type %s", msg.Header.Type)
		return types.Message{Header: types.Header{Type: types.Retry}}
	}
}

func (s *Server) handleVaddrRequest(msg types.Message) types.Message {
	var body types.VaddrRequestBody
	if err := types.Unmarshal(msg.Payload, &body); err != nil {
		s.log.Errorf("signaling server: bad VADDR_REQUEST body: %v", err)
		return types.Message{Header: types.Header{Type: types.Retry}}
	}

	s.mu.Lock()
	va := types.VAddr(s.nextVA)
	s.nextVA++
	s.endpoint[va] = body.EndpointURI

	pc, ok := s.contexts[body.ContextName]
	if !ok {
		pc = &pendingContext{sizeHint: body.ContextSizeHint, id: types.ContextID(s.nextCtxID)}
		s.nextCtxID++
		s.contexts[body.ContextName] = pc
	}
	if len(pc.members) < pc.sizeHint {
		pc.members = append(pc.members, va)
		if len(pc.members) == pc.sizeHint {
			pc.ready = true
		}
	}
	s.mu.Unlock()

	s.log.Infof("signaling server: assigned %s to %s (context %q)", va, body.EndpointURI, body.ContextName)
	return types.Message{
		Header:  types.Header{Type: types.Confirm},
		Payload: types.Marshal(types.ConfirmBody{AssignedVAddr: va}),
	}
}

func (s *Server) handleVaddrLookup(msg types.Message) types.Message {
	var body types.VaddrLookupBody
	if err := types.Unmarshal(msg.Payload, &body); err != nil {
		return types.Message{Header: types.Header{Type: types.Retry}}
	}

	s.mu.Lock()
	uri, ok := s.endpoint[body.VAddr]
	s.mu.Unlock()

	if !ok {
		return types.Message{Header: types.Header{Type: types.Retry}}
	}
	return types.Message{
		Header:  types.Header{Type: types.Peer},
		Payload: types.Marshal(types.PeerBody{EndpointURI: uri}),
	}
}

func (s *Server) handleContextRequest(msg types.Message) types.Message {
	var body types.ContextRequestBody
	if err := types.Unmarshal(msg.Payload, &body); err != nil {
		return types.Message{Header: types.Header{Type: types.Retry}}
	}

	s.mu.Lock()
	pc, ok := s.contexts[body.ContextName]
	ready := ok && pc.ready
	var reply types.ContextReplyBody
	if ready {
		reply = types.ContextReplyBody{ContextID: pc.id, Members: append([]types.VAddr(nil), pc.members...)}
	}
	s.mu.Unlock()

	if !ready {
		return types.Message{Header: types.Header{Type: types.Retry}}
	}
	return types.Message{
		Header:  types.Header{Type: types.ContextRequest},
		Payload: types.Marshal(reply),
	}
}
