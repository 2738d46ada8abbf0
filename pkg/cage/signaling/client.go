package signaling

import (
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/graybat-go/cage/pkg/cage/types"
)

// Client is the signaling-protocol counterpart used by a peer at
// bootstrap. It owns a single REQ socket connected to the server, since
// REQ/REP is strictly request-then-reply.
type Client struct {
	sock *zmq.Socket
}

// NewClient connects a REQ socket to the signaling server at uri.
func NewClient(uri string) (*Client, error) {
	sock, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		return nil, err
	}
	if err := sock.Connect(uri); err != nil {
		sock.Close()
		return nil, err
	}
	return &Client{sock: sock}, nil
}

// Close releases the client's socket.
func (c *Client) Close() error {
	return c.sock.Close()
}

func (c *Client) roundTrip(req types.Message) (types.Message, error) {
	if _, err := c.sock.SendBytes(req.Encode(), 0); err != nil {
		return types.Message{}, err
	}
	raw, err := c.sock.RecvBytes(0)
	if err != nil {
		return types.Message{}, err
	}
	return types.DecodeMessage(raw)
}

// RequestVAddr performs the VADDR_REQUEST exchange, returning the
// assigned VAddr.
func (c *Client) RequestVAddr(endpointURI string, contextSizeHint int, contextName string) (types.VAddr, error) {
	req := types.Message{
		Header:  types.Header{Type: types.VaddrRequest},
		Payload: types.Marshal(types.VaddrRequestBody{EndpointURI: endpointURI, ContextSizeHint: contextSizeHint, ContextName: contextName}),
	}
	reply, err := c.roundTrip(req)
	if err != nil {
		return 0, err
	}
	if reply.Header.Type != types.Confirm {
		return 0, types.NewProtocolError("signaling server did not CONFIRM a VADDR_REQUEST")
	}
	var body types.ConfirmBody
	if err := types.Unmarshal(reply.Payload, &body); err != nil {
		return 0, err
	}
	return body.AssignedVAddr, nil
}

// LookupPeer resolves vaddr's endpoint URI, retrying on RETRY with
// backoff up to timeout. This is how a peer arriving early still
// discovers a peer that registers later.
func (c *Client) LookupPeer(vaddr types.VAddr, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	backoff := 20 * time.Millisecond
	for {
		req := types.Message{
			Header:  types.Header{Type: types.VaddrLookup},
			Payload: types.Marshal(types.VaddrLookupBody{VAddr: vaddr}),
		}
		reply, err := c.roundTrip(req)
		if err != nil {
			return "", err
		}
		switch reply.Header.Type {
		case types.Peer:
			var body types.PeerBody
			if err := types.Unmarshal(reply.Payload, &body); err != nil {
				return "", err
			}
			return body.EndpointURI, nil
		case types.Retry:
			if time.Now().After(deadline) {
				return "", types.NewTransportFailure(types.Timeout, "VADDR_LOOKUP retries exhausted")
			}
			time.Sleep(backoff)
			if backoff < 500*time.Millisecond {
				backoff *= 2
			}
		default:
			return "", types.NewProtocolError("unexpected reply to VADDR_LOOKUP")
		}
	}
}

// RequestContext blocks, retrying with backoff, until the named
// context's membership is complete, then returns its ordered VAddr list
// and id.
func (c *Client) RequestContext(contextName string, timeout time.Duration) ([]types.VAddr, types.ContextID, error) {
	deadline := time.Now().Add(timeout)
	backoff := 20 * time.Millisecond
	for {
		req := types.Message{
			Header:  types.Header{Type: types.ContextRequest},
			Payload: types.Marshal(types.ContextRequestBody{ContextName: contextName}),
		}
		reply, err := c.roundTrip(req)
		if err != nil {
			return nil, 0, err
		}
		switch reply.Header.Type {
		case types.ContextRequest:
			var body types.ContextReplyBody
			if err := types.Unmarshal(reply.Payload, &body); err != nil {
				return nil, 0, err
			}
			return body.Members, body.ContextID, nil
		case types.Retry:
			if time.Now().After(deadline) {
				return nil, 0, types.NewTransportFailure(types.Timeout, "CONTEXT_REQUEST retries exhausted")
			}
			time.Sleep(backoff)
			if backoff < 500*time.Millisecond {
				backoff *= 2
			}
		default:
			return nil, 0, types.NewProtocolError("unexpected reply to CONTEXT_REQUEST")
		}
	}
}
