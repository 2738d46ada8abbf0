package types

import (
	"encoding/binary"
	"fmt"
)

// MessageType is the closed set of framed message kinds the substrate
// understands. Receiving a header with an unknown type is a fatal
// protocol error.
type MessageType uint8

const (
	// DATA carries an application payload routed to a posted recv.
	DATA MessageType = iota
	// VaddrRequest asks the signaling server for a fresh VAddr.
	VaddrRequest
	// VaddrLookup asks the signaling server for a peer's endpoint URI.
	VaddrLookup
	// ContextInit is sent by every member to the context coordinator
	// during createContext.
	ContextInit
	// ContextRequest asks the signaling server for a named context's
	// membership once it is complete.
	ContextRequest
	// Peer replies to VaddrLookup with an endpoint URI.
	Peer
	// Confirm replies to VaddrRequest with the assigned VAddr.
	Confirm
	// Split names a split notification. SplitContext runs over
	// ContextInit and Ack and does not send it.
	Split
	// Ack acknowledges a control-plane request.
	Ack
	// Retry tells the caller to back off and ask again.
	Retry
	// Destruct announces peer teardown on the control channel.
	Destruct
)

func (t MessageType) String() string {
	switch t {
	case DATA:
		return "DATA"
	case VaddrRequest:
		return "VADDR_REQUEST"
	case VaddrLookup:
		return "VADDR_LOOKUP"
	case ContextInit:
		return "CONTEXT_INIT"
	case ContextRequest:
		return "CONTEXT_REQUEST"
	case Peer:
		return "PEER"
	case Confirm:
		return "CONFIRM"
	case Split:
		return "SPLIT"
	case Ack:
		return "ACK"
	case Retry:
		return "RETRY"
	case Destruct:
		return "DESTRUCT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// HeaderSize is the fixed, little-endian wire size of a Header in bytes.
const HeaderSize = 32

// Header is the fixed-layout prefix of every framed message.
//
//	offset  size  field
//	0       1     message type
//	1       3     reserved (zero)
//	4       4     source VAddr
//	8       4     destination VAddr
//	12      4     context ID
//	16      4     tag
//	20      4     message ID
//	24      8     payload length
type Header struct {
	Type        MessageType
	Source      VAddr
	Destination VAddr
	ContextID   ContextID
	Tag         Tag
	MessageID   uint32
	PayloadLen  uint64
}

// Encode writes the header in its 32-byte little-endian wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Type)
	// bytes 1-3 are reserved and left zero.
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Source))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Destination))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.ContextID))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.Tag))
	binary.LittleEndian.PutUint32(buf[20:24], h.MessageID)
	binary.LittleEndian.PutUint64(buf[24:32], h.PayloadLen)
	return buf
}

// DecodeHeader parses a 32-byte wire header. It returns a ProtocolError
// if buf is short or the message type is not in the closed set.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, NewProtocolError(fmt.Sprintf("short header: got %d bytes, want %d", len(buf), HeaderSize))
	}
	t := MessageType(buf[0])
	if !validMessageType(t) {
		return Header{}, NewProtocolError(fmt.Sprintf("unknown message type %d", buf[0]))
	}
	return Header{
		Type:        t,
		Source:      VAddr(binary.LittleEndian.Uint32(buf[4:8])),
		Destination: VAddr(binary.LittleEndian.Uint32(buf[8:12])),
		ContextID:   ContextID(binary.LittleEndian.Uint32(buf[12:16])),
		Tag:         Tag(binary.LittleEndian.Uint32(buf[16:20])),
		MessageID:   binary.LittleEndian.Uint32(buf[20:24]),
		PayloadLen:  binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

func validMessageType(t MessageType) bool {
	return t <= Destruct
}

// Message is a framed unit of transport: a Header plus its opaque
// payload bytes.
type Message struct {
	Header  Header
	Payload []byte
}

// Encode serializes the message to its wire form (header followed by
// payload).
func (m Message) Encode() []byte {
	m.Header.PayloadLen = uint64(len(m.Payload))
	out := m.Header.Encode()
	return append(out, m.Payload...)
}

// DecodeMessage parses a full wire message: exactly HeaderSize+payload
// length bytes.
func DecodeMessage(buf []byte) (Message, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Message{}, err
	}
	want := HeaderSize + int(h.PayloadLen)
	if len(buf) < want {
		return Message{}, NewProtocolError(fmt.Sprintf("short message: got %d bytes, want %d", len(buf), want))
	}
	payload := make([]byte, h.PayloadLen)
	copy(payload, buf[HeaderSize:want])
	return Message{Header: h, Payload: payload}, nil
}

// MatchKey identifies a posted recv request or a queued DATA message:
// the triple (source, tag, context) messages are ordered within.
type MatchKey struct {
	Source    VAddr
	Tag       Tag
	ContextID ContextID
}

// Key returns the MatchKey that a DATA message dispatches under.
func (m Message) Key() MatchKey {
	return MatchKey{Source: m.Header.Source, Tag: m.Header.Tag, ContextID: m.Header.ContextID}
}
