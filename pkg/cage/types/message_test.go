package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Type:        DATA,
		Source:      VAddr(7),
		Destination: VAddr(11),
		ContextID:   ContextID(3),
		Tag:         Tag(42),
		MessageID:   99,
		PayloadLen:  5,
	}
	decoded, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestMessageRoundTrip(t *testing.T) {
	m := Message{
		Header:  Header{Type: DATA, Source: 1, Destination: 2, ContextID: 1, Tag: 5, MessageID: 0},
		Payload: []byte("hello world"),
	}
	decoded, err := DecodeMessage(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, m.Header.Type, decoded.Header.Type)
	assert.Equal(t, m.Header.Source, decoded.Header.Source)
	assert.Equal(t, m.Header.Destination, decoded.Header.Destination)
	assert.Equal(t, m.Payload, decoded.Payload)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2, 3})
	require.Error(t, err)
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestDecodeHeaderRejectsUnknownType(t *testing.T) {
	h := Header{Type: MessageType(200)}
	buf := h.Encode()
	_, err := DecodeHeader(buf)
	require.Error(t, err)
}

func TestDecodeMessageRejectsShortPayload(t *testing.T) {
	h := Header{Type: DATA, PayloadLen: 100}
	_, err := DecodeMessage(h.Encode())
	require.Error(t, err)
}

func TestMessageKeyMatchesMatchKey(t *testing.T) {
	m := Message{Header: Header{Source: 3, Tag: 9, ContextID: 1}}
	assert.Equal(t, MatchKey{Source: 3, Tag: 9, ContextID: 1}, m.Key())
}
