package types

import "encoding/json"

// Control-plane message bodies. Application DATA payloads are opaque
// (serialization policy is left to the caller); control bodies are
// internal to this module and are JSON-encoded into Message.Payload.

// VaddrRequestBody is the payload of a VADDR_REQUEST.
type VaddrRequestBody struct {
	EndpointURI      string `json:"endpoint_uri"`
	ContextSizeHint  int    `json:"context_size_hint"`
	ContextName      string `json:"context_name"`
}

// ConfirmBody is the payload of a CONFIRM reply to VADDR_REQUEST.
type ConfirmBody struct {
	AssignedVAddr VAddr `json:"assigned_vaddr"`
}

// VaddrLookupBody is the payload of a VADDR_LOOKUP.
type VaddrLookupBody struct {
	VAddr VAddr `json:"vaddr"`
}

// PeerBody is the payload of a PEER reply to VADDR_LOOKUP.
type PeerBody struct {
	EndpointURI string `json:"endpoint_uri"`
}

// ContextRequestBody is the payload of a CONTEXT_REQUEST.
type ContextRequestBody struct {
	ContextName string `json:"context_name"`
}

// ContextReplyBody is the payload of the reply to a satisfied
// CONTEXT_REQUEST: the ordered VAddr list constituting the context and
// its id.
type ContextReplyBody struct {
	ContextID ContextID `json:"context_id"`
	Members   []VAddr   `json:"members"`
}

// ContextInitBody is the payload of a CONTEXT_INIT sent by every member
// to the coordinator during createContext.
type ContextInitBody struct {
	Members []VAddr `json:"members"`
}

// SplitBody is the payload of a SPLIT control message.
type SplitBody struct {
	ContextID ContextID `json:"context_id"`
	Members   []VAddr   `json:"members"`
}

// Marshal encodes v as a Message payload.
func Marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Control bodies are always JSON-marshalable plain structs;
		// a failure here indicates a programming error, not a runtime
		// condition callers can recover from.
		panic(err)
	}
	return data
}

// Unmarshal decodes a Message payload into v.
func Unmarshal(payload []byte, v interface{}) error {
	return json.Unmarshal(payload, v)
}
