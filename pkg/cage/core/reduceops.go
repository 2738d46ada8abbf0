package core

import "encoding/binary"

// EncodeUint32 and DecodeUint32 are small helpers for the common case of
// a collective payload that is a single uint32: vertex ids, ranks,
// counters. Application code is free to ignore these and frame its own
// payloads; serialization policy proper is out of scope (see
// types/signaling.go's doc comment for the same reasoning applied to
// control bodies).
func EncodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func DecodeUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// SumUint32 is a ReduceOp folding two uint32-encoded payloads by addition.
func SumUint32(a, b []byte) []byte {
	return EncodeUint32(DecodeUint32(a) + DecodeUint32(b))
}
