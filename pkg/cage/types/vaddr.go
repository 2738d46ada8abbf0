// Package types holds the data model shared by the substrate and the
// graph overlay: virtual addresses, contexts, tags, the wire message
// header and the graph description.
package types

import "fmt"

// VAddr is a virtual address uniquely naming a peer within the initial
// context. VAddrs are dense, zero-based and assigned by the signaling
// server in arrival order.
type VAddr uint32

func (v VAddr) String() string {
	return fmt.Sprintf("vaddr(%d)", uint32(v))
}

// Tag distinguishes concurrent message streams between the same pair of
// peers within a context. The overlay derives tags from edge identifiers;
// the substrate treats them opaquely.
type Tag uint32

// CollectiveTagSpan is the number of tag values reserved for the
// collective engine. Edges may use tags in [0, EdgeTagLimit); graph
// construction must reject more edges than that.
const CollectiveTagSpan = 16

// EdgeTagLimit is the first tag value reserved for collectives.
const EdgeTagLimit Tag = Tag(^uint32(0)) - CollectiveTagSpan + 1

// IsCollectiveTag reports whether t falls in the reserved collective span.
func IsCollectiveTag(t Tag) bool {
	return t >= EdgeTagLimit
}

// ContextID uniquely identifies a Context for the lifetime of a run.
type ContextID uint32

// InvalidContextID marks a Context handle that a peer must not use for
// communication operations (it was not a member of the created context).
const InvalidContextID ContextID = 0
