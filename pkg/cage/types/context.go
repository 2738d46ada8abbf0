package types

// Context is a named group of peers plus a unique context identifier. It
// is the scope for collectives and for tag matching. Membership is fixed
// for the context's lifetime.
type Context struct {
	id      ContextID
	name    string
	members []VAddr
	local   VAddr
}

// NewContext builds a Context from an ordered member list. members must
// already be in the order that defines each peer's rank.
func NewContext(id ContextID, name string, members []VAddr, local VAddr) Context {
	cp := make([]VAddr, len(members))
	copy(cp, members)
	return Context{id: id, name: name, members: cp, local: local}
}

// InvalidContext returns a handle in the "invalid" state: a peer that is
// not in the member list of a created context receives this and must not
// invoke communication operations on it.
func InvalidContext() Context {
	return Context{id: InvalidContextID}
}

// Valid reports whether this context can be used for communication.
func (c Context) Valid() bool {
	return c.id != InvalidContextID
}

// ID returns the context identifier.
func (c Context) ID() ContextID {
	return c.id
}

// Name returns the context's name, as supplied at creation.
func (c Context) Name() string {
	return c.name
}

// Size returns the number of members of the context.
func (c Context) Size() int {
	return len(c.members)
}

// Members returns the ordered VAddr list constituting the context.
// The returned slice must not be mutated by the caller.
func (c Context) Members() []VAddr {
	return c.members
}

// Rank returns the context-local rank of the local peer: the index of
// its VAddr in the context's ordered member list.
func (c Context) Rank() int {
	return c.RankOf(c.local)
}

// RankOf returns the index of vaddr within the context's member list, or
// -1 if vaddr is not a member.
func (c Context) RankOf(vaddr VAddr) int {
	for i, m := range c.members {
		if m == vaddr {
			return i
		}
	}
	return -1
}

// Root returns the VAddr conventionally used to coordinate collective
// bootstrap operations: the lowest VAddr in the context.
func (c Context) Root() VAddr {
	root := c.members[0]
	for _, m := range c.members[1:] {
		if m < root {
			root = m
		}
	}
	return root
}

// LocalVAddr returns the VAddr of the local peer within this context.
func (c Context) LocalVAddr() VAddr {
	return c.local
}

// Contains reports whether vaddr is a member of the context.
func (c Context) Contains(vaddr VAddr) bool {
	return c.RankOf(vaddr) >= 0
}
