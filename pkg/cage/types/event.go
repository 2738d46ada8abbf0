package types

import "sync"

// Event is the handle returned by any asynchronous send or recv. It
// transitions pending -> ready exactly once. Events are movable but
// non-copyable in spirit: pass *Event, never copy the struct.
//
// Destroying a pending Event without waiting on it is "detached
// completion" — the underlying transfer still runs to completion on the
// dispatcher goroutine, it is simply unobservable. Callers get this for
// free by just letting the Event go out of scope; nothing to call.
type Event struct {
	mu       sync.Mutex
	done     chan struct{}
	fired    bool
	srcVAddr VAddr
	tag      Tag
	err      error
}

// NewEvent returns a pending Event for a transfer identified by
// (srcVAddr, tag) — the values a blocking match-any Recv reports back.
func NewEvent(src VAddr, tag Tag) *Event {
	return &Event{done: make(chan struct{}), srcVAddr: src, tag: tag}
}

// Fire transitions the event to ready, recording err (nil on success).
// Fire is idempotent: only the first call has an effect.
func (e *Event) Fire(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fired {
		return
	}
	e.fired = true
	e.err = err
	close(e.done)
}

// Ready performs a non-blocking poll of the event's state.
func (e *Event) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}

// Wait blocks until the event is ready and returns the terminal error,
// if any.
func (e *Event) Wait() error {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Source returns the VAddr this transfer matched on. Only meaningful
// once Ready.
func (e *Event) Source() VAddr {
	return e.srcVAddr
}

// Tag returns the tag this transfer matched on. Only meaningful once
// Ready.
func (e *Event) Tag() Tag {
	return e.tag
}
