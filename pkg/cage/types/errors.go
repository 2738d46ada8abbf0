package types

import "fmt"

// ConfigError marks a malformed URI, a bad timeout, or a duplicate
// context name with a conflicting size hint. Fatal to the process.
type ConfigError struct {
	Reason string
}

func NewConfigError(reason string) *ConfigError {
	return &ConfigError{Reason: reason}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// ProtocolError marks an unknown message type, a duplicate delivery on a
// matched key, a mismatched header length, or an operation against a
// context that is not valid. Fatal to the process.
type ProtocolError struct {
	Reason string
}

func NewProtocolError(reason string) *ProtocolError {
	return &ProtocolError{Reason: reason}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// MappingError marks an unmapped VID or a graph description that
// disagrees across peers when the hash check is enabled.
type MappingError struct {
	Reason string
}

func NewMappingError(reason string) *MappingError {
	return &MappingError{Reason: reason}
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping error: %s", e.Reason)
}

// TransportFailureKind distinguishes the soft/retryable failure (Timeout)
// from the failures that are only ever surfaced, never retried
// automatically (PeerGone, Cancelled).
type TransportFailureKind int

const (
	// Timeout is soft and retryable: the transport core retries once
	// automatically before surfacing it.
	Timeout TransportFailureKind = iota
	// PeerGone is reported when a control channel observes a peer's
	// DESTRUCT while recvs to that peer are still pending.
	PeerGone
	// Cancelled marks a posted recv torn down by shutdown.
	Cancelled
)

func (k TransportFailureKind) String() string {
	switch k {
	case Timeout:
		return "Timeout"
	case PeerGone:
		return "PeerGone"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// TransportFailure is the error type carried by Events that fail.
type TransportFailure struct {
	Kind   TransportFailureKind
	Reason string
}

func NewTransportFailure(kind TransportFailureKind, reason string) *TransportFailure {
	return &TransportFailure{Kind: kind, Reason: reason}
}

func (e *TransportFailure) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transport failure: %s", e.Kind)
	}
	return fmt.Sprintf("transport failure: %s: %s", e.Kind, e.Reason)
}

// IsTimeout reports whether err is a TransportFailure of kind Timeout.
func IsTimeout(err error) bool {
	tf, ok := err.(*TransportFailure)
	return ok && tf.Kind == Timeout
}

// IsPeerGone reports whether err is a TransportFailure of kind PeerGone.
func IsPeerGone(err error) bool {
	tf, ok := err.(*TransportFailure)
	return ok && tf.Kind == PeerGone
}

// IsCancelled reports whether err is a TransportFailure of kind Cancelled.
func IsCancelled(err error) bool {
	tf, ok := err.(*TransportFailure)
	return ok && tf.Kind == Cancelled
}
