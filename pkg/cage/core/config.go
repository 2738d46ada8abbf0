package core

import (
	"time"

	"github.com/graybat-go/cage/pkg/cage/definition"
	"github.com/graybat-go/cage/pkg/cage/types"
)

// Default timeouts: 30s for both directions when not overridden.
const (
	DefaultSendTimeoutMs = 30000
	DefaultRecvTimeoutMs = 30000
)

// Config carries every recognized substrate option. There are no
// implicit defaults beyond SendTimeoutMs/RecvTimeoutMs and, when none is
// given, the default Logger.
type Config struct {
	// PeerURI is the local endpoint URI template, e.g. "tcp://host:5000".
	// The transport increments the port until a free one binds.
	PeerURI string

	// SignalingURI is the URI of the signaling server.
	SignalingURI string

	// ContextSize is the expected number of peers in the initial
	// context.
	ContextSize int

	// ContextName distinguishes concurrent runs sharing one signaling
	// server.
	ContextName string

	// SendTimeoutMs is the socket send timeout. Default 30000.
	SendTimeoutMs int

	// RecvTimeoutMs is the socket receive timeout. Default 30000.
	RecvTimeoutMs int

	// Logger overrides the default logrus-backed logger.
	Logger definition.Logger
}

// Option configures a Config in the functional-options style.
type Option func(*Config)

// WithPeerURI sets the local endpoint URI template.
func WithPeerURI(uri string) Option {
	return func(c *Config) { c.PeerURI = uri }
}

// WithSignalingURI sets the signaling server's URI.
func WithSignalingURI(uri string) Option {
	return func(c *Config) { c.SignalingURI = uri }
}

// WithContextSize sets the expected initial context size.
func WithContextSize(n int) Option {
	return func(c *Config) { c.ContextSize = n }
}

// WithContextName sets the name distinguishing concurrent runs.
func WithContextName(name string) Option {
	return func(c *Config) { c.ContextName = name }
}

// WithSendTimeout overrides the default send timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(c *Config) { c.SendTimeoutMs = int(d.Milliseconds()) }
}

// WithRecvTimeout overrides the default receive timeout.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *Config) { c.RecvTimeoutMs = int(d.Milliseconds()) }
}

// WithLogger overrides the default logger.
func WithLogger(l definition.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// NewConfig applies opts over the documented defaults and validates the
// result.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		SendTimeoutMs: DefaultSendTimeoutMs,
		RecvTimeoutMs: DefaultRecvTimeoutMs,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = definition.NewDefaultLogger(c.PeerURI)
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	if c.PeerURI == "" {
		return types.NewConfigError("peer_uri must not be empty")
	}
	if c.SignalingURI == "" {
		return types.NewConfigError("signaling_uri must not be empty")
	}
	if c.ContextSize <= 0 {
		return types.NewConfigError("context_size must be positive")
	}
	if c.ContextName == "" {
		return types.NewConfigError("context_name must not be empty")
	}
	if c.SendTimeoutMs <= 0 || c.RecvTimeoutMs <= 0 {
		return types.NewConfigError("send_timeout_ms and recv_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) sendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

func (c *Config) recvTimeout() time.Duration {
	return time.Duration(c.RecvTimeoutMs) * time.Millisecond
}
