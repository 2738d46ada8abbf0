package cage

import "github.com/graybat-go/cage/pkg/cage/core"

// Config and Option are the overlay's public configuration surface,
// re-exported from core so application code never needs to import the
// core package directly. Built via functional options (see DESIGN.md
// for why no third-party config-file library replaces this).
type Config = core.Config
type Option = core.Option

var (
	WithPeerURI      = core.WithPeerURI
	WithSignalingURI = core.WithSignalingURI
	WithContextSize  = core.WithContextSize
	WithContextName  = core.WithContextName
	WithSendTimeout  = core.WithSendTimeout
	WithRecvTimeout  = core.WithRecvTimeout
	WithLogger       = core.WithLogger
)

// NewConfig applies opts over the documented defaults and validates the
// result.
func NewConfig(opts ...Option) (*Config, error) {
	return core.NewConfig(opts...)
}
