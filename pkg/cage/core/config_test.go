package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graybat-go/cage/pkg/cage/types"
)

// recordingLogger is a no-op definition.Logger stand-in used only to
// verify WithLogger overrides the default.
type recordingLogger struct{}

func (recordingLogger) Info(v ...interface{}) {}
func (recordingLogger) Infof(format string, v ...interface{}) {}
func (recordingLogger) Warn(v ...interface{}) {}
func (recordingLogger) Warnf(format string, v ...interface{}) {}
func (recordingLogger) Error(v ...interface{}) {}
func (recordingLogger) Errorf(format string, v ...interface{}) {}
func (recordingLogger) Debug(v ...interface{}) {}
func (recordingLogger) Debugf(format string, v ...interface{}) {}
func (recordingLogger) Fatal(v ...interface{}) {}
func (recordingLogger) Fatalf(format string, v ...interface{}) {}

func validOpts() []Option {
	return []Option{
		WithPeerURI("tcp://127.0.0.1:5000"),
		WithSignalingURI("tcp://127.0.0.1:6000"),
		WithContextSize(3),
		WithContextName("test-run"),
	}
}

func TestNewConfigAppliesDocumentedDefaults(t *testing.T) {
	cfg, err := NewConfig(validOpts()...)
	require.NoError(t, err)
	assert.Equal(t, DefaultSendTimeoutMs, cfg.SendTimeoutMs)
	assert.Equal(t, DefaultRecvTimeoutMs, cfg.RecvTimeoutMs)
	assert.NotNil(t, cfg.Logger)
}

func TestNewConfigHonorsTimeoutOverrides(t *testing.T) {
	opts := append(validOpts(), WithSendTimeout(2*time.Second), WithRecvTimeout(3*time.Second))
	cfg, err := NewConfig(opts...)
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.SendTimeoutMs)
	assert.Equal(t, 3000, cfg.RecvTimeoutMs)
	assert.Equal(t, 2*time.Second, cfg.sendTimeout())
	assert.Equal(t, 3*time.Second, cfg.recvTimeout())
}

func TestNewConfigRejectsEmptyPeerURI(t *testing.T) {
	_, err := NewConfig(
		WithSignalingURI("tcp://127.0.0.1:6000"),
		WithContextSize(3),
		WithContextName("test-run"),
	)
	require.Error(t, err)
	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewConfigRejectsEmptySignalingURI(t *testing.T) {
	_, err := NewConfig(
		WithPeerURI("tcp://127.0.0.1:5000"),
		WithContextSize(3),
		WithContextName("test-run"),
	)
	require.Error(t, err)
}

func TestNewConfigRejectsNonPositiveContextSize(t *testing.T) {
	_, err := NewConfig(
		WithPeerURI("tcp://127.0.0.1:5000"),
		WithSignalingURI("tcp://127.0.0.1:6000"),
		WithContextSize(0),
		WithContextName("test-run"),
	)
	require.Error(t, err)
}

func TestNewConfigRejectsEmptyContextName(t *testing.T) {
	_, err := NewConfig(
		WithPeerURI("tcp://127.0.0.1:5000"),
		WithSignalingURI("tcp://127.0.0.1:6000"),
		WithContextSize(3),
	)
	require.Error(t, err)
}

func TestNewConfigRejectsNonPositiveTimeouts(t *testing.T) {
	opts := append(validOpts(), WithSendTimeout(0))
	_, err := NewConfig(opts...)
	require.Error(t, err)
}

func TestWithLoggerOverridesDefault(t *testing.T) {
	custom := &recordingLogger{}
	opts := append(validOpts(), WithLogger(custom))
	cfg, err := NewConfig(opts...)
	require.NoError(t, err)
	assert.Same(t, custom, cfg.Logger)
}
