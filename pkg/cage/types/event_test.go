package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFireThenWait(t *testing.T) {
	ev := NewEvent(VAddr(1), Tag(2))
	assert.False(t, ev.Ready())
	ev.Fire(nil)
	assert.True(t, ev.Ready())
	require.NoError(t, ev.Wait())
}

func TestEventFireIsIdempotent(t *testing.T) {
	ev := NewEvent(VAddr(1), Tag(2))
	ev.Fire(nil)
	ev.Fire(NewTransportFailure(Timeout, "too late"))
	require.NoError(t, ev.Wait())
}

func TestEventWaitBlocksUntilFired(t *testing.T) {
	ev := NewEvent(VAddr(1), Tag(2))
	done := make(chan error, 1)
	go func() { done <- ev.Wait() }()

	select {
	case <-done:
		t.Fatal("Wait returned before Fire")
	case <-time.After(20 * time.Millisecond):
	}

	ev.Fire(nil)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Fire")
	}
}

func TestEventCarriesSourceAndTag(t *testing.T) {
	ev := NewEvent(VAddr(3), Tag(9))
	assert.Equal(t, VAddr(3), ev.Source())
	assert.Equal(t, Tag(9), ev.Tag())
}
