package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/graybat-go/cage/pkg/cage/core"
	"github.com/graybat-go/cage/pkg/cage/internal/substratetest"
	"github.com/graybat-go/cage/pkg/cage/types"
)

// TestAsyncSendPreservesFIFOOrderPerTag sends K messages with the same
// tag from one peer to another, back to back, and checks they are
// received in the order they were sent: sending K messages with the
// same tag must result in receive order equal to send order.
func TestAsyncSendPreservesFIFOOrderPerTag(t *testing.T) {
	defer goleak.VerifyNone(t)
	cl := substratetest.NewCluster(2, "fifo-order")
	sender := cl.Peer(types.VAddr(0))
	receiver := cl.Peer(types.VAddr(1))
	ctx := sender.InitialContext()
	const tag types.Tag = 7
	const k = 20

	events := make([]*types.Event, k)
	for i := 0; i < k; i++ {
		ev, err := sender.AsyncSend(receiver.LocalVAddr(), tag, ctx, core.EncodeUint32(uint32(i)))
		require.NoError(t, err)
		events[i] = ev
	}

	for i := 0; i < k; i++ {
		buf := make([]byte, 4)
		ev, err := receiver.AsyncRecv(sender.LocalVAddr(), tag, ctx, buf)
		require.NoError(t, err)
		require.NoError(t, ev.Wait())
		require.Equalf(t, uint32(i), core.DecodeUint32(buf), "message %d arrived out of order", i)
	}

	for i, ev := range events {
		require.NoErrorf(t, ev.Wait(), "send %d", i)
	}
}
