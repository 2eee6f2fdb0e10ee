package netplay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackPair(t *testing.T) (a, b *Link) {
	t.Helper()

	const address = "127.0.0.1:28734"

	serverCh := make(chan *Link, 1)
	errCh := make(chan error, 1)
	go func() {
		l, err := Listen(address)
		if err != nil {
			errCh <- err
			return
		}
		serverCh <- l
	}()

	// Give the listener a moment to bind before dialing.
	time.Sleep(20 * time.Millisecond)

	client, err := Dial(address)
	require.NoError(t, err)

	select {
	case server := <-serverCh:
		return client, server
	case err := <-errCh:
		require.NoError(t, err)
		return nil, nil
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loopback listener to accept")
		return nil, nil
	}
}

func TestLink_SendAndPollIRBit(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	require.NoError(t, client.SendIRBit(true))

	bit, ok, err := server.PollIRBit(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, bit)
}

func TestLink_PollIRBitTimesOutWithoutBlockingForever(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	_, ok, err := server.PollIRBit(time.Now().Add(50 * time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLink_SyncReturnsZeroStallWhenBalanced(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	stallCh := make(chan int, 1)
	go func() {
		stall, err := server.Sync(0)
		assert.NoError(t, err)
		stallCh <- stall
	}()

	clientStall, err := client.Sync(0)
	require.NoError(t, err)
	assert.Equal(t, 0, clientStall)
	assert.Equal(t, 0, <-stallCh)
}

func TestLink_SyncTellsTheLeadingPeerToStall(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	serverStallCh := make(chan int, 1)
	go func() {
		stall, err := server.Sync(0)
		assert.NoError(t, err)
		serverStallCh <- stall
	}()

	// The client reports a 10-instruction lead; it should be told to stall.
	clientStall, err := client.Sync(10)
	require.NoError(t, err)
	assert.Equal(t, 10, clientStall)
	assert.Equal(t, 0, <-serverStallCh)
}

func TestClampToByte_SaturatesAtInt8Bounds(t *testing.T) {
	assert.Equal(t, uint8(127), clampToByte(500))
	assert.Equal(t, uint8(0x80), clampToByte(-500))
}
