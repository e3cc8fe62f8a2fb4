package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return 0
}

func TestBroadcastToAllSubscribers(t *testing.T) {
	src := make(chan int)
	b := NewBroadcastServer("test", "fanout", src, WithBufferSize[int](4))
	defer b.Close()

	s1 := b.Subscribe()
	s2 := b.Subscribe()
	src <- 1
	src <- 2

	assert.Equal(t, 1, receive(t, s1))
	assert.Equal(t, 2, receive(t, s1))
	assert.Equal(t, 1, receive(t, s2))
	assert.Equal(t, 2, receive(t, s2))
}

func TestCancelSubscriptionClosesChannel(t *testing.T) {
	src := make(chan int)
	b := NewBroadcastServer("test", "cancel", src)
	defer b.Close()

	s := b.Subscribe()
	b.CancelSubscription(s)
	select {
	case _, ok := <-s:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestSlowSubscriberIsSkipped(t *testing.T) {
	src := make(chan int)
	b := NewBroadcastServer("test", "slow", src,
		WithSendTimeout[int](5*time.Millisecond))
	defer b.Close()

	slow := b.Subscribe()
	src <- 1
	src <- 2
	impl := b.(*broadcastServer[int])
	assert.Eventually(t, func() bool { return impl.numSkip.Load() >= 1 },
		time.Second, 5*time.Millisecond)
	_ = slow
}

func TestCloseClosesSubscribers(t *testing.T) {
	src := make(chan int)
	b := NewBroadcastServer("test", "close", src)
	s := b.Subscribe()
	b.Close()
	select {
	case _, ok := <-s:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
