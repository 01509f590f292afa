package ws

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uri"
)

func startTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub("127.0.0.1:0", nil, nil)
	require.NoError(t, h.Start())
	t.Cleanup(func() { h.Stop() })
	return h
}

func dialTestTransport(t *testing.T, hub *Hub) *Transport {
	t.Helper()
	url := fmt.Sprintf("ws://%s/ws", hub.Addr())
	tr, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTransport_PublishSubscribeAcrossConnections(t *testing.T) {
	hub := startTestHub(t)
	publisher := dialTestTransport(t, hub)
	subscriber := dialTestTransport(t, hub)

	topic := uri.New("", 0x10, 1, 0x8001)

	var mu sync.Mutex
	var received *message.Message

	listener := transport.ListenerFunc(func(_ context.Context, msg *message.Message) {
		mu.Lock()
		received = msg
		mu.Unlock()
	})

	ctx := context.Background()
	require.True(t, subscriber.RegisterListener(ctx, topic, nil, listener).IsOK())

	// give the hub a moment to process the registration frame.
	time.Sleep(50 * time.Millisecond)

	msg, err := message.Publish(topic).BuildWithPayload([]byte("hello"), 0)
	require.NoError(t, err)
	require.True(t, publisher.Send(ctx, msg).IsOK())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received != nil
	}, 2*time.Second, 10*time.Millisecond, "timed out waiting for delivery")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "hello", string(received.Payload))
}

func TestTransport_DoesNotDeliverToNonMatchingFilter(t *testing.T) {
	hub := startTestHub(t)
	publisher := dialTestTransport(t, hub)
	subscriber := dialTestTransport(t, hub)

	subscribed := uri.New("", 0x20, 1, 0x8001)
	other := uri.New("", 0x21, 1, 0x8001)

	received := make(chan struct{}, 1)
	listener := transport.ListenerFunc(func(_ context.Context, msg *message.Message) {
		received <- struct{}{}
	})

	ctx := context.Background()
	subscriber.RegisterListener(ctx, subscribed, nil, listener)
	time.Sleep(50 * time.Millisecond)

	msg, err := message.Publish(other).Build()
	require.NoError(t, err)
	publisher.Send(ctx, msg)

	select {
	case <-received:
		t.Fatal("listener received a message for a non-matching filter")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTransport_RegisterListenerRejectsDuplicate(t *testing.T) {
	hub := startTestHub(t)
	tr := dialTestTransport(t, hub)

	source := uri.New("", 0x30, 1, 0x8001)
	listener := transport.ListenerFunc(func(context.Context, *message.Message) {})

	ctx := context.Background()
	require.True(t, tr.RegisterListener(ctx, source, nil, listener).IsOK())
	assert.False(t, tr.RegisterListener(ctx, source, nil, listener).IsOK(), "expected duplicate registration to fail")
}

func TestTransport_UnregisterListenerRequiresExistingRegistration(t *testing.T) {
	hub := startTestHub(t)
	tr := dialTestTransport(t, hub)

	source := uri.New("", 0x40, 1, 0x8001)
	listener := transport.ListenerFunc(func(context.Context, *message.Message) {})

	assert.False(t, tr.UnregisterListener(context.Background(), source, nil, listener).IsOK(),
		"expected unregister of a never-registered listener to fail")
}

func TestHub_ConnectionCount(t *testing.T) {
	hub := startTestHub(t)
	require.Equal(t, 0, hub.ConnectionCount())

	dialTestTransport(t, hub)
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestHub_AddrIsResolvedAfterStart(t *testing.T) {
	hub := startTestHub(t)
	assert.True(t, strings.Contains(hub.Addr(), ":"), "Addr() = %q, want host:port", hub.Addr())
}
