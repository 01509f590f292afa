package examplesrv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-uprotocol/up-go/config"
	"github.com/eclipse-uprotocol/up-go/rpc"
	"github.com/eclipse-uprotocol/up-go/service/subscription"
	"github.com/eclipse-uprotocol/up-go/transport/ws"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
)

func newTestServer(t *testing.T) (*Server, uri.URI) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Transport.Address = "127.0.0.1:0"
	cfg.Transport.PingInterval = 50 * time.Millisecond

	self := uri.New("example", 0x1000, 1, 0)
	srv := New(cfg, self, nil)

	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv, self
}

func dialClient(t *testing.T, srv *Server, clientSource uri.URI) *rpc.Client {
	t.Helper()
	ctx := context.Background()
	tr, err := ws.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	client, st := rpc.NewClient(ctx, tr, clientSource)
	require.True(t, st.IsOK(), "rpc.NewClient: %v", st)
	return client
}

func TestServer_PingRespondsPong(t *testing.T) {
	srv, self := newTestServer(t)
	client := dialClient(t, srv, uri.New("caller", 0x2000, 1, 0))

	method := uri.New(self.Authority, self.EntityID, self.EntityVersion, ResourceIDPing)
	resp, st := client.InvokeMethod(context.Background(), method, rpc.CallOptions{TTL: 2000}, nil, uattributes.PayloadFormatUnspecified)
	require.True(t, st.IsOK(), "InvokeMethod: %v", st)
	require.Equal(t, "pong", string(resp.Payload))
}

func TestServer_EchoReturnsPayload(t *testing.T) {
	srv, self := newTestServer(t)
	client := dialClient(t, srv, uri.New("caller", 0x2001, 1, 0))

	method := uri.New(self.Authority, self.EntityID, self.EntityVersion, ResourceIDEcho)
	resp, st := client.InvokeMethod(context.Background(), method, rpc.CallOptions{TTL: 2000}, []byte("hi"), uattributes.PayloadFormatRaw)
	require.True(t, st.IsOK(), "InvokeMethod: %v", st)
	require.Equal(t, "hi", string(resp.Payload))
}

func TestServer_SubscribeTracksActiveCount(t *testing.T) {
	srv, self := newTestServer(t)
	client := dialClient(t, srv, uri.New("caller", 0x2002, 1, 0))

	subClient := subscription.NewClient(client, self)
	topic := uri.New(self.Authority, self.EntityID, self.EntityVersion, 0x8001)
	subscriber := uri.New("caller", 0x2002, 1, 0)

	resp, err := subClient.Subscribe(context.Background(), topic, subscriber, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, subscription.StateSubscribed, resp.State)
	require.Equal(t, 1, srv.Stats().ActiveSubscriptions)

	require.NoError(t, subClient.Unsubscribe(context.Background(), topic, subscriber))
	require.Equal(t, 0, srv.Stats().ActiveSubscriptions)
}
