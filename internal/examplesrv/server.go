// Package examplesrv hosts a small demo uEntity: ping/echo RPC endpoints,
// a subscription-tracking facade, and a periodic heartbeat event, all
// wired over a real transport/ws.Hub. It exists to exercise the full
// stack — config, hub, loopback transport, rpc server, publisher — in one
// runnable process, and doubles as the integration test bed for it.
package examplesrv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/eclipse-uprotocol/up-go/comm"
	"github.com/eclipse-uprotocol/up-go/config"
	"github.com/eclipse-uprotocol/up-go/rpc"
	"github.com/eclipse-uprotocol/up-go/service/subscription"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/transport/ws"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

const (
	// ResourceIDPing and ResourceIDEcho are the two demo RPC methods this
	// service exposes.
	ResourceIDPing uint16 = 0x0003
	ResourceIDEcho uint16 = 0x0004

	// ResourceIDHeartbeat is the event this service publishes on a timer.
	ResourceIDHeartbeat uint16 = 0x8001
)

// Stats is a point-in-time snapshot of the service's activity, exposed
// for callers that want to print or export it.
type Stats struct {
	ConnectedPeers      int
	ActiveSubscriptions int
	Uptime              time.Duration
}

// Server is a complete, runnable uEntity: it listens for WebSocket peers,
// answers ping/echo RPCs, tracks subscription claims through
// service/subscription's wire shapes, and emits a heartbeat event.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	self      uri.URI
	hub       *ws.Hub
	self2self transport.Transport

	rpcServer *rpc.Server
	publisher *comm.Publisher
	subs      *subscriptionRegistry

	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New constructs a Server addressed at self, configured by cfg. A nil
// logger defaults to zap.NewNop().
func New(cfg *config.Config, self uri.URI, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		self:   self,
		subs:   newSubscriptionRegistry(),
	}
}

// Start brings up the WebSocket hub, dials this process's own loopback
// connection to it (so the service can act as a uEntity on its own
// transport), registers its RPC endpoints, and starts the heartbeat loop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.hub = ws.NewHub(s.cfg.Transport.Address, s.cfg.Security.AllowedOrigins, s.logger)
	if err := s.hub.Start(); err != nil {
		return fmt.Errorf("examplesrv: start hub: %w", err)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 5*time.Second)
	defer cancelDial()
	selfTransport, err := ws.Dial(dialCtx, "ws://"+s.hub.Addr()+"/ws", s.logger)
	if err != nil {
		s.hub.Stop()
		return fmt.Errorf("examplesrv: dial own hub: %w", err)
	}
	s.self2self = selfTransport

	s.rpcServer = rpc.NewServer(s.self2self, s.self, s.logger)
	s.publisher = comm.NewPublisher(s.self2self, s.self)

	if st := s.rpcServer.RegisterEndpoint(ctx, nil, ResourceIDPing, rpc.RequestHandlerFunc(s.handlePing)); !st.IsOK() {
		return fmt.Errorf("examplesrv: register ping endpoint: %s", st.Error())
	}
	if st := s.rpcServer.RegisterEndpoint(ctx, nil, ResourceIDEcho, rpc.RequestHandlerFunc(s.handleEcho)); !st.IsOK() {
		return fmt.Errorf("examplesrv: register echo endpoint: %s", st.Error())
	}
	if st := s.rpcServer.RegisterEndpoint(ctx, nil, subscription.ResourceIDSubscribe, rpc.RequestHandlerFunc(s.handleSubscribe)); !st.IsOK() {
		return fmt.Errorf("examplesrv: register subscribe endpoint: %s", st.Error())
	}
	if st := s.rpcServer.RegisterEndpoint(ctx, nil, subscription.ResourceIDUnsubscribe, rpc.RequestHandlerFunc(s.handleUnsubscribe)); !st.IsOK() {
		return fmt.Errorf("examplesrv: register unsubscribe endpoint: %s", st.Error())
	}

	s.startedAt = time.Now()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.heartbeatLoop()

	s.logger.Info("examplesrv: started", zap.String("addr", s.hub.Addr()))
	return nil
}

// Stop halts the heartbeat loop, closes the loopback transport, and shuts
// the hub down.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if closer, ok := s.self2self.(interface{ Close() error }); ok {
		closer.Close()
	}
	return s.hub.Stop()
}

// Addr returns the address the hub is listening on.
func (s *Server) Addr() string {
	return s.hub.Addr()
}

// Stats returns a point-in-time snapshot of service activity.
func (s *Server) Stats() Stats {
	return Stats{
		ConnectedPeers:      s.hub.ConnectionCount(),
		ActiveSubscriptions: s.subs.count(),
		Uptime:              time.Since(s.startedAt),
	}
}

func (s *Server) handlePing(_ context.Context, _ uint16, _ *uattributes.Attributes, _ []byte) ([]byte, *ustatus.Status) {
	return []byte("pong"), ustatus.OK()
}

func (s *Server) handleEcho(_ context.Context, _ uint16, _ *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status) {
	return payload, ustatus.OK()
}

func (s *Server) handleSubscribe(_ context.Context, _ uint16, _ *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status) {
	var req subscription.SubscribeRequest
	if err := cbor.Unmarshal(payload, &req); err != nil {
		return nil, ustatus.New(ustatus.CodeInvalidArgument, "malformed subscribe request: "+err.Error())
	}
	if req.TTL <= 0 {
		req.TTL = s.cfg.RPC.DefaultRequestTTL
	}

	s.subs.add(req.Topic, req.Subscriber, req.TTL)
	s.logger.Debug("examplesrv: subscribed",
		zap.String("topic", req.Topic.String()),
		zap.String("subscriber", req.Subscriber.String()),
	)

	resp, err := cbor.Marshal(subscription.SubscribeResponse{Topic: req.Topic, State: subscription.StateSubscribed})
	if err != nil {
		return nil, ustatus.New(ustatus.CodeInternal, err.Error())
	}
	return resp, ustatus.OK()
}

func (s *Server) handleUnsubscribe(_ context.Context, _ uint16, _ *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status) {
	var req subscription.UnsubscribeRequest
	if err := cbor.Unmarshal(payload, &req); err != nil {
		return nil, ustatus.New(ustatus.CodeInvalidArgument, "malformed unsubscribe request: "+err.Error())
	}
	s.subs.remove(req.Topic, req.Subscriber)
	return nil, ustatus.OK()
}

// heartbeatLoop publishes a liveness event on a timer and prunes expired
// subscription claims in the same pass.
func (s *Server) heartbeatLoop() {
	defer s.wg.Done()

	interval := s.cfg.Transport.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			live := s.subs.active()
			if st := s.publisher.Publish(s.ctx, ResourceIDHeartbeat, nil, uattributes.PayloadFormatUnspecified); !st.IsOK() {
				s.logger.Warn("examplesrv: heartbeat publish failed", zap.String("status", st.Error()))
			}
			s.logger.Debug("examplesrv: heartbeat", zap.Int("active_subscriptions", len(live)))
		}
	}
}
