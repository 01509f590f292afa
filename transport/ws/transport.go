package ws

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

// localRegistration is one (sourceFilter, sinkFilter, listener) triple
// registered by this process against its own connection, mirroring
// transport/local's registry: the hub only decides which peer a message
// is forwarded to, not which in-process listener receives it.
type localRegistration struct {
	sourceFilter uri.URI
	sinkFilter   *uri.URI
	listener     transport.Listener
}

// Transport is a Transport backed by a single WebSocket connection to a
// Hub. Outgoing sends and filter registrations are both framed as
// wireFrames over the same socket, and a local registry dispatches
// inbound deliveries exactly as transport/local does.
type Transport struct {
	socket *websocket.Conn
	logger *zap.Logger

	send    chan []byte
	closeCh chan struct{}
	closed  sync.Once

	mu   sync.RWMutex
	regs []localRegistration
}

// Dial connects to a Hub listening at url (e.g. "ws://host:8080/ws") and
// returns a ready-to-use Transport.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}

	t := &Transport{
		socket:  socket,
		logger:  logger,
		send:    make(chan []byte, 256),
		closeCh: make(chan struct{}),
	}
	go t.writePump()
	go t.readPump()
	return t, nil
}

// Close terminates the underlying connection.
func (t *Transport) Close() error {
	t.closed.Do(func() { close(t.closeCh) })
	return t.socket.Close()
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, msg *message.Message) *ustatus.Status {
	data, err := encodeMessageFrame(msg)
	if err != nil {
		return ustatus.New(ustatus.CodeInvalidArgument, "ws: encode message: "+err.Error())
	}
	select {
	case t.send <- data:
		return ustatus.OK()
	case <-t.closeCh:
		return ustatus.New(ustatus.CodeUnavailable, "ws: transport closed")
	case <-ctx.Done():
		return ustatus.New(ustatus.CodeCancelled, ctx.Err().Error())
	case <-time.After(writeWait):
		return ustatus.New(ustatus.CodeUnavailable, "ws: send buffer full")
	}
}

// RegisterListener implements transport.Transport: it both records the
// listener locally (to dispatch deliveries routed to this connection by
// the hub) and tells the hub which filters this connection now wants.
func (t *Transport) RegisterListener(ctx context.Context, sourceFilter uri.URI, sinkFilter *uri.URI, listener transport.Listener) *ustatus.Status {
	if listener == nil {
		return ustatus.New(ustatus.CodeInvalidArgument, "listener is nil")
	}

	t.mu.Lock()
	for _, r := range t.regs {
		if sameLocalRegistration(r, sourceFilter, sinkFilter, listener) {
			t.mu.Unlock()
			return ustatus.New(ustatus.CodeAlreadyExists, "listener already registered for this filter pair")
		}
	}
	t.regs = append(t.regs, localRegistration{sourceFilter: sourceFilter, sinkFilter: sinkFilter, listener: listener})
	t.mu.Unlock()

	data, err := encodeFilterFrame(frameRegister, sourceFilter, sinkFilter)
	if err != nil {
		return ustatus.New(ustatus.CodeInternal, "ws: encode filter: "+err.Error())
	}
	return t.sendControlFrame(ctx, data)
}

// UnregisterListener implements transport.Transport.
func (t *Transport) UnregisterListener(ctx context.Context, sourceFilter uri.URI, sinkFilter *uri.URI, listener transport.Listener) *ustatus.Status {
	t.mu.Lock()
	found := -1
	for i, r := range t.regs {
		if sameLocalRegistration(r, sourceFilter, sinkFilter, listener) {
			found = i
			break
		}
	}
	if found >= 0 {
		t.regs = append(t.regs[:found], t.regs[found+1:]...)
	}
	t.mu.Unlock()

	if found < 0 {
		return ustatus.New(ustatus.CodeNotFound, "no matching listener registration")
	}

	data, err := encodeFilterFrame(frameUnregister, sourceFilter, sinkFilter)
	if err != nil {
		return ustatus.New(ustatus.CodeInternal, "ws: encode filter: "+err.Error())
	}
	return t.sendControlFrame(ctx, data)
}

func (t *Transport) sendControlFrame(ctx context.Context, data []byte) *ustatus.Status {
	select {
	case t.send <- data:
		return ustatus.OK()
	case <-t.closeCh:
		return ustatus.New(ustatus.CodeUnavailable, "ws: transport closed")
	case <-ctx.Done():
		return ustatus.New(ustatus.CodeCancelled, ctx.Err().Error())
	}
}

func (t *Transport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-t.send:
			t.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.socket.WriteMessage(websocket.BinaryMessage, data); err != nil {
				t.logger.Warn("ws transport: write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			t.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-t.closeCh:
			return
		}
	}
}

func (t *Transport) readPump() {
	defer t.Close()

	t.socket.SetReadDeadline(time.Now().Add(pongWait))
	t.socket.SetPongHandler(func(string) error {
		t.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := t.socket.ReadMessage()
		if err != nil {
			return
		}
		frame, err := decodeFrame(data)
		if err != nil {
			t.logger.Warn("ws transport: dropping malformed frame", zap.Error(err))
			continue
		}
		if frame.Kind != frameDeliver {
			continue
		}
		msg, err := frame.toMessage()
		if err != nil {
			t.logger.Warn("ws transport: dropping undecodable message", zap.Error(err))
			continue
		}
		t.dispatch(msg)
	}
}

func (t *Transport) dispatch(msg *message.Message) {
	t.mu.RLock()
	var matched []transport.Listener
	for _, r := range t.regs {
		if !r.sourceFilter.Matches(msg.Attributes.Source) {
			continue
		}
		if !sinkMatches(r.sinkFilter, msg.Attributes.Sink) {
			continue
		}
		matched = append(matched, r.listener)
	}
	t.mu.RUnlock()

	for _, l := range matched {
		l.OnReceive(context.Background(), msg)
	}
}

func sinkMatches(filter, actual *uri.URI) bool {
	if filter == nil {
		return actual == nil
	}
	if actual == nil {
		return false
	}
	return filter.Matches(*actual)
}

func sameLocalRegistration(r localRegistration, source uri.URI, sink *uri.URI, listener transport.Listener) bool {
	if r.sourceFilter != source {
		return false
	}
	if (r.sinkFilter == nil) != (sink == nil) {
		return false
	}
	if r.sinkFilter != nil && sink != nil && *r.sinkFilter != *sink {
		return false
	}
	return sameListener(r.listener, listener)
}

func sameListener(a, b transport.Listener) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Chan, reflect.Map, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	default:
		return a == b
	}
}

var _ transport.Transport = (*Transport)(nil)
