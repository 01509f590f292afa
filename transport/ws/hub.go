package ws

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eclipse-uprotocol/up-go/uri"
)

const (
	maxMessageBytes = 512 * 1024
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	writeWait       = 10 * time.Second
)

// filterEntry is one (sourceFilter, sinkFilter) pair a connection has told
// the hub it wants deliveries for.
type filterEntry struct {
	source uri.URI
	sink   *uri.URI
}

func sameFilter(a, b filterEntry) bool {
	if a.source != b.source {
		return false
	}
	if (a.sink == nil) != (b.sink == nil) {
		return false
	}
	return a.sink == nil || *a.sink == *b.sink
}

// conn is one connected peer: its socket, its outbound send buffer, and
// the filters it has registered with the hub.
type conn struct {
	id      string
	socket  *websocket.Conn
	send    chan []byte
	closeCh chan struct{}
	once    sync.Once

	mu      sync.RWMutex
	filters []filterEntry
}

func (c *conn) addFilter(f filterEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.filters {
		if sameFilter(existing, f) {
			return
		}
	}
	c.filters = append(c.filters, f)
}

func (c *conn) removeFilter(f filterEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.filters {
		if sameFilter(existing, f) {
			c.filters = append(c.filters[:i], c.filters[i+1:]...)
			return
		}
	}
}

func (c *conn) matches(source uri.URI, sink *uri.URI) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.filters {
		if !f.source.Matches(source) {
			continue
		}
		if f.sink == nil {
			if sink == nil {
				return true
			}
			continue
		}
		if sink != nil && f.sink.Matches(*sink) {
			return true
		}
	}
	return false
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.closeCh)
		c.socket.Close()
	})
}

// Hub is the relay side of the WebSocket transport: it accepts
// connections, tracks the filters each one has registered, and forwards
// every delivered message to every other connection whose filters match
// its source/sink. Each connection gets a buffered send channel and
// ping/pong keepalive; a peer that stops draining its buffer is dropped.
type Hub struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *zap.Logger

	conns   map[string]*conn
	connsMu sync.RWMutex

	register   chan *conn
	unregister chan *conn

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	server  *http.Server
}

// NewHub returns a Hub that will listen on addr once Start is called.
// allowedOrigins, if non-empty and not containing "*", restricts which
// Origin header values are accepted on upgrade.
func NewHub(addr string, allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOriginFunc(allowedOrigins),
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger:     logger,
		conns:      make(map[string]*conn),
		register:   make(chan *conn),
		unregister: make(chan *conn),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func checkOriginFunc(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	for _, a := range allowed {
		if a == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// Start begins accepting connections on the configured address. It
// returns once the listener is up; Stop shuts it down.
func (h *Hub) Start() error {
	if h.running.Load() {
		return nil
	}
	h.running.Store(true)

	h.wg.Add(1)
	go h.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleUpgrade)

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		h.running.Store(false)
		return fmt.Errorf("ws hub: listen on %s: %w", h.addr, err)
	}
	h.addr = listener.Addr().String()
	h.server = &http.Server{Handler: mux}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			h.logger.Error("ws hub: listener stopped", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the hub is actually listening on, resolved
// after Start (useful when constructed with a ":0" port).
func (h *Hub) Addr() string {
	return h.addr
}

// Stop closes every connection and shuts the listener down.
func (h *Hub) Stop() error {
	if !h.running.Load() {
		return nil
	}
	h.cancel()

	h.connsMu.Lock()
	for _, c := range h.conns {
		c.close()
	}
	h.conns = make(map[string]*conn)
	h.connsMu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		h.logger.Warn("ws hub: shutdown error", zap.Error(err))
	}

	h.wg.Wait()
	h.running.Store(false)
	return nil
}

// ConnectionCount reports how many peers are currently connected.
func (h *Hub) ConnectionCount() int {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	return len(h.conns)
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws hub: upgrade failed", zap.Error(err))
		return
	}

	c := &conn{
		id:      generateConnID(),
		socket:  socket,
		send:    make(chan []byte, 256),
		closeCh: make(chan struct{}),
	}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		socket.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.connsMu.Lock()
			h.conns[c.id] = c
			h.connsMu.Unlock()
		case c := <-h.unregister:
			h.connsMu.Lock()
			if _, ok := h.conns[c.id]; ok {
				delete(h.conns, c.id)
			}
			h.connsMu.Unlock()
		}
	}
}

func (h *Hub) readPump(c *conn) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.close()
	}()

	c.socket.SetReadLimit(maxMessageBytes)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("ws hub: read error", zap.Error(err), zap.String("conn", c.id))
			}
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			h.logger.Warn("ws hub: dropping malformed frame", zap.Error(err), zap.String("conn", c.id))
			continue
		}
		h.handleFrame(c, frame, data)
	}
}

func (h *Hub) handleFrame(origin *conn, frame wireFrame, raw []byte) {
	switch frame.Kind {
	case frameRegister:
		origin.addFilter(filterEntry{source: frame.SourceFilter.toURI(), sink: frame.sinkFilter()})
	case frameUnregister:
		origin.removeFilter(filterEntry{source: frame.SourceFilter.toURI(), sink: frame.sinkFilter()})
	case frameDeliver:
		attr, err := frame.Attributes.toAttributes()
		if err != nil {
			h.logger.Warn("ws hub: dropping undecodable message", zap.Error(err))
			return
		}
		h.connsMu.RLock()
		defer h.connsMu.RUnlock()
		for _, c := range h.conns {
			if c == origin {
				continue
			}
			if !c.matches(attr.Source, attr.Sink) {
				continue
			}
			select {
			case c.send <- raw:
			default:
				h.logger.Warn("ws hub: send buffer full, dropping peer", zap.String("conn", c.id))
				c.close()
			}
		}
	}
}

func (h *Hub) writePump(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeCh:
			return
		case <-h.ctx.Done():
			return
		}
	}
}

func generateConnID() string {
	return fmt.Sprintf("conn_%d_%s", time.Now().UnixNano(), randomSuffix(8))
}

func randomSuffix(n int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = charset[i%len(charset)]
			continue
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
