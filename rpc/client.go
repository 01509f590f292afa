package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
	"github.com/eclipse-uprotocol/up-go/uuid"
)

// Response is the outcome of a successful InvokeMethod call: an optional
// payload plus the format it was tagged with.
type Response struct {
	Payload       []byte
	PayloadFormat uattributes.PayloadFormat
}

// Client is the in-memory RPC client: it correlates outgoing requests with
// their responses over a single response listener registered once at
// construction time.
type Client struct {
	t          transport.Transport
	selfSource uri.URI

	mu      sync.Mutex
	pending map[uuid.UUID]chan *message.Message
}

// NewClient registers a response listener with t, scoped to messages
// addressed to selfSource, and returns a ready-to-use Client.
func NewClient(ctx context.Context, t transport.Transport, selfSource uri.URI) (*Client, *ustatus.Status) {
	c := &Client{
		t:          t,
		selfSource: selfSource,
		pending:    make(map[uuid.UUID]chan *message.Message),
	}
	if st := t.RegisterListener(ctx, uri.Any(), &selfSource, transport.ListenerFunc(c.onReceive)); !st.IsOK() {
		return nil, st
	}
	return c, ustatus.OK()
}

func (c *Client) tryAddPending(id uuid.UUID) (chan *message.Message, *ustatus.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[id]; exists {
		return nil, ustatus.New(ustatus.CodeAlreadyExists, "a request with this message id is already pending")
	}
	ch := make(chan *message.Message, 1)
	c.pending[id] = ch
	return ch, ustatus.OK()
}

// pendingCount reports the number of in-flight requests. Exercised by
// tests asserting that the pending table never leaks an entry.
func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) removePending(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// onReceive is the client's sole response listener. It is installed once
// and demultiplexes every inbound response to its matching pending slot.
func (c *Client) onReceive(_ context.Context, msg *message.Message) {
	if msg.Attributes.Type != uattributes.TypeResponse {
		return
	}
	if msg.Attributes.ReqID == nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*msg.Attributes.ReqID]
	if ok {
		delete(c.pending, *msg.Attributes.ReqID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// InvokeMethod sends a request to method and blocks until the matching
// response arrives or opts.TTL elapses.
func (c *Client) InvokeMethod(ctx context.Context, method uri.URI, opts CallOptions, payload []byte, format uattributes.PayloadFormat) (*Response, *ustatus.Status) {
	if opts.TTL == 0 {
		return nil, ustatus.New(ustatus.CodeInvalidArgument, "call options must specify a ttl greater than zero")
	}

	id := uuid.Build()
	if opts.MessageID != nil {
		if !opts.MessageID.IsUProtocolUUID() {
			return nil, ustatus.New(ustatus.CodeInvalidArgument, "message id must be a valid uProtocol UUID")
		}
		id = *opts.MessageID
	}
	builder := message.Request(c.selfSource, method, opts.TTL).
		WithMessageID(id).
		WithPriority(opts.Priority)
	if opts.Token != "" {
		builder = builder.WithToken(opts.Token)
	}

	var req *message.Message
	var err error
	if len(payload) > 0 {
		req, err = builder.BuildWithPayload(payload, format)
	} else {
		req, err = builder.Build()
	}
	if err != nil {
		return nil, ustatus.New(ustatus.CodeInvalidArgument, err.Error())
	}

	ch, st := c.tryAddPending(id)
	if !st.IsOK() {
		return nil, st
	}

	if st := c.t.Send(ctx, req); !st.IsOK() {
		c.removePending(id)
		return nil, st
	}

	timer := time.NewTimer(time.Duration(opts.TTL) * time.Millisecond)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return handleResponse(resp)
	case <-timer.C:
		c.removePending(id)
		return nil, ustatus.New(ustatus.CodeDeadlineExceeded, "rpc call timed out waiting for a response")
	case <-ctx.Done():
		c.removePending(id)
		return nil, ustatus.New(ustatus.CodeCancelled, ctx.Err().Error())
	}
}

func handleResponse(resp *message.Message) (*Response, *ustatus.Status) {
	if resp.Attributes.CommStatus == nil || ustatus.Code(*resp.Attributes.CommStatus) == ustatus.CodeOK {
		return &Response{Payload: resp.Payload, PayloadFormat: resp.Attributes.PayloadFormat}, ustatus.OK()
	}

	if decoded, err := ustatus.UnmarshalStatusCBOR(resp.Payload); err == nil {
		return nil, decoded
	}
	return nil, ustatus.New(ustatus.Code(*resp.Attributes.CommStatus), "remote method invocation failed")
}
