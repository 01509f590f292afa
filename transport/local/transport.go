package local

import (
	"context"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

// Transport is an in-process Transport: Send dispatches synchronously to
// every listener whose registered filters match the message's source and
// sink. It never leaves the process and never drops a message once Send
// has accepted it, so it is used by tests and by uEntities composed within
// a single binary.
type Transport struct {
	registry *registry
}

// New returns an empty local Transport.
func New() *Transport {
	return &Transport{registry: newRegistry()}
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, msg *message.Message) *ustatus.Status {
	if msg == nil {
		return ustatus.New(ustatus.CodeInvalidArgument, "message is nil")
	}
	listeners := t.registry.matching(msg.Attributes.Source, msg.Attributes.Sink)
	for _, l := range listeners {
		l.OnReceive(ctx, msg)
	}
	return ustatus.OK()
}

// RegisterListener implements transport.Transport.
func (t *Transport) RegisterListener(ctx context.Context, sourceFilter uri.URI, sinkFilter *uri.URI, listener transport.Listener) *ustatus.Status {
	if listener == nil {
		return ustatus.New(ustatus.CodeInvalidArgument, "listener is nil")
	}
	reg := registration{sourceFilter: sourceFilter, sinkFilter: sinkFilter, listener: listener}
	if !t.registry.add(reg) {
		return ustatus.New(ustatus.CodeAlreadyExists, "listener already registered for this filter pair")
	}
	return ustatus.OK()
}

// UnregisterListener implements transport.Transport.
func (t *Transport) UnregisterListener(ctx context.Context, sourceFilter uri.URI, sinkFilter *uri.URI, listener transport.Listener) *ustatus.Status {
	reg := registration{sourceFilter: sourceFilter, sinkFilter: sinkFilter, listener: listener}
	if !t.registry.remove(reg) {
		return ustatus.New(ustatus.CodeNotFound, "no matching listener registration")
	}
	return ustatus.OK()
}

var _ transport.Transport = (*Transport)(nil)
