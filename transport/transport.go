// Package transport defines the abstract contract that every uProtocol
// wire transport (in-memory, WebSocket, or otherwise) must satisfy, and
// the shared Listener abstraction used for dispatch.
package transport

import (
	"context"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

// Listener receives messages dispatched to a registered filter pair. Two
// Listener values registered against the same underlying handler must be
// comparable by reference, per the registry's identity discipline.
type Listener interface {
	OnReceive(ctx context.Context, msg *message.Message)
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(ctx context.Context, msg *message.Message)

// OnReceive implements Listener.
func (f ListenerFunc) OnReceive(ctx context.Context, msg *message.Message) {
	f(ctx, msg)
}

// Transport is the minimal substrate the Communication Layer depends on:
// best-effort send, and listener registration keyed by source/sink
// filters. Implementations may be backed by an in-process registry, a
// socket, or any other wire.
type Transport interface {
	// Send attempts best-effort delivery of msg. The returned status
	// reflects only whether delivery was handed off, not whether any
	// listener processed it.
	Send(ctx context.Context, msg *message.Message) *ustatus.Status

	// RegisterListener makes listener eligible to receive every message
	// whose source matches sourceFilter and whose sink matches
	// sinkFilter. A nil sinkFilter requires the message to have no sink.
	// Registering the same (sourceFilter, sinkFilter, listener) triple
	// twice fails with CodeAlreadyExists.
	RegisterListener(ctx context.Context, sourceFilter uri.URI, sinkFilter *uri.URI, listener Listener) *ustatus.Status

	// UnregisterListener removes a registration made with
	// RegisterListener. Fails with CodeNotFound if no matching
	// registration exists.
	UnregisterListener(ctx context.Context, sourceFilter uri.URI, sinkFilter *uri.URI, listener Listener) *ustatus.Status
}
