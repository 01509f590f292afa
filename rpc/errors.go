// Package rpc implements the in-memory RPC client and server: the
// correlation and dispatch layer built above the Transport contract.
package rpc

import (
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/ustatus"
	"github.com/eclipse-uprotocol/up-go/uuid"
)

// CallOptions configures an InvokeMethod call: the required deadline
// plus optional priority, authorization token, and message id.
type CallOptions struct {
	// TTL is the call's time-to-live in milliseconds. Must be > 0.
	TTL uint32
	// Priority, if non-zero, is attached to the outgoing request.
	Priority uattributes.Priority
	// Token, if non-empty, is attached to the outgoing request as an
	// opaque authorization credential.
	Token string
	// MessageID, if non-nil, overrides the auto-generated request id.
	// Must be a valid uProtocol UUID.
	MessageID *uuid.UUID
}

func errMaxListenersExceeded() *ustatus.Status {
	return ustatus.New(ustatus.CodeAlreadyExists, "endpoint already registered for this resource id")
}

func errNoSuchListener() *ustatus.Status {
	return ustatus.New(ustatus.CodeNotFound, "no listener registered for this resource id")
}
