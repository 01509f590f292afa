// Package uattributes defines the per-message metadata record attached to
// every uProtocol message and the validators that enforce its
// type-specific invariants.
package uattributes

import (
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/uuid"
)

// MessageType identifies which of the four interaction patterns a message
// belongs to, and thereby which validator applies to it.
type MessageType int

const (
	TypePublish MessageType = iota
	TypeNotification
	TypeRequest
	TypeResponse
)

func (t MessageType) String() string {
	switch t {
	case TypePublish:
		return "PUBLISH"
	case TypeNotification:
		return "NOTIFICATION"
	case TypeRequest:
		return "REQUEST"
	case TypeResponse:
		return "RESPONSE"
	default:
		return "UNSPECIFIED"
	}
}

// Priority is the uProtocol message priority class. CS0 is the lowest
// (best-effort) class, CS6 the highest (safety-critical signals).
type Priority int

const (
	PriorityUnspecified Priority = iota
	PriorityCS0
	PriorityCS1
	PriorityCS2
	PriorityCS3
	PriorityCS4
	PriorityCS5
	PriorityCS6
)

// PayloadFormat tags the encoding of a message's payload bytes.
type PayloadFormat int

const (
	PayloadFormatUnspecified PayloadFormat = iota
	PayloadFormatProtobuf
	PayloadFormatProtobufWrappedInAny
	PayloadFormatJSON
	PayloadFormatText
	PayloadFormatSomeip
	PayloadFormatSomeipTLV
	PayloadFormatRaw
	PayloadFormatShm
)

// Attributes is the metadata record carried by every message: who sent it,
// where it is going, how it should be handled, and (for responses) which
// request it correlates to.
type Attributes struct {
	ID              uuid.UUID
	Type            MessageType
	Source          uri.URI
	Sink            *uri.URI
	Priority        Priority
	TTL             *uint32
	PermissionLevel *uint32
	CommStatus      *int32
	ReqID           *uuid.UUID
	Token           *string
	Traceparent     *string
	PayloadFormat   PayloadFormat

	// Ext carries out-of-band, non-validated extension values (e.g. a
	// detached JWS signature) that ride alongside the message without
	// participating in per-type validation.
	Ext map[string]string
}

// HasSink reports whether a explicitly addresses a sink.
func (a *Attributes) HasSink() bool {
	return a.Sink != nil
}

// HasTTL reports whether a carries an explicit time-to-live.
func (a *Attributes) HasTTL() bool {
	return a.TTL != nil
}

// TTLOrDefault returns the attribute's ttl, or fallback if none is set.
func (a *Attributes) TTLOrDefault(fallback uint32) uint32 {
	if a.TTL == nil {
		return fallback
	}
	return *a.TTL
}
