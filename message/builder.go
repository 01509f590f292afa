package message

import (
	"fmt"

	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/uuid"
)

// Builder accumulates optional attribute fields for one of the four
// message shapes before producing an immutable Message. The zero value is
// not usable; obtain one from Publish, Notification, Request, Response, or
// ResponseForRequest.
type Builder struct {
	attr uattributes.Attributes
}

// Publish starts building a published event originating at source, whose
// resource id must fall in the event range.
func Publish(source uri.URI) *Builder {
	return &Builder{attr: uattributes.Attributes{
		ID:     uuid.Build(),
		Type:   uattributes.TypePublish,
		Source: source,
	}}
}

// Notification starts building a notification from source to sink.
func Notification(source, sink uri.URI) *Builder {
	return &Builder{attr: uattributes.Attributes{
		ID:     uuid.Build(),
		Type:   uattributes.TypeNotification,
		Source: source,
		Sink:   &sink,
	}}
}

// Request starts building an RPC request from source (the caller's
// response address) to sink (the method), with the given required ttl.
func Request(source, sink uri.URI, ttl uint32) *Builder {
	return &Builder{attr: uattributes.Attributes{
		ID:     uuid.Build(),
		Type:   uattributes.TypeRequest,
		Source: source,
		Sink:   &sink,
		TTL:    &ttl,
	}}
}

// Response starts building an RPC response from source (the method) to
// sink (the caller's response address), correlated to reqid.
func Response(source, sink uri.URI, reqid uuid.UUID) *Builder {
	return &Builder{attr: uattributes.Attributes{
		ID:     uuid.Build(),
		Type:   uattributes.TypeResponse,
		Source: source,
		Sink:   &sink,
		ReqID:  &reqid,
	}}
}

// ResponseForRequest starts building the response to req, inheriting
// source/sink (swapped), reqid, priority, and ttl from it as required by
// the protocol.
func ResponseForRequest(req *uattributes.Attributes) *Builder {
	sink := req.Source
	b := &Builder{attr: uattributes.Attributes{
		ID:       uuid.Build(),
		Type:     uattributes.TypeResponse,
		Source:   *req.Sink,
		Sink:     &sink,
		ReqID:    &req.ID,
		Priority: req.Priority,
	}}
	if req.TTL != nil {
		ttl := *req.TTL
		b.attr.TTL = &ttl
	}
	return b
}

// WithMessageID overrides the auto-generated message id.
func (b *Builder) WithMessageID(id uuid.UUID) *Builder {
	b.attr.ID = id
	return b
}

// WithPriority sets the message's priority class.
func (b *Builder) WithPriority(p uattributes.Priority) *Builder {
	b.attr.Priority = p
	return b
}

// WithTTL sets (or overrides) the message's time-to-live in milliseconds.
func (b *Builder) WithTTL(ttl uint32) *Builder {
	b.attr.TTL = &ttl
	return b
}

// WithToken attaches an opaque authorization token.
func (b *Builder) WithToken(token string) *Builder {
	b.attr.Token = &token
	return b
}

// WithPermissionLevel sets the caller's permission level.
func (b *Builder) WithPermissionLevel(level uint32) *Builder {
	b.attr.PermissionLevel = &level
	return b
}

// WithCommStatus sets the response's communication status code.
func (b *Builder) WithCommStatus(code int32) *Builder {
	b.attr.CommStatus = &code
	return b
}

// WithTraceparent attaches a W3C traceparent string for distributed tracing.
func (b *Builder) WithTraceparent(tp string) *Builder {
	b.attr.Traceparent = &tp
	return b
}

// Build validates the accumulated attributes and produces a Message with
// no payload.
func (b *Builder) Build() (*Message, error) {
	return b.build(nil, uattributes.PayloadFormatUnspecified)
}

// BuildWithPayload validates the accumulated attributes and produces a
// Message carrying payload tagged with the given format.
func (b *Builder) BuildWithPayload(payload []byte, format uattributes.PayloadFormat) (*Message, error) {
	return b.build(payload, format)
}

// BuildWithProtobufPayload is BuildWithPayload with the format inferred as
// a packed protobuf message.
func (b *Builder) BuildWithProtobufPayload(payload []byte) (*Message, error) {
	return b.build(payload, uattributes.PayloadFormatProtobuf)
}

// BuildWithAnyWrappedPayload is BuildWithPayload with the format inferred
// as a protobuf message wrapped in google.protobuf.Any.
func (b *Builder) BuildWithAnyWrappedPayload(payload []byte) (*Message, error) {
	return b.build(payload, uattributes.PayloadFormatProtobufWrappedInAny)
}

func (b *Builder) build(payload []byte, format uattributes.PayloadFormat) (*Message, error) {
	attr := b.attr
	if len(payload) > 0 {
		attr.PayloadFormat = format
	}
	if err := uattributes.ValidatorFor(attr.Type).Validate(&attr); err != nil {
		return nil, fmt.Errorf("message: build failed: %w", err)
	}
	return &Message{Attributes: attr, Payload: payload}, nil
}
