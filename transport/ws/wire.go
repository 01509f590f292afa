// Package ws implements a concrete uProtocol Transport over WebSocket
// connections: a relay-side Hub that routes CBOR-framed messages between
// connected peers by filter matching, and a client-side Transport that
// dials a Hub and dispatches inbound deliveries to locally registered
// listeners.
package ws

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/uuid"
)

// frameKind tags the purpose of a wireFrame so the hub can distinguish
// subscription control traffic from actual message deliveries without
// maintaining two sockets per connection.
type frameKind uint8

const (
	frameRegister frameKind = iota
	frameUnregister
	frameDeliver
)

// wireURI is the CBOR-friendly projection of uri.URI. The domain type
// carries no CBOR tags of its own: uProtocol's canonical URI encodings
// are the textual and protobuf-binary forms, so the CBOR framing used on
// this transport stays a private concern of this package.
type wireURI struct {
	Authority     string `cbor:"0,keyasint"`
	EntityID      uint32 `cbor:"1,keyasint"`
	EntityVersion uint8  `cbor:"2,keyasint"`
	ResourceID    uint16 `cbor:"3,keyasint"`
}

func toWireURI(u uri.URI) wireURI {
	return wireURI{Authority: u.Authority, EntityID: u.EntityID, EntityVersion: u.EntityVersion, ResourceID: u.ResourceID}
}

func (w wireURI) toURI() uri.URI {
	return uri.New(w.Authority, w.EntityID, w.EntityVersion, w.ResourceID)
}

// wireAttributes is the CBOR-friendly projection of uattributes.Attributes.
type wireAttributes struct {
	ID              [16]byte                  `cbor:"0,keyasint"`
	Type            uattributes.MessageType   `cbor:"1,keyasint"`
	Source          wireURI                   `cbor:"2,keyasint"`
	HasSink         bool                      `cbor:"3,keyasint"`
	Sink            wireURI                   `cbor:"4,keyasint"`
	Priority        uattributes.Priority      `cbor:"5,keyasint"`
	HasTTL          bool                      `cbor:"6,keyasint"`
	TTL             uint32                    `cbor:"7,keyasint"`
	HasPermission   bool                      `cbor:"8,keyasint"`
	PermissionLevel uint32                    `cbor:"9,keyasint"`
	HasCommStatus   bool                      `cbor:"10,keyasint"`
	CommStatus      int32                     `cbor:"11,keyasint"`
	HasReqID        bool                      `cbor:"12,keyasint"`
	ReqID           [16]byte                  `cbor:"13,keyasint"`
	Token           string                    `cbor:"14,keyasint"`
	Traceparent     string                    `cbor:"15,keyasint"`
	PayloadFormat   uattributes.PayloadFormat `cbor:"16,keyasint"`
	Ext             map[string]string         `cbor:"17,keyasint"`
}

func toWireAttributes(a uattributes.Attributes) (wireAttributes, error) {
	idBytes, err := a.ID.MarshalBinary()
	if err != nil {
		return wireAttributes{}, err
	}
	w := wireAttributes{
		Type:          a.Type,
		Source:        toWireURI(a.Source),
		Priority:      a.Priority,
		Token:         stringOrEmpty(a.Token),
		Traceparent:   stringOrEmpty(a.Traceparent),
		PayloadFormat: a.PayloadFormat,
		Ext:           a.Ext,
	}
	copy(w.ID[:], idBytes)
	if a.Sink != nil {
		w.HasSink = true
		w.Sink = toWireURI(*a.Sink)
	}
	if a.TTL != nil {
		w.HasTTL = true
		w.TTL = *a.TTL
	}
	if a.PermissionLevel != nil {
		w.HasPermission = true
		w.PermissionLevel = *a.PermissionLevel
	}
	if a.CommStatus != nil {
		w.HasCommStatus = true
		w.CommStatus = *a.CommStatus
	}
	if a.ReqID != nil {
		w.HasReqID = true
		reqBytes, err := a.ReqID.MarshalBinary()
		if err != nil {
			return wireAttributes{}, err
		}
		copy(w.ReqID[:], reqBytes)
	}
	return w, nil
}

func (w wireAttributes) toAttributes() (uattributes.Attributes, error) {
	var id uuid.UUID
	if err := id.UnmarshalBinary(w.ID[:]); err != nil {
		return uattributes.Attributes{}, err
	}
	a := uattributes.Attributes{
		ID:            id,
		Type:          w.Type,
		Source:        w.Source.toURI(),
		Priority:      w.Priority,
		PayloadFormat: w.PayloadFormat,
		Ext:           w.Ext,
	}
	if w.HasSink {
		sink := w.Sink.toURI()
		a.Sink = &sink
	}
	if w.HasTTL {
		ttl := w.TTL
		a.TTL = &ttl
	}
	if w.HasPermission {
		level := w.PermissionLevel
		a.PermissionLevel = &level
	}
	if w.HasCommStatus {
		status := w.CommStatus
		a.CommStatus = &status
	}
	if w.HasReqID {
		var reqid uuid.UUID
		if err := reqid.UnmarshalBinary(w.ReqID[:]); err != nil {
			return uattributes.Attributes{}, err
		}
		a.ReqID = &reqid
	}
	if w.Token != "" {
		token := w.Token
		a.Token = &token
	}
	if w.Traceparent != "" {
		tp := w.Traceparent
		a.Traceparent = &tp
	}
	return a, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// wireFrame is the sole structure exchanged over a ws connection: either a
// filter (un)registration or a message delivery.
type wireFrame struct {
	Kind          frameKind      `cbor:"0,keyasint"`
	SourceFilter  wireURI        `cbor:"1,keyasint"`
	HasSinkFilter bool           `cbor:"2,keyasint"`
	SinkFilter    wireURI        `cbor:"3,keyasint"`
	Attributes    wireAttributes `cbor:"4,keyasint"`
	Payload       []byte         `cbor:"5,keyasint"`
}

func encodeMessageFrame(msg *message.Message) ([]byte, error) {
	attr, err := toWireAttributes(msg.Attributes)
	if err != nil {
		return nil, err
	}
	f := wireFrame{Kind: frameDeliver, Attributes: attr, Payload: msg.Payload}
	return cbor.Marshal(f)
}

func encodeFilterFrame(kind frameKind, sourceFilter uri.URI, sinkFilter *uri.URI) ([]byte, error) {
	f := wireFrame{Kind: kind, SourceFilter: toWireURI(sourceFilter)}
	if sinkFilter != nil {
		f.HasSinkFilter = true
		f.SinkFilter = toWireURI(*sinkFilter)
	}
	return cbor.Marshal(f)
}

func decodeFrame(data []byte) (wireFrame, error) {
	var f wireFrame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return wireFrame{}, fmt.Errorf("ws: invalid frame: %w", err)
	}
	return f, nil
}

func (f wireFrame) toMessage() (*message.Message, error) {
	attr, err := f.Attributes.toAttributes()
	if err != nil {
		return nil, err
	}
	return &message.Message{Attributes: attr, Payload: f.Payload}, nil
}

func (f wireFrame) sinkFilter() *uri.URI {
	if !f.HasSinkFilter {
		return nil
	}
	sink := f.SinkFilter.toURI()
	return &sink
}
