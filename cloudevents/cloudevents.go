// Package cloudevents bridges uProtocol Messages to and from the
// CloudEvents structured-mode JSON representation, at the boundary only:
// nothing in the core Communication Layer produces or consumes a
// CloudEvent directly.
package cloudevents

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/uuid"
)

const specVersion = "1.0"

// Event is the structured-mode CloudEvents 1.0 JSON shape this bridge
// reads and writes.
type Event struct {
	SpecVersion string `json:"specversion"`
	ID          string `json:"id"`
	Source      string `json:"source"`
	Type        string `json:"type"`

	DataContentType string          `json:"datacontenttype,omitempty"`
	TextData        string          `json:"data,omitempty"`
	ProtoData       json.RawMessage `json:"proto_data,omitempty"`
	BinaryData      string          `json:"data_base64,omitempty"`

	Sink            string `json:"sink,omitempty"`
	TTL             uint32 `json:"ttl,omitempty"`
	Priority        string `json:"priority,omitempty"`
	PermissionLevel uint32 `json:"permissionlevel,omitempty"`
	RequestID       string `json:"reqid,omitempty"`
	CommStatus      int32  `json:"commstatus,omitempty"`
	Traceparent     string `json:"traceparent,omitempty"`
	PayloadFormat   int    `json:"datacontentformat,omitempty"`
}

var messageTypeToEventType = map[uattributes.MessageType]string{
	uattributes.TypePublish:      "up-pub.v1",
	uattributes.TypeNotification: "up-not.v1",
	uattributes.TypeRequest:      "up-req.v1",
	uattributes.TypeResponse:     "up-res.v1",
}

var eventTypeToMessageType = map[string]uattributes.MessageType{
	"up-pub.v1": uattributes.TypePublish,
	"up-not.v1": uattributes.TypeNotification,
	"up-req.v1": uattributes.TypeRequest,
	"up-res.v1": uattributes.TypeResponse,
}

var priorityToString = map[uattributes.Priority]string{
	uattributes.PriorityCS0: "CS0",
	uattributes.PriorityCS1: "CS1",
	uattributes.PriorityCS2: "CS2",
	uattributes.PriorityCS3: "CS3",
	uattributes.PriorityCS4: "CS4",
	uattributes.PriorityCS5: "CS5",
	uattributes.PriorityCS6: "CS6",
}

var stringToPriority = map[string]uattributes.Priority{
	"CS0": uattributes.PriorityCS0,
	"CS1": uattributes.PriorityCS1,
	"CS2": uattributes.PriorityCS2,
	"CS3": uattributes.PriorityCS3,
	"CS4": uattributes.PriorityCS4,
	"CS5": uattributes.PriorityCS5,
	"CS6": uattributes.PriorityCS6,
}

// ToEvent converts msg to its CloudEvents representation.
func ToEvent(msg *message.Message) (*Event, error) {
	a := msg.Attributes
	eventType, ok := messageTypeToEventType[a.Type]
	if !ok {
		return nil, fmt.Errorf("cloudevents: unsupported message type %s", a.Type)
	}

	ev := &Event{
		SpecVersion: specVersion,
		ID:          a.ID.ToHyphenatedString(),
		Source:      a.Source.ToURI(true),
		Type:        eventType,
	}
	if a.Sink != nil {
		ev.Sink = a.Sink.ToURI(true)
	}
	if a.TTL != nil {
		ev.TTL = *a.TTL
	}
	if name, ok := priorityToString[a.Priority]; ok {
		ev.Priority = name
	}
	if a.PermissionLevel != nil {
		ev.PermissionLevel = *a.PermissionLevel
	}
	if a.ReqID != nil {
		ev.RequestID = a.ReqID.ToHyphenatedString()
	}
	if a.CommStatus != nil {
		ev.CommStatus = *a.CommStatus
	}
	if a.Traceparent != nil {
		ev.Traceparent = *a.Traceparent
	}
	ev.PayloadFormat = int(a.PayloadFormat)

	switch a.PayloadFormat {
	case uattributes.PayloadFormatText, uattributes.PayloadFormatJSON:
		ev.TextData = string(msg.Payload)
		ev.DataContentType = "text/plain"
		if a.PayloadFormat == uattributes.PayloadFormatJSON {
			ev.DataContentType = "application/json"
		}
	case uattributes.PayloadFormatProtobuf, uattributes.PayloadFormatProtobufWrappedInAny:
		ev.ProtoData = json.RawMessage(fmt.Sprintf("%q", base64.StdEncoding.EncodeToString(msg.Payload)))
		ev.DataContentType = "application/protobuf"
	default:
		if len(msg.Payload) > 0 {
			ev.BinaryData = base64.StdEncoding.EncodeToString(msg.Payload)
			ev.DataContentType = "application/octet-stream"
		}
	}

	return ev, nil
}

// FromEvent converts ev back to a Message. Conversion is strict: a
// mismatched spec version, or a missing id/type/source, is a validation
// error.
func FromEvent(ev *Event) (*message.Message, error) {
	if ev.SpecVersion != specVersion {
		return nil, fmt.Errorf("cloudevents: unsupported specversion %q", ev.SpecVersion)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("cloudevents: missing id")
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("cloudevents: missing type")
	}
	if ev.Source == "" {
		return nil, fmt.Errorf("cloudevents: missing source")
	}

	msgType, ok := eventTypeToMessageType[ev.Type]
	if !ok {
		return nil, fmt.Errorf("cloudevents: unrecognized type %q", ev.Type)
	}

	id, err := uuid.FromHyphenatedString(ev.ID)
	if err != nil {
		return nil, fmt.Errorf("cloudevents: invalid id: %w", err)
	}
	source, err := uri.Parse(ev.Source)
	if err != nil {
		return nil, fmt.Errorf("cloudevents: invalid source: %w", err)
	}

	a := uattributes.Attributes{
		ID:     id,
		Type:   msgType,
		Source: source,
	}
	if ev.Sink != "" {
		sink, err := uri.Parse(ev.Sink)
		if err != nil {
			return nil, fmt.Errorf("cloudevents: invalid sink: %w", err)
		}
		a.Sink = &sink
	}
	if ev.TTL != 0 {
		ttl := ev.TTL
		a.TTL = &ttl
	}
	if p, ok := stringToPriority[ev.Priority]; ok {
		a.Priority = p
	}
	if ev.PermissionLevel != 0 {
		level := ev.PermissionLevel
		a.PermissionLevel = &level
	}
	if ev.RequestID != "" {
		reqid, err := uuid.FromHyphenatedString(ev.RequestID)
		if err != nil {
			return nil, fmt.Errorf("cloudevents: invalid reqid: %w", err)
		}
		a.ReqID = &reqid
	}
	if ev.CommStatus != 0 {
		status := ev.CommStatus
		a.CommStatus = &status
	}
	if ev.Traceparent != "" {
		tp := ev.Traceparent
		a.Traceparent = &tp
	}
	a.PayloadFormat = uattributes.PayloadFormat(ev.PayloadFormat)

	var payload []byte
	switch {
	case ev.TextData != "":
		payload = []byte(ev.TextData)
	case len(ev.ProtoData) > 0:
		var encoded string
		if err := json.Unmarshal(ev.ProtoData, &encoded); err != nil {
			return nil, fmt.Errorf("cloudevents: invalid proto_data: %w", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("cloudevents: invalid proto_data encoding: %w", err)
		}
		payload = decoded
	case ev.BinaryData != "":
		decoded, err := base64.StdEncoding.DecodeString(ev.BinaryData)
		if err != nil {
			return nil, fmt.Errorf("cloudevents: invalid data_base64 encoding: %w", err)
		}
		payload = decoded
	}

	return &message.Message{Attributes: a, Payload: payload}, nil
}
