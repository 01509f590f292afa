package cloudevents

import (
	"testing"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
)

func TestToEvent_FromEvent_RoundTrip_Publish(t *testing.T) {
	source := uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x8001}
	msg, err := message.Publish(source).
		WithPriority(uattributes.PriorityCS3).
		BuildWithPayload([]byte("hello"), uattributes.PayloadFormatText)
	if err != nil {
		t.Fatalf("building message failed: %v", err)
	}

	ev, err := ToEvent(msg)
	if err != nil {
		t.Fatalf("ToEvent() returned error: %v", err)
	}
	if ev.Type != "up-pub.v1" {
		t.Errorf("Type = %q, want up-pub.v1", ev.Type)
	}
	if ev.Priority != "CS3" {
		t.Errorf("Priority = %q, want CS3", ev.Priority)
	}
	if ev.TextData != "hello" {
		t.Errorf("TextData = %q, want hello", ev.TextData)
	}

	back, err := FromEvent(ev)
	if err != nil {
		t.Fatalf("FromEvent() returned error: %v", err)
	}
	if back.Attributes.ID != msg.Attributes.ID {
		t.Errorf("round-tripped id = %v, want %v", back.Attributes.ID, msg.Attributes.ID)
	}
	if back.Attributes.Source != msg.Attributes.Source {
		t.Errorf("round-tripped source = %v, want %v", back.Attributes.Source, msg.Attributes.Source)
	}
	if string(back.Payload) != "hello" {
		t.Errorf("round-tripped payload = %q, want hello", back.Payload)
	}
	if back.Attributes.Priority != uattributes.PriorityCS3 {
		t.Errorf("round-tripped priority = %v, want CS3", back.Attributes.Priority)
	}
}

func TestToEvent_FromEvent_RoundTrip_ProtobufPayload(t *testing.T) {
	source := uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x8001}
	msg, err := message.Publish(source).BuildWithProtobufPayload([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err != nil {
		t.Fatalf("building message failed: %v", err)
	}

	ev, err := ToEvent(msg)
	if err != nil {
		t.Fatalf("ToEvent() returned error: %v", err)
	}

	back, err := FromEvent(ev)
	if err != nil {
		t.Fatalf("FromEvent() returned error: %v", err)
	}
	if string(back.Payload) != string(msg.Payload) {
		t.Errorf("round-tripped payload = %v, want %v", back.Payload, msg.Payload)
	}
}

func TestFromEvent_RejectsWrongSpecVersion(t *testing.T) {
	ev := &Event{SpecVersion: "0.3", ID: "x", Type: "up-pub.v1", Source: "/1/1/1"}
	if _, err := FromEvent(ev); err == nil {
		t.Errorf("expected error for wrong specversion")
	}
}

func TestFromEvent_RejectsMissingFields(t *testing.T) {
	cases := []*Event{
		{SpecVersion: specVersion, Type: "up-pub.v1", Source: "/1/1/1"},
		{SpecVersion: specVersion, ID: "x", Source: "/1/1/1"},
		{SpecVersion: specVersion, ID: "x", Type: "up-pub.v1"},
	}
	for _, ev := range cases {
		if _, err := FromEvent(ev); err == nil {
			t.Errorf("expected error for incomplete event %+v", ev)
		}
	}
}
