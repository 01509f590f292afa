package message

import (
	"testing"

	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
)

var (
	source = uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x8001}
	sink   = uri.URI{Authority: "b", EntityID: 6, EntityVersion: 1, ResourceID: 0}
	method = uri.URI{Authority: "b", EntityID: 1, EntityVersion: 1, ResourceID: 0x1000}
	self   = uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0}
)

func TestBuilder_Publish(t *testing.T) {
	msg, err := Publish(source).Build()
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if msg.Attributes.Type != uattributes.TypePublish {
		t.Errorf("Type = %v, want TypePublish", msg.Attributes.Type)
	}
	if msg.HasPayload() {
		t.Errorf("expected no payload")
	}
}

func TestBuilder_Notification(t *testing.T) {
	msg, err := Notification(source, sink).Build()
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if msg.Attributes.Sink == nil || *msg.Attributes.Sink != sink {
		t.Errorf("Sink = %v, want %v", msg.Attributes.Sink, sink)
	}
}

func TestBuilder_Request_RequiresTTL(t *testing.T) {
	if _, err := Request(self, method, 0).Build(); err == nil {
		t.Errorf("expected build failure for zero ttl")
	}
	msg, err := Request(self, method, 5000).Build()
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if msg.Attributes.TTLOrDefault(0) != 5000 {
		t.Errorf("ttl = %d, want 5000", msg.Attributes.TTLOrDefault(0))
	}
}

func TestBuilder_ResponseForRequest(t *testing.T) {
	req, err := Request(self, method, 5000).WithPriority(uattributes.PriorityCS4).Build()
	if err != nil {
		t.Fatalf("building request failed: %v", err)
	}

	resp, err := ResponseForRequest(&req.Attributes).Build()
	if err != nil {
		t.Fatalf("ResponseForRequest Build() returned error: %v", err)
	}

	if resp.Attributes.Type != uattributes.TypeResponse {
		t.Errorf("Type = %v, want TypeResponse", resp.Attributes.Type)
	}
	if resp.Attributes.Source != *req.Attributes.Sink {
		t.Errorf("response source = %v, want request sink %v", resp.Attributes.Source, *req.Attributes.Sink)
	}
	if *resp.Attributes.Sink != req.Attributes.Source {
		t.Errorf("response sink = %v, want request source %v", *resp.Attributes.Sink, req.Attributes.Source)
	}
	if *resp.Attributes.ReqID != req.Attributes.ID {
		t.Errorf("response reqid = %v, want request id %v", *resp.Attributes.ReqID, req.Attributes.ID)
	}
	if resp.Attributes.Priority != uattributes.PriorityCS4 {
		t.Errorf("response priority = %v, want CS4", resp.Attributes.Priority)
	}
	if resp.Attributes.TTLOrDefault(0) != 5000 {
		t.Errorf("response ttl = %d, want 5000", resp.Attributes.TTLOrDefault(0))
	}
}

func TestBuilder_BuildWithProtobufPayload(t *testing.T) {
	msg, err := Publish(source).BuildWithProtobufPayload([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if msg.Attributes.PayloadFormat != uattributes.PayloadFormatProtobuf {
		t.Errorf("PayloadFormat = %v, want PayloadFormatProtobuf", msg.Attributes.PayloadFormat)
	}
	if !msg.HasPayload() {
		t.Errorf("expected payload to be present")
	}
}

func TestBuilder_InvalidAttributesFailBuild(t *testing.T) {
	badSource := uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x1000}
	if _, err := Publish(badSource).Build(); err == nil {
		t.Errorf("expected build failure for publish with non-event source")
	}
}
