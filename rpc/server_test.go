package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/transport/local"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
	"github.com/eclipse-uprotocol/up-go/uuid"
)

func noopHandler(ctx context.Context, resourceID uint16, attr *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status) {
	return nil, ustatus.OK()
}

func TestRegisterEndpoint_RejectsDuplicate(t *testing.T) {
	lt := local.New()
	server := NewServer(lt, methodURI, nil)

	if st := server.RegisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler)); !st.IsOK() {
		t.Fatalf("first registration failed: %v", st)
	}
	st := server.RegisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler))
	if st.IsOK() || st.Code != ustatus.CodeAlreadyExists {
		t.Errorf("expected CodeAlreadyExists, got %v", st)
	}
}

func TestRegisterEndpoint_RejectsOutOfRangeResourceID(t *testing.T) {
	lt := local.New()
	server := NewServer(lt, methodURI, nil)

	for _, resourceID := range []uint16{0, 0x8000} {
		st := server.RegisterEndpoint(context.Background(), nil, resourceID, RequestHandlerFunc(noopHandler))
		if st.IsOK() {
			t.Errorf("expected failure for resource id 0x%X", resourceID)
		}
	}
}

func TestUnregisterEndpoint_FailsWhenMissing(t *testing.T) {
	lt := local.New()
	server := NewServer(lt, methodURI, nil)

	st := server.UnregisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler))
	if st.IsOK() || st.Code != ustatus.CodeNotFound {
		t.Errorf("expected CodeNotFound, got %v", st)
	}
}

func TestRegisterUnregisterEndpoint_RoundTrip(t *testing.T) {
	lt := local.New()
	server := NewServer(lt, methodURI, nil)

	if st := server.RegisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler)); !st.IsOK() {
		t.Fatalf("RegisterEndpoint failed: %v", st)
	}
	if st := server.UnregisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler)); !st.IsOK() {
		t.Fatalf("UnregisterEndpoint failed: %v", st)
	}
	if st := server.UnregisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler)); st.IsOK() {
		t.Errorf("expected second unregister to fail")
	}
}

func TestServer_InvalidRequestProducesErrorResponse(t *testing.T) {
	lt := local.New()
	server := NewServer(lt, methodURI, nil)
	if st := server.RegisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler)); !st.IsOK() {
		t.Fatalf("RegisterEndpoint failed: %v", st)
	}

	received := make(chan *message.Message, 1)
	probe := transport.ListenerFunc(func(ctx context.Context, msg *message.Message) {
		received <- msg
	})
	lt.RegisterListener(context.Background(), methodURI, &clientSource, probe)

	// A request with no ttl fails validation but carries enough data
	// (id + a response-shaped source) to synthesize an error response.
	invalidReq := &message.Message{Attributes: uattributes.Attributes{
		ID:     uuid.Build(),
		Type:   uattributes.TypeRequest,
		Source: clientSource,
		Sink:   &methodURI,
	}}
	lt.Send(context.Background(), invalidReq)

	select {
	case resp := <-received:
		if resp.Attributes.CommStatus == nil || ustatus.Code(*resp.Attributes.CommStatus) != ustatus.CodeInvalidArgument {
			t.Errorf("expected commstatus INVALID_ARGUMENT, got %v", resp.Attributes.CommStatus)
		}
		if resp.Attributes.ReqID == nil || *resp.Attributes.ReqID != invalidReq.Attributes.ID {
			t.Errorf("expected reqid to match the invalid request's id")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for error response")
	}
}

func TestServer_InvalidRequestWithoutIDIsDiscarded(t *testing.T) {
	lt := local.New()
	server := NewServer(lt, methodURI, nil)
	if st := server.RegisterEndpoint(context.Background(), nil, 0x1000, RequestHandlerFunc(noopHandler)); !st.IsOK() {
		t.Fatalf("RegisterEndpoint failed: %v", st)
	}

	received := make(chan *message.Message, 1)
	probe := transport.ListenerFunc(func(ctx context.Context, msg *message.Message) {
		received <- msg
	})
	lt.RegisterListener(context.Background(), methodURI, &clientSource, probe)

	ttl := uint32(5000)
	invalidReq := &message.Message{Attributes: uattributes.Attributes{
		Type:   uattributes.TypeRequest,
		Source: clientSource,
		Sink:   &methodURI,
		TTL:    &ttl,
	}}
	lt.Send(context.Background(), invalidReq)

	select {
	case <-received:
		t.Fatalf("expected the invalid request to be silently discarded")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_OriginFilter_RejectsNonResponseResource(t *testing.T) {
	lt := local.New()
	server := NewServer(lt, methodURI, nil)
	badFilter := uri.URI{Authority: "*", EntityID: uri.WildcardEntityID, EntityVersion: uri.WildcardEntityVersion, ResourceID: 0x0001}

	st := server.RegisterEndpoint(context.Background(), &badFilter, 0x1000, RequestHandlerFunc(noopHandler))
	if st.IsOK() {
		t.Errorf("expected failure for origin filter with non-response resource id")
	}
}
