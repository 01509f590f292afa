package rpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

const defaultRequestTTLMillis = 10_000

// RequestHandler services one inbound RPC request and returns the payload
// to carry in the response, or a status describing why it could not be
// served. A handler must not block the dispatch goroutine beyond the
// request's ttl; HandleRequest is itself run with a bounded context.
type RequestHandler interface {
	HandleRequest(ctx context.Context, resourceID uint16, attr *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status)
}

// RequestHandlerFunc adapts a plain function to a RequestHandler.
type RequestHandlerFunc func(ctx context.Context, resourceID uint16, attr *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status)

// HandleRequest implements RequestHandler.
func (f RequestHandlerFunc) HandleRequest(ctx context.Context, resourceID uint16, attr *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status) {
	return f(ctx, resourceID, attr, payload)
}

type endpoint struct {
	originFilter uri.URI
	sinkFilter   uri.URI
	listener     transport.Listener
}

// Server is the in-memory RPC server: it dispatches inbound requests,
// keyed by resource id, to the handler registered for that endpoint.
type Server struct {
	t          transport.Transport
	selfSource uri.URI
	log        *zap.Logger

	mu        sync.Mutex
	endpoints map[uint16]*endpoint
}

// NewServer returns a Server that will register its endpoints against t,
// addressed at selfSource. A nil logger defaults to a no-op logger.
func NewServer(t transport.Transport, selfSource uri.URI, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		t:          t,
		selfSource: selfSource,
		log:        log,
		endpoints:  make(map[uint16]*endpoint),
	}
}

// RegisterEndpoint installs handler to service requests addressed to
// resourceID. originFilter, if non-nil, restricts which callers' requests
// are delivered; it must address the RPC response resource (wildcards in
// authority/entity/version are allowed).
func (s *Server) RegisterEndpoint(ctx context.Context, originFilter *uri.URI, resourceID uint16, handler RequestHandler) *ustatus.Status {
	if originFilter != nil {
		if err := originFilter.VerifyRPCResponse(); err != nil {
			return ustatus.New(ustatus.CodeInvalidArgument, "origin filter must address the RPC response resource: "+err.Error())
		}
	}

	sinkFilter := uri.URI{
		Authority:     s.selfSource.Authority,
		EntityID:      s.selfSource.EntityID,
		EntityVersion: s.selfSource.EntityVersion,
		ResourceID:    resourceID,
	}
	if err := sinkFilter.VerifyRPCMethod(); err != nil {
		return ustatus.New(ustatus.CodeInvalidArgument, "resource id must address an RPC method: "+err.Error())
	}

	effectiveOrigin := uri.AnyWithResourceID(uri.ResourceIDResponse)
	if originFilter != nil {
		effectiveOrigin = *originFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.endpoints[resourceID]; exists {
		return errMaxListenersExceeded()
	}

	listener := transport.ListenerFunc(func(ctx context.Context, msg *message.Message) {
		s.dispatch(ctx, resourceID, handler, msg)
	})

	if st := s.t.RegisterListener(ctx, effectiveOrigin, &sinkFilter, listener); !st.IsOK() {
		return st
	}

	s.endpoints[resourceID] = &endpoint{
		originFilter: effectiveOrigin,
		sinkFilter:   sinkFilter,
		listener:     listener,
	}
	return ustatus.OK()
}

// UnregisterEndpoint removes a registration previously made with
// RegisterEndpoint for resourceID.
func (s *Server) UnregisterEndpoint(ctx context.Context, originFilter *uri.URI, resourceID uint16, handler RequestHandler) *ustatus.Status {
	if originFilter != nil {
		if err := originFilter.VerifyRPCResponse(); err != nil {
			return ustatus.New(ustatus.CodeInvalidArgument, "origin filter must address the RPC response resource: "+err.Error())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ep, exists := s.endpoints[resourceID]
	if !exists {
		return errNoSuchListener()
	}

	if st := s.t.UnregisterListener(ctx, ep.originFilter, &ep.sinkFilter, ep.listener); !st.IsOK() {
		return st
	}
	delete(s.endpoints, resourceID)
	return ustatus.OK()
}

// dispatch is the listener installed for one resource id: it validates the
// inbound message as a request, then routes it to processValidRequest or
// processInvalidRequest.
func (s *Server) dispatch(ctx context.Context, resourceID uint16, handler RequestHandler, msg *message.Message) {
	if err := uattributes.ValidatorFor(uattributes.TypeRequest).Validate(&msg.Attributes); err != nil {
		s.processInvalidRequest(ctx, msg, err)
		return
	}
	s.processValidRequest(ctx, resourceID, handler, msg)
}

func (s *Server) processValidRequest(ctx context.Context, resourceID uint16, handler RequestHandler, req *message.Message) {
	ttl := req.Attributes.TTLOrDefault(defaultRequestTTLMillis)
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(ttl)*time.Millisecond)
	defer cancel()

	type outcome struct {
		payload []byte
		status  *ustatus.Status
	}
	done := make(chan outcome, 1)
	go func() {
		payload, status := handler.HandleRequest(reqCtx, resourceID, &req.Attributes, req.Payload)
		done <- outcome{payload, status}
	}()

	var status *ustatus.Status
	var payload []byte
	select {
	case o := <-done:
		payload, status = o.payload, o.status
	case <-reqCtx.Done():
		status = ustatus.New(ustatus.CodeDeadlineExceeded, "request handler did not return within ttl")
	}

	builder := message.ResponseForRequest(&req.Attributes)
	var resp *message.Message
	var err error
	if status.IsOK() {
		if len(payload) > 0 {
			resp, err = builder.BuildWithPayload(payload, req.Attributes.PayloadFormat)
		} else {
			resp, err = builder.Build()
		}
	} else {
		errPayload, marshalErr := status.MarshalCBOR()
		if marshalErr != nil {
			s.log.Error("failed to serialize error status", zap.Error(marshalErr))
			return
		}
		resp, err = builder.WithCommStatus(int32(status.Code)).BuildWithPayload(errPayload, uattributes.PayloadFormatRaw)
	}
	if err != nil {
		s.log.Info("failed to create response message", zap.Error(err))
		return
	}

	if st := s.t.Send(ctx, resp); !st.IsOK() {
		s.log.Info("failed to send response message", zap.String("status", st.Error()))
	}
}

func (s *Server) processInvalidRequest(ctx context.Context, req *message.Message, validationErr error) {
	if req.Attributes.ID.IsZero() {
		return
	}
	if err := req.Attributes.Source.VerifyRPCResponse(); err != nil {
		return
	}

	var sink uri.URI
	if req.Attributes.Sink != nil {
		sink = *req.Attributes.Sink
	}

	status := ustatus.New(ustatus.CodeInvalidArgument, validationErr.Error())
	errPayload, err := status.MarshalCBOR()
	if err != nil {
		return
	}

	resp, err := message.Response(sink, req.Attributes.Source, req.Attributes.ID).
		WithCommStatus(int32(status.Code)).
		BuildWithPayload(errPayload, uattributes.PayloadFormatRaw)
	if err != nil {
		s.log.Debug("invalid request message does not contain enough data to create response", zap.Error(err))
		return
	}

	if st := s.t.Send(ctx, resp); !st.IsOK() {
		s.log.Info("failed to send error response", zap.String("status", st.Error()))
	}
}
