// Package comm offers thin publish/subscribe and notification facades over
// the message Builder and the Transport contract, sparing callers from
// constructing Attributes by hand for the two non-RPC interaction
// patterns.
package comm

import (
	"context"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

// Publisher sends and subscribes to published events (topics) on behalf
// of one uEntity, identified by source.
type Publisher struct {
	t      transport.Transport
	source uri.URI
}

// NewPublisher returns a Publisher that publishes and listens as source.
func NewPublisher(t transport.Transport, source uri.URI) *Publisher {
	return &Publisher{t: t, source: source}
}

// Publish builds and sends an event on resourceID, which must fall in the
// event range ([0x8000, 0x10000)).
func (p *Publisher) Publish(ctx context.Context, resourceID uint16, payload []byte, format uattributes.PayloadFormat) *ustatus.Status {
	topic := p.topicURI(resourceID)

	builder := message.Publish(topic)
	var msg *message.Message
	var err error
	if len(payload) > 0 {
		msg, err = builder.BuildWithPayload(payload, format)
	} else {
		msg, err = builder.Build()
	}
	if err != nil {
		return ustatus.New(ustatus.CodeInvalidArgument, err.Error())
	}
	return p.t.Send(ctx, msg)
}

// StartListening registers listener to receive every event whose source
// matches topicFilter. topicFilter may use wildcards to subscribe broadly.
func (p *Publisher) StartListening(ctx context.Context, topicFilter uri.URI, listener transport.Listener) *ustatus.Status {
	return p.t.RegisterListener(ctx, topicFilter, nil, listener)
}

// StopListening reverses a prior StartListening call.
func (p *Publisher) StopListening(ctx context.Context, topicFilter uri.URI, listener transport.Listener) *ustatus.Status {
	return p.t.UnregisterListener(ctx, topicFilter, nil, listener)
}

func (p *Publisher) topicURI(resourceID uint16) uri.URI {
	return uri.URI{
		Authority:     p.source.Authority,
		EntityID:      p.source.EntityID,
		EntityVersion: p.source.EntityVersion,
		ResourceID:    resourceID,
	}
}
