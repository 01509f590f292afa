package comm

import (
	"context"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

// Notifier sends and receives notifications — unsolicited, point-to-point
// messages — on behalf of one uEntity, identified by source.
type Notifier struct {
	t      transport.Transport
	source uri.URI
}

// NewNotifier returns a Notifier that sends and listens as source.
func NewNotifier(t transport.Transport, source uri.URI) *Notifier {
	return &Notifier{t: t, source: source}
}

// Notify builds and sends a notification on resourceID to destination.
func (n *Notifier) Notify(ctx context.Context, resourceID uint16, destination uri.URI, payload []byte, format uattributes.PayloadFormat) *ustatus.Status {
	topic := uri.URI{
		Authority:     n.source.Authority,
		EntityID:      n.source.EntityID,
		EntityVersion: n.source.EntityVersion,
		ResourceID:    resourceID,
	}

	builder := message.Notification(topic, destination)
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
	return n.t.Send(ctx, msg)
}

// StartListening registers listener to receive notifications whose source
// matches sourceFilter and whose sink addresses this Notifier.
func (n *Notifier) StartListening(ctx context.Context, sourceFilter uri.URI, listener transport.Listener) *ustatus.Status {
	selfResponseAddr := uri.URI{
		Authority:     n.source.Authority,
		EntityID:      n.source.EntityID,
		EntityVersion: n.source.EntityVersion,
		ResourceID:    uri.ResourceIDResponse,
	}
	return n.t.RegisterListener(ctx, sourceFilter, &selfResponseAddr, listener)
}

// StopListening reverses a prior StartListening call.
func (n *Notifier) StopListening(ctx context.Context, sourceFilter uri.URI, listener transport.Listener) *ustatus.Status {
	selfResponseAddr := uri.URI{
		Authority:     n.source.Authority,
		EntityID:      n.source.EntityID,
		EntityVersion: n.source.EntityVersion,
		ResourceID:    uri.ResourceIDResponse,
	}
	return n.t.UnregisterListener(ctx, sourceFilter, &selfResponseAddr, listener)
}
