// Package subscription is a thin facade over the in-memory RPC client for
// the uSubscription service: a typed wrapper that marshals/unmarshals
// fixed request/response payloads over a well-known resource id. It
// carries no business logic of its own — subscription state lives on
// whichever uEntity implements the resource id this Client calls.
package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/eclipse-uprotocol/up-go/rpc"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
)

// ResourceIDSubscribe is the well-known method resource id uSubscription
// exposes its Subscribe operation on.
const ResourceIDSubscribe uint16 = 0x0001

// ResourceIDUnsubscribe is the well-known method resource id uSubscription
// exposes its Unsubscribe operation on.
const ResourceIDUnsubscribe uint16 = 0x0002

// State is the subscription state returned by Subscribe.
type State int

const (
	StateUnsubscribed State = iota
	StateSubscribePending
	StateSubscribed
)

// SubscribeRequest asks the uSubscription service to subscribe subscriber
// to topic for the given duration.
type SubscribeRequest struct {
	Topic      uri.URI       `cbor:"0,keyasint"`
	Subscriber uri.URI       `cbor:"1,keyasint"`
	TTL        time.Duration `cbor:"2,keyasint"`
}

// SubscribeResponse is the uSubscription service's reply to a
// SubscribeRequest.
type SubscribeResponse struct {
	Topic uri.URI `cbor:"0,keyasint"`
	State State   `cbor:"1,keyasint"`
}

// UnsubscribeRequest asks the uSubscription service to remove a prior
// subscription.
type UnsubscribeRequest struct {
	Topic      uri.URI `cbor:"0,keyasint"`
	Subscriber uri.URI `cbor:"1,keyasint"`
}

// Client is a thin RPC-backed handle to a remote uSubscription service.
type Client struct {
	rpc     *rpc.Client
	service uri.URI
}

// NewClient returns a Client that invokes the uSubscription service
// addressed at service using rpcClient.
func NewClient(rpcClient *rpc.Client, service uri.URI) *Client {
	return &Client{rpc: rpcClient, service: service}
}

// Subscribe requests a subscription to topic on behalf of subscriber,
// valid for ttl.
func (c *Client) Subscribe(ctx context.Context, topic, subscriber uri.URI, ttl time.Duration) (*SubscribeResponse, error) {
	method := uri.New(c.service.Authority, c.service.EntityID, c.service.EntityVersion, ResourceIDSubscribe)

	payload, err := cbor.Marshal(SubscribeRequest{Topic: topic, Subscriber: subscriber, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("subscription: encode request: %w", err)
	}

	resp, st := c.rpc.InvokeMethod(ctx, method, rpc.CallOptions{TTL: 5000}, payload, uattributes.PayloadFormatRaw)
	if !st.IsOK() {
		return nil, st
	}

	var out SubscribeResponse
	if err := cbor.Unmarshal(resp.Payload, &out); err != nil {
		return nil, fmt.Errorf("subscription: decode response: %w", err)
	}
	return &out, nil
}

// Unsubscribe cancels a prior subscription to topic on behalf of
// subscriber.
func (c *Client) Unsubscribe(ctx context.Context, topic, subscriber uri.URI) error {
	method := uri.New(c.service.Authority, c.service.EntityID, c.service.EntityVersion, ResourceIDUnsubscribe)

	payload, err := cbor.Marshal(UnsubscribeRequest{Topic: topic, Subscriber: subscriber})
	if err != nil {
		return fmt.Errorf("subscription: encode request: %w", err)
	}

	_, st := c.rpc.InvokeMethod(ctx, method, rpc.CallOptions{TTL: 5000}, payload, uattributes.PayloadFormatRaw)
	if !st.IsOK() {
		return st
	}
	return nil
}
