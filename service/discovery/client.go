// Package discovery is a thin facade over the in-memory RPC client for the
// uDiscovery service: it encodes/decodes fixed request/response payloads
// over a well-known resource id. All resolution logic lives on whichever
// uEntity answers the resource id this Client calls.
package discovery

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/eclipse-uprotocol/up-go/rpc"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
)

// ResourceIDLookup is the well-known method resource id uDiscovery exposes
// its LookupURI operation on.
const ResourceIDLookup uint16 = 0x0001

// LookupRequest asks uDiscovery to resolve every registered URI matching
// filter. filter may itself carry wildcards per uri.URI.Matches.
type LookupRequest struct {
	Filter uri.URI `cbor:"0,keyasint"`
}

// LookupResponse is uDiscovery's reply to a LookupRequest.
type LookupResponse struct {
	Matches []uri.URI `cbor:"0,keyasint"`
}

// Client is a thin RPC-backed handle to a remote uDiscovery service.
type Client struct {
	rpc     *rpc.Client
	service uri.URI
}

// NewClient returns a Client that invokes the uDiscovery service addressed
// at service using rpcClient.
func NewClient(rpcClient *rpc.Client, service uri.URI) *Client {
	return &Client{rpc: rpcClient, service: service}
}

// LookupURI resolves every URI registered with the discovery service that
// matches filter.
func (c *Client) LookupURI(ctx context.Context, filter uri.URI) ([]uri.URI, error) {
	method := uri.New(c.service.Authority, c.service.EntityID, c.service.EntityVersion, ResourceIDLookup)

	payload, err := cbor.Marshal(LookupRequest{Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("discovery: encode request: %w", err)
	}

	resp, st := c.rpc.InvokeMethod(ctx, method, rpc.CallOptions{TTL: 5000}, payload, uattributes.PayloadFormatRaw)
	if !st.IsOK() {
		return nil, st
	}

	var out LookupResponse
	if err := cbor.Unmarshal(resp.Payload, &out); err != nil {
		return nil, fmt.Errorf("discovery: decode response: %w", err)
	}
	return out.Matches, nil
}
