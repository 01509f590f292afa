// Package uri implements UUri, the uProtocol addressing scheme identifying
// a service (an entity, at a version) and a resource (method, topic, or the
// RPC response pseudo-resource) exposed by it, optionally scoped to a
// remote authority.
package uri

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// WildcardAuthority matches any authority name.
	WildcardAuthority = "*"
	// WildcardEntityID matches any entity id.
	WildcardEntityID = 0x0000FFFF
	// WildcardEntityVersion matches any entity major version.
	WildcardEntityVersion = 0x000000FF
	// WildcardResourceID matches any resource id.
	WildcardResourceID = 0x0000FFFF

	// ResourceIDResponse is the reserved resource id addressing the RPC
	// response pseudo-resource of an entity.
	ResourceIDResponse = 0
	// ResourceIDMinEvent is the lowest resource id reserved for published
	// topics (events).
	ResourceIDMinEvent = 0x8000
)

// URI identifies a uProtocol entity resource: who (authority), which
// service and version (entity), and what resource on it.
type URI struct {
	Authority     string
	EntityID      uint32
	EntityVersion uint8
	ResourceID    uint16
}

// New builds a URI from its logical fields without any validation.
func New(authority string, entityID uint32, entityVersion uint8, resourceID uint16) URI {
	return URI{
		Authority:     authority,
		EntityID:      entityID,
		EntityVersion: entityVersion,
		ResourceID:    resourceID,
	}
}

// Any returns the wildcard URI matching every authority, entity, version,
// and resource.
func Any() URI {
	return URI{
		Authority:     WildcardAuthority,
		EntityID:      WildcardEntityID,
		EntityVersion: WildcardEntityVersion,
		ResourceID:    WildcardResourceID,
	}
}

// AnyWithResourceID returns the wildcard URI pinned to the given resource
// id, matching any authority/entity/version — used by RPC servers to listen
// for requests regardless of caller.
func AnyWithResourceID(resourceID uint16) URI {
	u := Any()
	u.ResourceID = resourceID
	return u
}

// Parse parses a URI from its string form. Both the local form
// (`/entity/version/resource`) and the remote form
// (`//authority/entity/version/resource`) are accepted, with or without a
// leading `up:` scheme.
func Parse(s string) (URI, error) {
	rest := s
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		if s[:idx] != "up" {
			return URI{}, fmt.Errorf("uri: unsupported scheme %q", s[:idx])
		}
		rest = s[idx+1:]
	}

	isRemote := strings.HasPrefix(rest, "//")
	segments := strings.Split(rest, "/")

	var authority string
	var entityStr, versionStr, resourceStr string

	if isRemote {
		if len(segments) != 6 {
			return URI{}, fmt.Errorf("uri: remote form requires exactly 6 segments, got %d", len(segments))
		}
		authority = segments[2]
		if authority == "" {
			return URI{}, fmt.Errorf("uri: remote form requires a non-empty authority")
		}
		entityStr, versionStr, resourceStr = segments[3], segments[4], segments[5]
	} else {
		if len(segments) != 4 {
			return URI{}, fmt.Errorf("uri: local form requires exactly 4 segments, got %d", len(segments))
		}
		entityStr, versionStr, resourceStr = segments[1], segments[2], segments[3]
	}

	entityID, err := strconv.ParseUint(entityStr, 16, 32)
	if err != nil {
		return URI{}, fmt.Errorf("uri: invalid entity id %q: %w", entityStr, err)
	}
	version, err := strconv.ParseUint(versionStr, 16, 8)
	if err != nil {
		return URI{}, fmt.Errorf("uri: invalid entity version %q: %w", versionStr, err)
	}
	resourceID, err := strconv.ParseUint(resourceStr, 16, 16)
	if err != nil {
		return URI{}, fmt.Errorf("uri: invalid resource id %q: %w", resourceStr, err)
	}

	return URI{
		Authority:     authority,
		EntityID:      uint32(entityID),
		EntityVersion: uint8(version),
		ResourceID:    uint16(resourceID),
	}, nil
}

// String renders u without the `up:` scheme prefix, the form used on the
// wire within a transport that already scopes its own addressing.
func (u URI) String() string {
	return u.toURI(false)
}

// ToURI renders u, including the `up:` scheme prefix only when
// includeScheme is true.
func (u URI) ToURI(includeScheme bool) string {
	return u.toURI(includeScheme)
}

func (u URI) toURI(includeScheme bool) string {
	var b strings.Builder
	if includeScheme {
		b.WriteString("up:")
	}
	if u.Authority != "" {
		b.WriteString("//")
		b.WriteString(u.Authority)
	}
	fmt.Fprintf(&b, "/%X/%X/%X", u.EntityID, u.EntityVersion, u.ResourceID)
	return b.String()
}

// HasWildcard reports whether any field of u carries a wildcard value.
// The entity-id wildcard lives in the low 16 bits, independent of the
// instance id packed above it.
func (u URI) HasWildcard() bool {
	return u.Authority == WildcardAuthority ||
		u.EntityID&0xFFFF == WildcardEntityID ||
		u.EntityVersion == WildcardEntityVersion ||
		u.ResourceID == WildcardResourceID
}

// VerifyNoWildcards returns an error if u contains any wildcard field,
// required of source addresses on outgoing messages.
func (u URI) VerifyNoWildcards() error {
	if u.HasWildcard() {
		return fmt.Errorf("uri: %s contains a wildcard entry", u.String())
	}
	return nil
}

// IsRPCMethod reports whether u addresses an RPC method resource
// (0 < resourceID < 0x8000).
func (u URI) IsRPCMethod() bool {
	return u.ResourceID > ResourceIDResponse && u.ResourceID < ResourceIDMinEvent
}

// VerifyRPCMethod returns an error unless u addresses an RPC method.
func (u URI) VerifyRPCMethod() error {
	if !u.IsRPCMethod() {
		return fmt.Errorf("uri: %s does not address an RPC method", u.String())
	}
	return nil
}

// IsRPCResponse reports whether u addresses the RPC response
// pseudo-resource (resourceID == 0).
func (u URI) IsRPCResponse() bool {
	return u.ResourceID == ResourceIDResponse
}

// VerifyRPCResponse returns an error unless u addresses the RPC response
// pseudo-resource.
func (u URI) VerifyRPCResponse() error {
	if !u.IsRPCResponse() {
		return fmt.Errorf("uri: %s does not address the RPC response resource", u.String())
	}
	return nil
}

// IsEvent reports whether u addresses a published topic (resourceID >=
// 0x8000).
func (u URI) IsEvent() bool {
	return u.ResourceID >= ResourceIDMinEvent
}

// VerifyEvent returns an error unless u addresses a published topic.
func (u URI) VerifyEvent() error {
	if !u.IsEvent() {
		return fmt.Errorf("uri: %s does not address an event resource", u.String())
	}
	return nil
}
