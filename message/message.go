// Package message defines the uProtocol Message (attributes plus an
// optional payload) and the builder that produces one for each of the
// four interaction patterns.
package message

import (
	"github.com/eclipse-uprotocol/up-go/uattributes"
)

// Message is an attributes record plus an optional opaque payload.
type Message struct {
	Attributes uattributes.Attributes
	Payload    []byte
}

// HasPayload reports whether m carries a non-empty payload.
func (m *Message) HasPayload() bool {
	return len(m.Payload) > 0
}
