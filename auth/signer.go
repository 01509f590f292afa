// Package auth adds optional Ed25519/JWS message signing and NaCl box
// payload encryption on top of the core Message type. Both are entirely
// opt-in: nothing in transport, rpc, or comm requires a signed or
// encrypted message, and a plain Message continues to validate and
// deliver normally.
package auth

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// ExtKeySignature is the Attributes.Ext key under which Signer stores the
// compact-serialized JWS produced by Sign.
const ExtKeySignature = "uprotocol-sig"

// Signer signs and verifies Messages on behalf of one Ed25519 key pair,
// identified by keyID (e.g. a DID or uEntity URI).
type Signer struct {
	keyID      string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner returns a Signer that signs with privateKey and tags signatures
// with keyID.
func NewSigner(keyID string, privateKey ed25519.PrivateKey) *Signer {
	return &Signer{
		keyID:      keyID,
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}
}

// PublicKey returns the Signer's Ed25519 public key, for distribution to
// verifiers.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.publicKey
}

// Sign computes a JWS over msg's id, type, source, sink, reqid, payload
// format and payload (see signingPayload; other attributes such as
// priority and ttl are not covered) and stores its
// compact serialization in msg.Attributes.Ext, overwriting any existing
// signature. msg.Attributes.Token is set to the Signer's keyID.
func (s *Signer) Sign(msg *message.Message) error {
	headers := jws.NewHeaders()
	if err := headers.Set("kid", s.keyID); err != nil {
		return fmt.Errorf("auth: set kid header: %w", err)
	}

	signed, err := jws.Sign(signingPayload(msg), jws.WithKey(jwa.EdDSA, s.privateKey, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return fmt.Errorf("auth: sign message: %w", err)
	}

	if msg.Attributes.Ext == nil {
		msg.Attributes.Ext = make(map[string]string, 1)
	}
	msg.Attributes.Ext[ExtKeySignature] = string(signed)
	keyID := s.keyID
	msg.Attributes.Token = &keyID
	return nil
}

// Verify checks that msg carries a valid signature over its current
// signed fields (those listed on Sign) and payload, produced by the holder
// of privateKey matching publicKey. It fails if msg carries no signature,
// if the signature was computed over different values of those fields or
// payload than msg currently holds, or if the signature does not verify
// against publicKey. Changes to attributes outside the signed fields are
// not detected.
func Verify(msg *message.Message, publicKey ed25519.PublicKey) error {
	sig, ok := msg.Attributes.Ext[ExtKeySignature]
	if !ok {
		return fmt.Errorf("auth: message has no signature")
	}

	payload, err := jws.Verify([]byte(sig), jws.WithKey(jwa.EdDSA, publicKey))
	if err != nil {
		return fmt.Errorf("auth: signature verification failed: %w", err)
	}
	if !bytes.Equal(payload, signingPayload(msg)) {
		return fmt.Errorf("auth: signature does not cover current message content")
	}
	return nil
}

// signingPayload builds the deterministic byte sequence a signature is
// computed over: the fields that identify and carry a message, excluding
// the Ext map itself (the signature cannot cover its own storage location)
// and excluding Token (the key identifier travels alongside the signature,
// not under it).
func signingPayload(msg *message.Message) []byte {
	a := msg.Attributes
	var buf bytes.Buffer

	idBytes, _ := a.ID.MarshalBinary()
	buf.Write(idBytes)
	fmt.Fprintf(&buf, "|%d|%s|", a.Type, a.Source.ToURI(true))
	if a.Sink != nil {
		buf.WriteString(a.Sink.ToURI(true))
	}
	buf.WriteByte('|')
	if a.ReqID != nil {
		reqIDBytes, _ := a.ReqID.MarshalBinary()
		buf.Write(reqIDBytes)
	}
	fmt.Fprintf(&buf, "|%d|", a.PayloadFormat)
	buf.Write(msg.Payload)

	return buf.Bytes()
}
