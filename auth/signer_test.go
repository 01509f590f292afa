package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
)

func mustKeyPair(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}
	return priv
}

func TestSigner_SignVerify_RoundTrip(t *testing.T) {
	priv := mustKeyPair(t)
	signer := NewSigner("did:example:alice#key1", priv)

	source := uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x8001}
	msg, err := message.Publish(source).BuildWithPayload([]byte("hello"), uattributes.PayloadFormatText)
	if err != nil {
		t.Fatalf("building message failed: %v", err)
	}

	if err := signer.Sign(msg); err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	if msg.Attributes.Ext[ExtKeySignature] == "" {
		t.Fatalf("expected signature to be stored in Ext")
	}
	if msg.Attributes.Token == nil || *msg.Attributes.Token != "did:example:alice#key1" {
		t.Errorf("Token = %v, want keyID", msg.Attributes.Token)
	}

	if err := Verify(msg, signer.PublicKey()); err != nil {
		t.Errorf("Verify() failed: %v", err)
	}
}

func TestVerify_RejectsMissingSignature(t *testing.T) {
	priv := mustKeyPair(t)
	source := uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x8001}
	msg, err := message.Publish(source).Build()
	if err != nil {
		t.Fatalf("building message failed: %v", err)
	}

	if err := Verify(msg, priv.Public().(ed25519.PublicKey)); err == nil {
		t.Errorf("expected error for unsigned message")
	}
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	priv := mustKeyPair(t)
	signer := NewSigner("did:example:alice#key1", priv)

	source := uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x8001}
	msg, err := message.Publish(source).BuildWithPayload([]byte("hello"), uattributes.PayloadFormatText)
	if err != nil {
		t.Fatalf("building message failed: %v", err)
	}
	if err := signer.Sign(msg); err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	msg.Payload = []byte("tampered")
	if err := Verify(msg, signer.PublicKey()); err == nil {
		t.Errorf("expected error for tampered payload")
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	priv := mustKeyPair(t)
	signer := NewSigner("did:example:alice#key1", priv)
	otherPub, _, _ := ed25519.GenerateKey(rand.Reader)

	source := uri.URI{Authority: "a", EntityID: 5, EntityVersion: 2, ResourceID: 0x8001}
	msg, err := message.Publish(source).BuildWithPayload([]byte("hello"), uattributes.PayloadFormatText)
	if err != nil {
		t.Fatalf("building message failed: %v", err)
	}
	if err := signer.Sign(msg); err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	if err := Verify(msg, otherPub); err == nil {
		t.Errorf("expected error for mismatched key")
	}
}
