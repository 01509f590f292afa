package auth

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/eclipse-uprotocol/up-go/message"
)

// ExtKeyEncryption is the Attributes.Ext key Encryptor uses to mark a
// message's payload as encrypted and name the scheme, so a receiver that
// does not hold the matching private key still fails loudly instead of
// treating ciphertext as a payload.
const ExtKeyEncryption = "uprotocol-enc"

// encryptionScheme identifies the NaCl box construction this package
// uses (Curve25519/XSalsa20/Poly1305 via golang.org/x/crypto/nacl/box).
const encryptionScheme = "nacl-box"

const (
	boxKeySize   = 32
	boxNonceSize = 24
)

// GenerateKeyPair returns a fresh Curve25519 key pair suitable for use
// with EncryptPayload/DecryptPayload. Encryption keys are generated and
// distributed independently of Signer's Ed25519 identity keys; deriving
// one from the other requires a scalar-clamping conversion this package
// does not implement.
func GenerateKeyPair() (publicKey, privateKey *[32]byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: generate encryption key pair: %w", err)
	}
	return pub, priv, nil
}

// EncryptPayload replaces msg.Payload with an ephemeral-key-sealed NaCl
// box addressed to recipientPublicKey, and tags the message so
// DecryptPayload knows how to reverse it. The wire layout is
// ephemeralPublicKey(32) || nonce(24) || ciphertext.
func EncryptPayload(msg *message.Message, recipientPublicKey *[32]byte) error {
	if msg.Attributes.Ext != nil && msg.Attributes.Ext[ExtKeyEncryption] != "" {
		return fmt.Errorf("auth: message payload is already encrypted")
	}

	ephemeralPublic, ephemeralPrivate, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("auth: generate ephemeral key: %w", err)
	}

	var nonce [boxNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("auth: generate nonce: %w", err)
	}

	sealed := box.Seal(nil, msg.Payload, &nonce, recipientPublicKey, ephemeralPrivate)

	out := make([]byte, 0, boxKeySize+boxNonceSize+len(sealed))
	out = append(out, ephemeralPublic[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)

	msg.Payload = out
	if msg.Attributes.Ext == nil {
		msg.Attributes.Ext = make(map[string]string, 1)
	}
	msg.Attributes.Ext[ExtKeyEncryption] = encryptionScheme
	return nil
}

// DecryptPayload reverses a prior EncryptPayload call, replacing
// msg.Payload with the recovered plaintext and clearing the encryption
// tag. It fails if msg was not encrypted with this scheme or if
// recipientPrivateKey does not match the public key EncryptPayload sealed
// against.
func DecryptPayload(msg *message.Message, recipientPrivateKey *[32]byte) error {
	scheme, ok := msg.Attributes.Ext[ExtKeyEncryption]
	if !ok {
		return fmt.Errorf("auth: message payload is not encrypted")
	}
	if scheme != encryptionScheme {
		return fmt.Errorf("auth: unsupported encryption scheme %q", scheme)
	}
	if len(msg.Payload) < boxKeySize+boxNonceSize {
		return fmt.Errorf("auth: encrypted payload too short")
	}

	var ephemeralPublic [boxKeySize]byte
	copy(ephemeralPublic[:], msg.Payload[:boxKeySize])

	var nonce [boxNonceSize]byte
	copy(nonce[:], msg.Payload[boxKeySize:boxKeySize+boxNonceSize])

	ciphertext := msg.Payload[boxKeySize+boxNonceSize:]

	plaintext, ok := box.Open(nil, ciphertext, &nonce, &ephemeralPublic, recipientPrivateKey)
	if !ok {
		return fmt.Errorf("auth: decryption failed")
	}

	msg.Payload = plaintext
	delete(msg.Attributes.Ext, ExtKeyEncryption)
	return nil
}
