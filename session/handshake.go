package session

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
)

// HandshakeHandler drives the Uninitialized -> Established transition for a
// session. Establishment is all-or-nothing: the registry is only touched
// after every validation and cryptographic step has passed, so no partial
// key is ever stored.
type HandshakeHandler struct {
	registry KeyRegistry
	nodeKey  *ecdsa.PrivateKey
}

// NewHandshakeHandler wires the handler to the node's static identity key and
// the shared key registry.
func NewHandshakeHandler(registry KeyRegistry, nodeKey *ecdsa.PrivateKey) *HandshakeHandler {
	return &HandshakeHandler{registry: registry, nodeKey: nodeKey}
}

// Establish processes a session_init payload in the required order: codec
// validation, ECDH key derivation, signature binding against the claimed
// identity, decryption of the handshake's own envelope under the derived key,
// then registry insertion. Any failure leaves the registry untouched. The
// returned plaintext is the handshake's initial payload.
func (h *HandshakeHandler) Establish(payload HandshakePayload, claimed common.Address) ([]byte, error) {
	env, err := ParseHandshakeEnvelope(payload)
	if err != nil {
		return nil, err
	}

	key, err := DeriveSessionKey(h.nodeKey, env.EphemeralPub)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)

	transcript := HandshakeTranscript(env.EphemeralPub, env.SessionID)
	if err := VerifyBinding(env.Signature, transcript, claimed); err != nil {
		return nil, err
	}

	// Opening the handshake's own ciphertext proves the client holds the
	// ephemeral private key matching the public key it signed.
	plaintext, err := Open(key, env.Nonce, []byte(DomainHandshake), env.Ciphertext)
	if err != nil {
		return nil, err
	}

	h.registry.Store(env.SessionID, key)
	return plaintext, nil
}
