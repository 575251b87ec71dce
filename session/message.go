package session

// MessageHandler decrypts inbound application messages for established
// sessions. It has no side effects beyond the decrypt; registry state is
// never mutated here.
type MessageHandler struct {
	registry KeyRegistry
}

// NewMessageHandler wires the handler to the shared key registry.
func NewMessageHandler(registry KeyRegistry) *MessageHandler {
	return &MessageHandler{registry: registry}
}

// Decrypt looks up the session key and opens the envelope under the
// encrypted_message domain. An unknown session id fails with
// ErrSessionKeyNotFound before any decryption is attempted. The domain
// constant is supplied here, not read from the wire, so chunk or handshake
// ciphertexts cannot be replayed as application messages.
func (m *MessageHandler) Decrypt(sessionID string, env *Envelope) ([]byte, error) {
	key, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionKeyNotFound
	}
	defer ZeroBytes(key)

	return Open(key, env.Nonce, []byte(DomainMessage), env.Ciphertext)
}
