package session

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the symmetric session key size in bytes.
const KeySize = chacha20poly1305.KeySize

// AEAD domain strings. Inbound handlers supply these constants themselves
// rather than trusting the wire aad, so a ciphertext sealed for one message
// kind can never be opened as another.
const (
	DomainHandshake   = "session_init"
	DomainMessage     = "encrypted_message"
	chunkDomainPrefix = "chunk_"
	DomainFinal       = "response_final"
)

// Seal encrypts plaintext under key with a 24-byte nonce and binds aad into
// the authentication tag. XChaCha20-Poly1305 makes a random nonce per call
// safe without a counter. The nonce is an input: callers generate it with
// NewNonce at each call site.
func Seal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("invalid session key: %w", err)
	}
	if len(nonce) != NonceSize {
		return nil, &FieldSizeError{Field: "nonce", Expected: "24", Actual: len(nonce)}
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open authenticates and decrypts a ciphertext produced by Seal. Any mismatch
// in key, nonce, aad or ciphertext yields the single opaque
// ErrDecryptionFailed; which component mismatched is never surfaced.
func Open(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(nonce) != NonceSize || len(ciphertext) == 0 {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// NewNonce draws a fresh 24-byte nonce from the system CSPRNG.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// ChunkAAD builds the deterministic per-chunk domain, e.g. "chunk_0", binding
// each streamed ciphertext to its index.
func ChunkAAD(index uint32) []byte {
	return fmt.Appendf(nil, "%s%d", chunkDomainPrefix, index)
}
