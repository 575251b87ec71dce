package session

import "errors"

// FinishReason explains why a response stream ended.
type FinishReason string

const (
	FinishStop    FinishReason = "stop"
	FinishLength  FinishReason = "length"
	FinishError   FinishReason = "error"
	FinishTimeout FinishReason = "timeout"
)

// StreamChunk is one encrypted response fragment. The chunk's aad binds the
// ciphertext to its index, so a receiver detects reordering or truncation by
// checking index continuity regardless of transport ordering.
type StreamChunk struct {
	Index    uint32
	Envelope Envelope
}

// TerminalEnvelope closes a response stream. Its aad domain differs from
// every chunk's, so the terminal ciphertext can never pass as a fragment.
type TerminalEnvelope struct {
	Envelope     Envelope
	FinishReason FinishReason
}

var errStreamFinished = errors.New("response stream already finished")

// ResponseEncryptor seals a finite, non-restartable sequence of plaintext
// fragments for one outgoing response. Indices are assigned strictly
// increasingly from 0 and never reused; every seal draws a fresh random
// nonce.
type ResponseEncryptor struct {
	key      []byte
	next     uint32
	finished bool
}

// NewResponseEncryptor copies the session key for the duration of one
// response. Call Close when the stream ends or is abandoned.
func NewResponseEncryptor(key []byte) *ResponseEncryptor {
	owned := make([]byte, len(key))
	copy(owned, key)
	return &ResponseEncryptor{key: owned}
}

// EncryptChunk seals the next fragment under the chunk domain for its index.
func (e *ResponseEncryptor) EncryptChunk(plaintext []byte) (*StreamChunk, error) {
	if e.finished {
		return nil, errStreamFinished
	}

	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	aad := ChunkAAD(e.next)
	ciphertext, err := Seal(e.key, nonce, aad, plaintext)
	if err != nil {
		return nil, err
	}

	chunk := &StreamChunk{
		Index:    e.next,
		Envelope: Envelope{Ciphertext: ciphertext, Nonce: nonce, AAD: aad},
	}
	e.next++
	return chunk, nil
}

// Finish seals the terminal envelope under the response_final domain and
// marks the stream complete. The final plaintext may be empty; the cipher
// still emits an authentication tag, so the ciphertext is never empty.
func (e *ResponseEncryptor) Finish(reason FinishReason, finalPlaintext []byte) (*TerminalEnvelope, error) {
	if e.finished {
		return nil, errStreamFinished
	}

	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	aad := []byte(DomainFinal)
	ciphertext, err := Seal(e.key, nonce, aad, finalPlaintext)
	if err != nil {
		return nil, err
	}

	e.finished = true
	return &TerminalEnvelope{
		Envelope:     Envelope{Ciphertext: ciphertext, Nonce: nonce, AAD: aad},
		FinishReason: reason,
	}, nil
}

// ChunkCount reports how many fragments have been sealed so far.
func (e *ResponseEncryptor) ChunkCount() uint32 {
	return e.next
}

// Close zeroes the encryptor's key copy. Safe to call after abandoning a
// stream mid-sequence; there is nothing else to release.
func (e *ResponseEncryptor) Close() {
	ZeroBytes(e.key)
	e.finished = true
}
