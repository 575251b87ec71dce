package session

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Wire sizes for the encrypted session protocol. The nonce size is fixed by
// the XChaCha20-Poly1305 construction; the signature size by eth-style
// recoverable secp256k1 signatures; the ephemeral key admits compressed and
// uncompressed SEC1 encodings.
const (
	NonceSize              = chacha20poly1305.NonceSizeX // 24
	SignatureSize          = 65
	CompressedPubKeySize   = 33
	UncompressedPubKeySize = 65
)

// EnvelopePayload is the hex wire form of an encrypted payload, as carried
// inside session_init, encrypted_message, encrypted_chunk and
// encrypted_response frames. Hex fields accept an optional 0x prefix and are
// case-insensitive.
type EnvelopePayload struct {
	CiphertextHex string `json:"ciphertextHex"`
	NonceHex      string `json:"nonceHex"`
	AADHex        string `json:"aadHex,omitempty"`
	Index         uint32 `json:"index,omitempty"`
	FinishReason  string `json:"finish_reason,omitempty"`
}

// HandshakePayload is the hex wire form of a session_init frame.
type HandshakePayload struct {
	EphPubHex     string `json:"ephPubHex"`
	CiphertextHex string `json:"ciphertextHex"`
	NonceHex      string `json:"nonceHex"`
	SignatureHex  string `json:"signatureHex"`
	AADHex        string `json:"aadHex,omitempty"`
	SessionID     string `json:"session_id"`
	JobTicket     string `json:"job_ticket,omitempty"`
}

// Envelope is a decoded encrypted payload. Instances live for the duration of
// a single seal or open call and are not retained.
type Envelope struct {
	Ciphertext []byte
	Nonce      []byte
	AAD        []byte
}

// HandshakeEnvelope is a decoded session_init payload.
type HandshakeEnvelope struct {
	Envelope
	EphemeralPub []byte
	Signature    []byte
	SessionID    string
}

// decodeHexField strips an optional 0x prefix and hex-decodes a wire field.
// Odd-length or non-hex input yields a HexEncodingError naming the field.
func decodeHexField(field, value string) ([]byte, error) {
	if value == "" {
		return nil, &MissingFieldError{Field: field}
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &HexEncodingError{Field: field}
	}
	return decoded, nil
}

// decodeOptionalHexField behaves like decodeHexField but maps an absent field
// to an empty byte slice. Used for aad, which may legally be empty.
func decodeOptionalHexField(field, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	return decodeHexField(field, value)
}

// ParseEnvelope validates and decodes an encrypted_message payload. All
// structural checks run, in a fixed order, before any cryptography: missing
// field, hex encoding, nonce size, empty ciphertext. aad is unconstrained.
func ParseEnvelope(p EnvelopePayload) (*Envelope, error) {
	nonce, err := decodeHexField("nonce", p.NonceHex)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, &FieldSizeError{Field: "nonce", Expected: "24", Actual: len(nonce)}
	}

	ciphertext, err := decodeHexField("ciphertext", p.CiphertextHex)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}

	aad, err := decodeOptionalHexField("aad", p.AADHex)
	if err != nil {
		return nil, err
	}

	return &Envelope{Ciphertext: ciphertext, Nonce: nonce, AAD: aad}, nil
}

// ParseHandshakeEnvelope validates and decodes a session_init payload. On top
// of the ParseEnvelope checks it enforces the 65-byte recoverable signature
// and the 33-or-65-byte ephemeral public key.
func ParseHandshakeEnvelope(p HandshakePayload) (*HandshakeEnvelope, error) {
	if p.SessionID == "" {
		return nil, &MissingFieldError{Field: "session_id"}
	}

	nonce, err := decodeHexField("nonce", p.NonceHex)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, &FieldSizeError{Field: "nonce", Expected: "24", Actual: len(nonce)}
	}

	sig, err := decodeHexField("signature", p.SignatureHex)
	if err != nil {
		return nil, err
	}
	if len(sig) != SignatureSize {
		return nil, &FieldSizeError{Field: "signature", Expected: "65", Actual: len(sig)}
	}

	ephPub, err := decodeHexField("ephemeral_public_key", p.EphPubHex)
	if err != nil {
		return nil, err
	}
	if len(ephPub) != CompressedPubKeySize && len(ephPub) != UncompressedPubKeySize {
		return nil, &FieldSizeError{Field: "ephemeral_public_key", Expected: "33 or 65", Actual: len(ephPub)}
	}

	ciphertext, err := decodeHexField("ciphertext", p.CiphertextHex)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}

	aad, err := decodeOptionalHexField("aad", p.AADHex)
	if err != nil {
		return nil, err
	}

	return &HandshakeEnvelope{
		Envelope:     Envelope{Ciphertext: ciphertext, Nonce: nonce, AAD: aad},
		EphemeralPub: ephPub,
		Signature:    sig,
		SessionID:    p.SessionID,
	}, nil
}

// WirePayload re-encodes an envelope into its hex wire form.
func (e *Envelope) WirePayload() EnvelopePayload {
	return EnvelopePayload{
		CiphertextHex: hex.EncodeToString(e.Ciphertext),
		NonceHex:      hex.EncodeToString(e.Nonce),
		AADHex:        hex.EncodeToString(e.AAD),
	}
}
