package session

import (
	"errors"
	"fmt"
)

// Closed error set for the encrypted session protocol. Validation errors
// (MissingFieldError, HexEncodingError, FieldSizeError, ErrEmptyCiphertext)
// are raised before any key material is touched and are safe to report to
// clients verbatim. The cryptographic failures below them are deliberately
// opaque on the wire.
var (
	ErrEmptyCiphertext       = errors.New("ciphertext must not be empty")
	ErrSignatureVerification = errors.New("handshake signature verification failed")
	ErrSessionKeyNotFound    = errors.New("no session key for session id")
	ErrDecryptionFailed      = errors.New("decryption failed")
)

// MissingFieldError reports a wire field that was absent or blank.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// HexEncodingError reports a field that could not be hex-decoded.
type HexEncodingError struct {
	Field string
}

func (e *HexEncodingError) Error() string {
	return fmt.Sprintf("field %q is not valid hex", e.Field)
}

// FieldSizeError reports a decoded field whose byte length violates the
// protocol. Expected is a human-readable description because the ephemeral
// public key admits two lengths.
type FieldSizeError struct {
	Field    string
	Expected string
	Actual   int
}

func (e *FieldSizeError) Error() string {
	return fmt.Sprintf("field %q has invalid size: expected %s bytes, got %d", e.Field, e.Expected, e.Actual)
}

// Stable client-facing error codes. Cryptographic failures share sanitized
// messages that do not reveal which check failed.
const (
	CodeInvalidEnvelope    = "invalid_envelope"
	CodeHandshakeRejected  = "handshake_rejected"
	CodeSessionKeyNotFound = "session_key_not_found"
	CodeDecryptionFailed   = "decryption_failed"
	CodeInternalError      = "internal_error"
)

// ClientError is the sanitized (code, message) pair sent on the wire for a
// protocol failure. Structural errors keep their text; cryptographic errors
// are collapsed so the node never acts as a padding/verification oracle.
func ClientError(err error) (code, message string) {
	var missing *MissingFieldError
	var badHex *HexEncodingError
	var badSize *FieldSizeError

	switch {
	case errors.As(err, &missing), errors.As(err, &badHex), errors.As(err, &badSize),
		errors.Is(err, ErrEmptyCiphertext):
		return CodeInvalidEnvelope, err.Error()
	case errors.Is(err, ErrSignatureVerification):
		return CodeHandshakeRejected, "session handshake rejected"
	case errors.Is(err, ErrSessionKeyNotFound):
		return CodeSessionKeyNotFound, "no established session"
	case errors.Is(err, ErrDecryptionFailed):
		return CodeDecryptionFailed, "message could not be decrypted"
	default:
		return CodeInternalError, "internal error"
	}
}
