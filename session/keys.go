package session

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

// kdfInfo is the HKDF context string for session key derivation. Changing it
// breaks compatibility with deployed clients.
const kdfInfo = "infernode/session-key/v1"

// ParseEphemeralPub decodes a 33-byte compressed or 65-byte uncompressed
// secp256k1 point, the curve used for on-chain identity keys.
func ParseEphemeralPub(data []byte) (*ecdsa.PublicKey, error) {
	switch len(data) {
	case CompressedPubKeySize:
		pub, err := crypto.DecompressPubkey(data)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed ephemeral public key: %w", err)
		}
		return pub, nil
	case UncompressedPubKeySize:
		pub, err := crypto.UnmarshalPubkey(data)
		if err != nil {
			return nil, fmt.Errorf("invalid uncompressed ephemeral public key: %w", err)
		}
		return pub, nil
	default:
		return nil, &FieldSizeError{Field: "ephemeral_public_key", Expected: "33 or 65", Actual: len(data)}
	}
}

// DeriveSessionKey performs ECDH between the node's static private key and a
// per-session ephemeral public key, then expands the shared secret through
// HKDF-SHA-256 into a 32-byte session key. Deterministic for a given key
// pair; the ephemeral key is single-use by caller convention.
func DeriveSessionKey(priv *ecdsa.PrivateKey, ephemeralPub []byte) ([]byte, error) {
	pub, err := ParseEphemeralPub(ephemeralPub)
	if err != nil {
		return nil, err
	}

	x, _ := crypto.S256().ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	if x == nil || x.Sign() == 0 {
		return nil, fmt.Errorf("ECDH produced degenerate shared point")
	}
	shared := x.FillBytes(make([]byte, 32))
	defer ZeroBytes(shared)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(kdfInfo)), key); err != nil {
		return nil, fmt.Errorf("session key derivation failed: %w", err)
	}
	return key, nil
}

// HandshakeTranscript is the canonical byte string a client signs when
// opening a session: the ephemeral public key bytes followed by the session
// id. Binding the session id prevents the same handshake from being replayed
// into a different session.
func HandshakeTranscript(ephemeralPub []byte, sessionID string) []byte {
	transcript := make([]byte, 0, len(ephemeralPub)+len(sessionID))
	transcript = append(transcript, ephemeralPub...)
	return append(transcript, sessionID...)
}

// VerifyBinding recovers the signer of an eth-style 65-byte signature over
// the handshake transcript and confirms it is the claimed on-chain identity.
// ECDH alone proves possession of some private key; this step authenticates
// who is opening the session.
func VerifyBinding(signature, transcript []byte, claimed common.Address) error {
	recovered, err := RecoverSigner(signature, transcript)
	if err != nil {
		return err
	}
	if recovered != claimed {
		return ErrSignatureVerification
	}
	return nil
}

// RecoverSigner returns the address that produced an eth-style signature
// over the handshake transcript, without comparing it to a claim.
func RecoverSigner(signature, transcript []byte) (common.Address, error) {
	if len(signature) != SignatureSize {
		return common.Address{}, ErrSignatureVerification
	}

	// Normalize the recovery id: clients may send 27/28 per eth_sign.
	sig := make([]byte, SignatureSize)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := accounts.TextHash(transcript)
	recovered, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, ErrSignatureVerification
	}
	return crypto.PubkeyToAddress(*recovered), nil
}

// ZeroBytes overwrites key material in place. Callers use it when a key
// leaves scope; Go gives no stronger guarantee than an explicit clear.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
