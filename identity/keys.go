// Package identity manages the node's static secp256k1 key pair, the same
// curve as its on-chain address, and eth-style recoverable signatures over
// handshake transcripts.
package identity

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyPair is the node's static signing and key-agreement key pair. It lives
// only in process memory; there is no long-term key storage in this node.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// GenerateKeyPair creates a fresh secp256k1 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &KeyPair{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// LoadKeyPair parses a hex-encoded private key, as stored in NODE_PRIVATE_KEY.
func LoadKeyPair(hexKey string) (*KeyPair, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid node private key: %w", err)
	}
	return &KeyPair{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// Address returns the on-chain address for this key pair.
func (kp *KeyPair) Address() common.Address {
	return crypto.PubkeyToAddress(*kp.PublicKey)
}

// Sign produces an eth-style 65-byte recoverable signature over data, hashed
// with the standard signed-message prefix.
func (kp *KeyPair) Sign(data []byte) ([]byte, error) {
	hash := accounts.TextHash(data)
	signature, err := crypto.Sign(hash, kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign data: %w", err)
	}
	return signature, nil
}

// CompressedPub returns the 33-byte compressed encoding of the public key.
func (kp *KeyPair) CompressedPub() []byte {
	return crypto.CompressPubkey(kp.PublicKey)
}
