package identity

import (
	"encoding/hex"
	"testing"

	"infernode/session"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateAndLoadKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	hexKey := hex.EncodeToString(crypto.FromECDSA(kp.PrivateKey))
	loaded, err := LoadKeyPair(hexKey)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	if loaded.Address() != kp.Address() {
		t.Fatal("loaded key pair has a different address")
	}

	if _, err := LoadKeyPair("not a key"); err == nil {
		t.Fatal("LoadKeyPair accepted garbage")
	}
}

func TestSignRecoversToAddress(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	data := []byte("handshake transcript bytes")
	sig, err := kp.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != session.SignatureSize {
		t.Fatalf("signature length %d", len(sig))
	}

	recovered, err := session.RecoverSigner(sig, data)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if recovered != kp.Address() {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), kp.Address().Hex())
	}
}

func TestCompressedPub(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	pub := kp.CompressedPub()
	if len(pub) != session.CompressedPubKeySize {
		t.Fatalf("compressed key length %d", len(pub))
	}
	if pub[0] != 0x02 && pub[0] != 0x03 {
		t.Fatalf("compressed key prefix %#x", pub[0])
	}
}
