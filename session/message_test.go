package session

import (
	"bytes"
	"errors"
	"testing"
)

func sealMessage(t *testing.T, key, plaintext []byte) *Envelope {
	t.Helper()
	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	ciphertext, err := Seal(key, nonce, []byte(DomainMessage), plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return &Envelope{Ciphertext: ciphertext, Nonce: nonce, AAD: []byte(DomainMessage)}
}

func TestDecryptMessage(t *testing.T) {
	registry := NewMemoryRegistry()
	handler := NewMessageHandler(registry)
	key := testKey(t, 0x77)
	registry.Store("sess-1", key)

	want := []byte("what is the capital of France?")
	env := sealMessage(t, key, want)

	got, err := handler.Decrypt("sess-1", env)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("plaintext %q, want %q", got, want)
	}
}

func TestDecryptUnknownSession(t *testing.T) {
	registry := NewMemoryRegistry()
	handler := NewMessageHandler(registry)

	// No decryption is attempted: the envelope is deliberately garbage.
	env := &Envelope{
		Ciphertext: []byte("not a real ciphertext"),
		Nonce:      make([]byte, NonceSize),
	}
	_, err := handler.Decrypt("never-established", env)
	if !errors.Is(err, ErrSessionKeyNotFound) {
		t.Fatalf("got %v, want ErrSessionKeyNotFound", err)
	}
}

func TestDecryptSessionIsolation(t *testing.T) {
	registry := NewMemoryRegistry()
	handler := NewMessageHandler(registry)
	keyA := testKey(t, 0x01)
	keyB := testKey(t, 0x02)
	registry.Store("sess-a", keyA)
	registry.Store("sess-b", keyB)

	env := sealMessage(t, keyA, []byte("for session a only"))

	if _, err := handler.Decrypt("sess-a", env); err != nil {
		t.Fatalf("own session: %v", err)
	}
	if _, err := handler.Decrypt("sess-b", env); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("cross-session decrypt: got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptRejectsOtherDomains(t *testing.T) {
	registry := NewMemoryRegistry()
	handler := NewMessageHandler(registry)
	key := testKey(t, 0x03)
	registry.Store("sess-1", key)

	// Ciphertexts sealed under chunk, terminal or handshake domains must not
	// open as application messages, even with the right key and nonce.
	for _, domain := range [][]byte{ChunkAAD(0), []byte(DomainFinal), []byte(DomainHandshake)} {
		nonce, _ := NewNonce()
		ciphertext, err := Seal(key, nonce, domain, []byte("replayed"))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		env := &Envelope{Ciphertext: ciphertext, Nonce: nonce, AAD: domain}
		if _, err := handler.Decrypt("sess-1", env); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("domain %q: got %v, want ErrDecryptionFailed", domain, err)
		}
	}
}

func TestDecryptDoesNotMutateRegistry(t *testing.T) {
	registry := NewMemoryRegistry()
	handler := NewMessageHandler(registry)
	key := testKey(t, 0x04)
	registry.Store("sess-1", key)

	env := sealMessage(t, key, []byte("p"))
	if _, err := handler.Decrypt("sess-1", env); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	// A failed decrypt leaves the key in place too.
	env.Ciphertext[0] ^= 0x01
	if _, err := handler.Decrypt("sess-1", env); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("got %v, want ErrDecryptionFailed", err)
	}

	if got, ok := registry.Get("sess-1"); !ok || !bytes.Equal(got, key) {
		t.Fatal("registry state changed during message handling")
	}
}
