package session

import "sync"

// KeyRegistry maps session ids to derived symmetric keys. It is the only
// shared mutable state in the protocol core; implementations must be safe
// under concurrent access from independent sessions. There is no implicit
// expiry: the session-lifecycle owner calls Remove explicitly.
type KeyRegistry interface {
	Store(sessionID string, key []byte)
	Get(sessionID string) ([]byte, bool)
	Remove(sessionID string)
}

// MemoryRegistry is the in-process KeyRegistry. A single RWMutex guards brief
// map operations only; unrelated sessions never block each other on
// cryptographic work.
type MemoryRegistry struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

var _ KeyRegistry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an empty registry. Registries are injectable so
// tests can run with isolated instances.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{keys: make(map[string][]byte)}
}

// Store records the session key, copying it so the registry entry is the sole
// owner of its bytes. A second Store for the same id overwrites; rejecting a
// repeat handshake is caller policy.
func (r *MemoryRegistry) Store(sessionID string, key []byte) {
	owned := make([]byte, len(key))
	copy(owned, key)

	r.mu.Lock()
	if old, ok := r.keys[sessionID]; ok {
		ZeroBytes(old)
	}
	r.keys[sessionID] = owned
	r.mu.Unlock()
}

// Get returns a copy of the session key, or false when no handshake has
// established one. Callers map the miss to ErrSessionKeyNotFound; a key is
// never fabricated.
func (r *MemoryRegistry) Get(sessionID string) ([]byte, bool) {
	r.mu.RLock()
	key, ok := r.keys[sessionID]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	out := make([]byte, len(key))
	copy(out, key)
	r.mu.RUnlock()
	return out, true
}

// Remove deletes and zeroes the session key. Removing an absent id is a
// no-op.
func (r *MemoryRegistry) Remove(sessionID string) {
	r.mu.Lock()
	if key, ok := r.keys[sessionID]; ok {
		ZeroBytes(key)
		delete(r.keys, sessionID)
	}
	r.mu.Unlock()
}

// Len reports the number of established sessions.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
