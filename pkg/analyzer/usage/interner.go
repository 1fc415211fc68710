package usage

import (
	"sync"

	"github.com/panbanda/ilscan/pkg/metadata"
)

// TokenKey identifies a method definition independently of the session
// that loaded it.
type TokenKey struct {
	Assembly metadata.AssemblyID
	Method   metadata.MethodID
}

// KeyOf returns the token key of m. It reports false for a method that is
// not attached to an assembly.
func KeyOf(m *metadata.Method) (TokenKey, bool) {
	if m == nil {
		return TokenKey{}, false
	}
	asm := m.Assembly()
	if asm == nil {
		return TokenKey{}, false
	}
	return TokenKey{Assembly: asm.ID(), Method: m.ID()}, true
}

// Interner assigns dense uint32 tokens to token keys so usage sets can be
// stored as bitmaps.
type Interner struct {
	mu   sync.RWMutex
	ids  map[TokenKey]uint32
	keys []TokenKey
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{ids: make(map[TokenKey]uint32)}
}

// Intern returns the token for k, assigning the next free one if needed.
func (in *Interner) Intern(k TokenKey) uint32 {
	in.mu.RLock()
	id, ok := in.ids[k]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.ids[k]; ok {
		return id
	}
	id = uint32(len(in.keys))
	in.ids[k] = id
	in.keys = append(in.keys, k)
	return id
}

// Lookup returns the token for k without assigning one.
func (in *Interner) Lookup(k TokenKey) (uint32, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.ids[k]
	return id, ok
}

// Key returns the key a token was assigned to.
func (in *Interner) Key(id uint32) (TokenKey, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) >= len(in.keys) {
		return TokenKey{}, false
	}
	return in.keys[id], true
}

// Len returns the number of interned keys.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.keys)
}

// Reset forgets every key.
func (in *Interner) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.ids = make(map[TokenKey]uint32)
	in.keys = nil
}
