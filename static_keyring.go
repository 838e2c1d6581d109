package crypto

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrKeyRingDestroyed is returned by a StaticKeyRing after Destroy.
var ErrKeyRingDestroyed = errors.New("crypto: key ring destroyed")

// IsKeyRingDestroyed returns true if the error is or wraps ErrKeyRingDestroyed.
func IsKeyRingDestroyed(err error) bool {
	return errors.Is(err, ErrKeyRingDestroyed)
}

// StaticKeyRing is a KeyRing backed by in-memory keypairs.
// It is safe for concurrent use.
type StaticKeyRing struct {
	mu        sync.RWMutex
	current   NamedKey
	keys      map[string]NamedKey
	destroyed bool
	err       error // deferred validation error from options
}

// StaticOption configures a StaticKeyRing.
type StaticOption func(*StaticKeyRing)

// WithOldKey adds a previous X25519 secret key for opening values sealed before
// a rotation. The secret must be 32 bytes and id must not be empty.
func WithOldKey(secret []byte, id string) StaticOption {
	return func(r *StaticKeyRing) {
		if r.err != nil {
			return
		}
		if err := validateKeyID(id); err != nil {
			r.err = fmt.Errorf("%w: old key", err)
			return
		}
		if _, ok := r.keys[id]; ok {
			r.err = fmt.Errorf("%w: duplicate key ID %q", ErrInvalidKeyID, id)
			return
		}
		kp, err := KeyPairFromSecret(secret)
		if err != nil {
			r.err = fmt.Errorf("old key %q: %w", id, err)
			return
		}
		r.keys[id] = NamedKey{ID: id, Pair: kp}
	}
}

// WithOldKeyPair adds a previous keypair under id.
func WithOldKeyPair(kp *KeyPair, id string) StaticOption {
	return func(r *StaticKeyRing) {
		if r.err != nil {
			return
		}
		if err := validateKeyID(id); err != nil {
			r.err = fmt.Errorf("%w: old key", err)
			return
		}
		if _, ok := r.keys[id]; ok {
			r.err = fmt.Errorf("%w: duplicate key ID %q", ErrInvalidKeyID, id)
			return
		}
		if kp == nil {
			r.err = fmt.Errorf("%w: old key %q is nil", ErrKeyRole, id)
			return
		}
		r.keys[id] = NamedKey{ID: id, Pair: kp}
	}
}

// NewStaticKeyRing creates a KeyRing whose current key is the given X25519 secret.
// The secret is copied into protected memory; the caller may wipe the original
// after construction. Old keys can be added with WithOldKey for rotation support.
func NewStaticKeyRing(secret []byte, id string, opts ...StaticOption) (*StaticKeyRing, error) {
	if err := validateKeyID(id); err != nil {
		return nil, err
	}
	kp, err := KeyPairFromSecret(secret)
	if err != nil {
		return nil, err
	}
	return newStaticKeyRing(NamedKey{ID: id, Pair: kp}, opts...)
}

// GenerateKeyRing creates a StaticKeyRing around a freshly generated keypair
// with a random UUID as its ID.
func GenerateKeyRing(opts ...StaticOption) (*StaticKeyRing, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return newStaticKeyRing(NamedKey{ID: uuid.NewString(), Pair: kp}, opts...)
}

func newStaticKeyRing(current NamedKey, opts ...StaticOption) (*StaticKeyRing, error) {
	r := &StaticKeyRing{
		current: current,
		keys:    map[string]NamedKey{current.ID: current},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.err != nil {
		return nil, r.err
	}

	return r, nil
}

// CurrentKey returns the key new values are sealed to.
func (r *StaticKeyRing) CurrentKey() (NamedKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.destroyed {
		return NamedKey{}, ErrKeyRingDestroyed
	}
	return r.current, nil
}

// KeyByID returns the key with the given ID.
func (r *StaticKeyRing) KeyByID(id string) (NamedKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.destroyed {
		return NamedKey{}, ErrKeyRingDestroyed
	}
	key, ok := r.keys[id]
	if !ok {
		return NamedKey{}, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return key, nil
}

// IDs returns the IDs of all keys in the ring, current key first.
func (r *StaticKeyRing) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.destroyed {
		return nil
	}
	ids := make([]string, 0, len(r.keys))
	ids = append(ids, r.current.ID)
	for id := range r.keys {
		if id != r.current.ID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Destroy drops every keypair reference. Later lookups return ErrKeyRingDestroyed.
// Keypairs already handed out stay usable by their holders. Destroy is idempotent.
func (r *StaticKeyRing) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.destroyed = true
	r.current = NamedKey{}
	clear(r.keys)
}

func validateKeyID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: key ID must not be empty", ErrInvalidKeyID)
	}
	if len(id) > maxKeyIDLen {
		return fmt.Errorf("%w: key ID longer than %d bytes", ErrInvalidKeyID, maxKeyIDLen)
	}
	return nil
}

// Compile-time interface check.
var _ KeyRing = (*StaticKeyRing)(nil)
