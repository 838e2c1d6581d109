package crypto

import (
	"crypto/subtle"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/curve25519"
)

// KeyAlg identifies the curve a key belongs to.
type KeyAlg string

// KeyAlgX25519 is Curve25519 in Montgomery form, the only curve crypto_box uses.
const KeyAlgX25519 KeyAlg = "x25519"

// Key is a handle to X25519 key material. It is either a *KeyPair, which can
// decrypt and act as a box sender, or a *PublicKey, which can only be encrypted to.
// Keys are immutable; the engine never retains one beyond a single call.
type Key interface {
	// Algorithm returns the curve of the key.
	Algorithm() KeyAlg

	// PublicBytes returns a copy of the public key.
	PublicBytes() []byte

	// CanEncrypt reports whether the key can be the recipient of an encryption.
	CanEncrypt() bool

	// CanDecrypt reports whether the key holds private material.
	CanDecrypt() bool

	isKey()
}

// PublicKey is a public-only X25519 key.
type PublicKey struct {
	public [KeySize]byte
}

// PublicKeyFromBytes wraps a 32-byte X25519 public key.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: public key has %d bytes", ErrInvalidKeySize, len(b))
	}
	pk := &PublicKey{}
	copy(pk.public[:], b)
	return pk, nil
}

// Algorithm returns KeyAlgX25519.
func (*PublicKey) Algorithm() KeyAlg { return KeyAlgX25519 }

// CanEncrypt returns true; a public key can always be encrypted to.
func (*PublicKey) CanEncrypt() bool { return true }

// CanDecrypt returns false; a public key holds no private material.
func (*PublicKey) CanDecrypt() bool { return false }

func (*PublicKey) isKey() {}

// PublicBytes returns a copy of the 32-byte public key.
func (k *PublicKey) PublicBytes() []byte {
	return append([]byte(nil), k.public[:]...)
}

// KeyPair is an X25519 secret key together with its public key.
// The secret is kept encrypted in memory and is only exposed inside a locked
// buffer for the duration of one operation.
type KeyPair struct {
	public [KeySize]byte
	secret *memguard.Enclave
}

// GenerateKeyPair creates a fresh X25519 keypair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	return generateKeyPair(NaClProvider{})
}

func generateKeyPair(p PrimitiveProvider) (*KeyPair, error) {
	secret, err := p.RandomBytes(KeySize)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(secret)
	return KeyPairFromSecret(secret)
}

// KeyPairFromSecret builds a keypair from a 32-byte X25519 secret key.
// The secret is copied; the caller keeps ownership of b and may wipe it.
func KeyPairFromSecret(b []byte) (*KeyPair, error) {
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: secret key has %d bytes", ErrInvalidKeySize, len(b))
	}

	public, err := curve25519.X25519(b, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	kp := &KeyPair{}
	copy(kp.public[:], public)

	// NewEnclave wipes its argument, so hand it a copy.
	kp.secret = memguard.NewEnclave(append([]byte(nil), b...))
	return kp, nil
}

// Algorithm returns KeyAlgX25519.
func (*KeyPair) Algorithm() KeyAlg { return KeyAlgX25519 }

// CanEncrypt returns true; a keypair can be encrypted to through its public half.
func (*KeyPair) CanEncrypt() bool { return true }

// CanDecrypt returns true.
func (*KeyPair) CanDecrypt() bool { return true }

func (*KeyPair) isKey() {}

// PublicBytes returns a copy of the 32-byte public key.
func (k *KeyPair) PublicBytes() []byte {
	return append([]byte(nil), k.public[:]...)
}

// PublicKey returns the public half of the keypair.
func (k *KeyPair) PublicKey() *PublicKey {
	return &PublicKey{public: k.public}
}

// KeyPairFromBytes builds a keypair from secret(32) || public(32), the layout
// WithKeyPairBytes produces. The public half must match the secret.
func KeyPairFromBytes(b []byte) (*KeyPair, error) {
	if len(b) != KeyPairSize {
		return nil, fmt.Errorf("%w: keypair has %d bytes, want %d", ErrInvalidKeySize, len(b), KeyPairSize)
	}
	kp, err := KeyPairFromSecret(b[:KeySize])
	if err != nil {
		return nil, err
	}
	if err := kp.checkPublic(b[KeySize:]); err != nil {
		return nil, err
	}
	return kp, nil
}

// checkPublic compares pk with the keypair's public key in constant time.
func (k *KeyPair) checkPublic(pk []byte) error {
	if subtle.ConstantTimeCompare(k.public[:], pk) != 1 {
		return fmt.Errorf("%w: public key does not match secret", ErrInvalidKeyData)
	}
	return nil
}

// WithSecretBytes passes the 32-byte secret key to fn. The slice lives in a
// locked buffer that is wiped when fn returns; copy it out only into memory
// you wipe yourself, e.g. before wrapping it with a key manager.
func (k *KeyPair) WithSecretBytes(fn func(secret []byte) error) error {
	if err := checkKeyPair(k); err != nil {
		return err
	}
	return k.withSecret(fn)
}

// WithKeyPairBytes passes secret(32) || public(32) to fn, the input format of
// KeyPairFromBytes. The slice is wiped when fn returns.
func (k *KeyPair) WithKeyPairBytes(fn func(keypair []byte) error) error {
	return k.WithSecretBytes(func(secret []byte) error {
		buf := make([]byte, 0, KeyPairSize)
		buf = append(buf, secret...)
		buf = append(buf, k.public[:]...)
		defer memguard.WipeBytes(buf)
		return fn(buf)
	})
}

// withSecret opens the enclave and passes the secret to fn. The buffer is
// destroyed when fn returns; fn must not retain the slice.
func (k *KeyPair) withSecret(fn func(secret []byte) error) error {
	buf, err := k.secret.Open()
	if err != nil {
		return fmt.Errorf("%w: open key enclave: %v", ErrCrypto, err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// privateKey returns k as a *KeyPair or ErrKeyRole.
func privateKey(k Key, role string) (*KeyPair, error) {
	kp, ok := k.(*KeyPair)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a keypair", ErrKeyRole, role)
	}
	if err := checkKeyPair(kp); err != nil {
		return nil, fmt.Errorf("%w (%s)", err, role)
	}
	return kp, nil
}

// checkKeyPair rejects nil and zero-value keypairs, which hold no secret.
func checkKeyPair(kp *KeyPair) error {
	if kp == nil || kp.secret == nil {
		return fmt.Errorf("%w: keypair has no secret key", ErrKeyRole)
	}
	return nil
}

// publicKey returns the public bytes of k, rejecting nil and foreign curves.
func publicKey(k Key, role string) ([]byte, error) {
	switch v := k.(type) {
	case *KeyPair:
		if v != nil {
			return v.public[:], nil
		}
	case *PublicKey:
		if v != nil {
			return v.public[:], nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not an %s key", ErrCrypto, role, KeyAlgX25519)
}
