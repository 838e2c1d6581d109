package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"
)

// PrimitiveProvider supplies the low-level primitives the envelope protocol is
// built on. Implementations must be safe for concurrent use.
type PrimitiveProvider interface {
	// ECDH returns the raw Diffie-Hellman output of secret and public.
	ECDH(secret, public []byte) ([]byte, error)

	// AEADEncrypt encrypts and authenticates message under key and nonce.
	AEADEncrypt(key, nonce, message []byte) ([]byte, error)

	// AEADDecrypt verifies and decrypts ciphertext. It returns ErrAuthentication
	// and no plaintext when verification fails.
	AEADDecrypt(key, nonce, ciphertext []byte) ([]byte, error)

	// RandomBytes returns n bytes from a cryptographically secure source.
	RandomBytes(n int) ([]byte, error)
}

// NaClProvider implements PrimitiveProvider with X25519 and XSalsa20-Poly1305,
// the primitives of NaCl crypto_box. The zero value is ready to use.
type NaClProvider struct {
	// Rand is the entropy source. Nil means crypto/rand.Reader.
	Rand io.Reader
}

// Compile-time interface check.
var _ PrimitiveProvider = NaClProvider{}

// ECDH computes X25519(secret, public). Low-order public points are rejected.
func (NaClProvider) ECDH(secret, public []byte) ([]byte, error) {
	if len(secret) != KeySize {
		return nil, fmt.Errorf("%w: secret key has %d bytes, want %d", ErrCrypto, len(secret), KeySize)
	}
	if len(public) != KeySize {
		return nil, fmt.Errorf("%w: public key has %d bytes, want %d", ErrCrypto, len(public), KeySize)
	}
	shared, err := curve25519.X25519(secret, public)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return shared, nil
}

// AEADEncrypt seals message with secretbox. Output is tag(16) || ciphertext.
func (NaClProvider) AEADEncrypt(key, nonce, message []byte) ([]byte, error) {
	k, n, err := secretboxParams(key, nonce)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(k[:])
	return secretbox.Seal(make([]byte, 0, len(message)+secretbox.Overhead), message, n, k), nil
}

// AEADDecrypt opens a secretbox. Nothing is returned unless the tag verifies.
func (NaClProvider) AEADDecrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	k, n, err := secretboxParams(key, nonce)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(k[:])
	if len(ciphertext) < secretbox.Overhead {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrAuthentication)
	}
	plaintext, ok := secretbox.Open(nil, ciphertext, n, k)
	if !ok {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// RandomBytes reads n bytes from Rand.
func (p NaClProvider) RandomBytes(n int) ([]byte, error) {
	r := p.Rand
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return b, nil
}

func secretboxParams(key, nonce []byte) (*[KeySize]byte, *[NonceSize]byte, error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("%w: symmetric key has %d bytes, want %d", ErrCrypto, len(key), KeySize)
	}
	if len(nonce) != NonceSize {
		return nil, nil, fmt.Errorf("%w: nonce has %d bytes, want %d", ErrCrypto, len(nonce), NonceSize)
	}
	var k [KeySize]byte
	var n [NonceSize]byte
	copy(k[:], key)
	copy(n[:], nonce)
	return &k, &n, nil
}
