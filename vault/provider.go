// Package vault builds a key ring whose X25519 secrets are wrapped by the
// HashiCorp Vault Transit secrets engine.
//
// Secrets are decrypted through the Transit decrypt endpoint when the ring is
// built. Any Vault client can be adapted to Client.
//
// Usage:
//
//	ring, err := vault.New(ctx, transitClient,
//	    vault.WithEncryptedKey("vault:v1:...", "wallet-2024", "wallet-transit"),
//	)
package vault

import (
	"context"
	"fmt"
	"strings"

	crypto "github.com/rbaliyan/wallet-crypto"
)

// Client abstracts the Vault Transit decrypt operation.
type Client interface {
	// TransitDecrypt decrypts ciphertext ("vault:v1:base64data") with the named
	// Transit key and returns the plaintext bytes.
	TransitDecrypt(ctx context.Context, keyName string, ciphertext string) ([]byte, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	encryptedKeys []encryptedKeyEntry
	unwrapOpts    []crypto.UnwrapOption
}

type encryptedKeyEntry struct {
	ciphertext     string // Vault Transit ciphertext (e.g., "vault:v1:...")
	id             string
	transitKeyName string
}

// WithEncryptedKey adds a Transit-encrypted X25519 secret under id.
// The first key added becomes the ring's current key.
func WithEncryptedKey(ciphertext string, id, transitKeyName string) Option {
	return func(o *options) {
		o.encryptedKeys = append(o.encryptedKeys, encryptedKeyEntry{
			ciphertext:     ciphertext,
			id:             id,
			transitKeyName: transitKeyName,
		})
	}
}

// WithUnwrapOptions passes tracing and logging options through to crypto.UnwrapKeyRing.
func WithUnwrapOptions(opts ...crypto.UnwrapOption) Option {
	return func(o *options) {
		o.unwrapOpts = append(o.unwrapOpts, opts...)
	}
}

// New decrypts every configured secret with Vault Transit and returns a key
// ring holding them. The first key is current; the rest open values sealed
// before a rotation. The Vault client is not retained.
func New(ctx context.Context, client Client, opts ...Option) (*crypto.StaticKeyRing, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]crypto.WrappedKey, 0, len(o.encryptedKeys))
	for _, ek := range o.encryptedKeys {
		if !strings.HasPrefix(ek.ciphertext, "vault:v") {
			return nil, fmt.Errorf("vault: key %q: ciphertext is not in Transit format", ek.id)
		}
		keys = append(keys, crypto.WrappedKey{
			ID: ek.id,
			Unwrap: func(ctx context.Context) ([]byte, error) {
				return client.TransitDecrypt(ctx, ek.transitKeyName, ek.ciphertext)
			},
		})
	}

	return crypto.UnwrapKeyRing(ctx, "vault", keys, o.unwrapOpts...)
}
