// Package azurekv builds a key ring whose X25519 secrets are wrapped by Azure Key Vault.
//
// Secrets are unwrapped with the Key Vault UnwrapKey operation when the ring is
// built. Wrap them with WrapKey on the same vault key beforehand.
//
// Usage:
//
//	cred, err := azidentity.NewDefaultAzureCredential(nil)
//	client, err := azkeys.NewClient("https://my-vault.vault.azure.net/", cred, nil)
//
//	ring, err := azurekv.New(ctx, client,
//	    azurekv.WithWrappedKey(wrappedSecret, "wallet-2024", "my-key-name", "key-version"),
//	)
package azurekv

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	crypto "github.com/rbaliyan/wallet-crypto"
)

// Client is the subset of the Azure Key Vault API used to unwrap secrets.
type Client interface {
	UnwrapKey(ctx context.Context, keyName string, keyVersion string, parameters azkeys.KeyOperationParameters, options *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	wrappedKeys []wrappedKeyEntry
	unwrapOpts  []crypto.UnwrapOption
}

type wrappedKeyEntry struct {
	ciphertext []byte
	id         string
	keyName    string
	keyVersion string
	algorithm  azkeys.EncryptionAlgorithm
}

// WithWrappedKey adds a Key Vault-wrapped X25519 secret under id, unwrapped
// with RSA-OAEP-256. The first key added becomes the ring's current key.
func WithWrappedKey(ciphertext []byte, id, keyName, keyVersion string) Option {
	return WithWrappedKeyAlgorithm(ciphertext, id, keyName, keyVersion, azkeys.EncryptionAlgorithmRSAOAEP256)
}

// WithWrappedKeyAlgorithm is like WithWrappedKey with an explicit unwrap algorithm.
func WithWrappedKeyAlgorithm(ciphertext []byte, id, keyName, keyVersion string, alg azkeys.EncryptionAlgorithm) Option {
	return func(o *options) {
		o.wrappedKeys = append(o.wrappedKeys, wrappedKeyEntry{
			ciphertext: ciphertext,
			id:         id,
			keyName:    keyName,
			keyVersion: keyVersion,
			algorithm:  alg,
		})
	}
}

// WithUnwrapOptions passes tracing and logging options through to crypto.UnwrapKeyRing.
func WithUnwrapOptions(opts ...crypto.UnwrapOption) Option {
	return func(o *options) {
		o.unwrapOpts = append(o.unwrapOpts, opts...)
	}
}

// New unwraps every configured secret with Key Vault and returns a key ring
// holding them. The first key is current; the rest open values sealed before a
// rotation. The Key Vault client is not retained.
func New(ctx context.Context, client Client, opts ...Option) (*crypto.StaticKeyRing, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]crypto.WrappedKey, 0, len(o.wrappedKeys))
	for _, wk := range o.wrappedKeys {
		keys = append(keys, crypto.WrappedKey{
			ID: wk.id,
			Unwrap: func(ctx context.Context) ([]byte, error) {
				resp, err := client.UnwrapKey(ctx, wk.keyName, wk.keyVersion, azkeys.KeyOperationParameters{
					Algorithm: &wk.algorithm,
					Value:     wk.ciphertext,
				}, nil)
				if err != nil {
					return nil, err
				}
				return resp.Result, nil
			},
		})
	}

	return crypto.UnwrapKeyRing(ctx, "azurekv", keys, o.unwrapOpts...)
}
