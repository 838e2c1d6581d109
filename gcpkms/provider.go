// Package gcpkms builds a key ring whose X25519 secrets are wrapped by Google Cloud KMS.
//
// Secrets are unwrapped with the CryptoKeys.Decrypt RPC when the ring is built.
// Requests carry a CRC32C of the ciphertext and responses are checked against
// the returned plaintext CRC32C, as Cloud KMS recommends.
//
// Usage:
//
//	client, err := kms.NewKeyManagementClient(ctx)
//	ring, err := gcpkms.New(ctx, client,
//	    gcpkms.WithEncryptedKey(ciphertext, "wallet-2024", resourceName),
//	)
package gcpkms

import (
	"context"
	"fmt"
	"hash/crc32"

	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	crypto "github.com/rbaliyan/wallet-crypto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is the subset of the Cloud KMS API used to unwrap secrets.
type Client interface {
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	encryptedKeys []encryptedKeyEntry
	unwrapOpts    []crypto.UnwrapOption
}

type encryptedKeyEntry struct {
	ciphertext   []byte
	id           string
	resourceName string // projects/*/locations/*/keyRings/*/cryptoKeys/*
}

// WithEncryptedKey adds a Cloud KMS-encrypted X25519 secret under id.
// resourceName is the full CryptoKey resource name.
// The first key added becomes the ring's current key.
func WithEncryptedKey(ciphertext []byte, id, resourceName string) Option {
	return func(o *options) {
		o.encryptedKeys = append(o.encryptedKeys, encryptedKeyEntry{
			ciphertext:   ciphertext,
			id:           id,
			resourceName: resourceName,
		})
	}
}

// WithUnwrapOptions passes tracing and logging options through to crypto.UnwrapKeyRing.
func WithUnwrapOptions(opts ...crypto.UnwrapOption) Option {
	return func(o *options) {
		o.unwrapOpts = append(o.unwrapOpts, opts...)
	}
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func crc32c(b []byte) int64 {
	return int64(crc32.Checksum(b, castagnoli))
}

// New unwraps every configured secret with Cloud KMS and returns a key ring
// holding them. The first key is current; the rest open values sealed before a
// rotation. The KMS client is not retained.
func New(ctx context.Context, client Client, opts ...Option) (*crypto.StaticKeyRing, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]crypto.WrappedKey, 0, len(o.encryptedKeys))
	for _, ek := range o.encryptedKeys {
		keys = append(keys, crypto.WrappedKey{
			ID: ek.id,
			Unwrap: func(ctx context.Context) ([]byte, error) {
				resp, err := client.Decrypt(ctx, &kmspb.DecryptRequest{
					Name:             ek.resourceName,
					Ciphertext:       ek.ciphertext,
					CiphertextCrc32C: wrapperspb.Int64(crc32c(ek.ciphertext)),
				})
				if err != nil {
					return nil, err
				}
				if sum := resp.GetPlaintextCrc32C(); sum != nil && sum.GetValue() != crc32c(resp.Plaintext) {
					clear(resp.Plaintext)
					return nil, fmt.Errorf("plaintext checksum mismatch")
				}
				return resp.Plaintext, nil
			},
		})
	}

	return crypto.UnwrapKeyRing(ctx, "gcpkms", keys, o.unwrapOpts...)
}
