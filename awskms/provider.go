// Package awskms builds a key ring whose X25519 secrets are wrapped by AWS KMS.
//
// Each secret is stored as KMS ciphertext (the output of Encrypt or
// GenerateDataKeyWithoutPlaintext over 32 random bytes) and unwrapped with KMS
// Decrypt when the ring is built. Plaintext secrets live only in protected
// memory inside the returned ring.
//
// Usage:
//
//	cfg, err := awsconfig.LoadDefaultConfig(ctx)
//	kmsClient := kms.NewFromConfig(cfg)
//
//	ring, err := awskms.New(ctx, kmsClient,
//	    awskms.WithEncryptedKey(encryptedSecret, "wallet-2024"),
//	)
package awskms

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	crypto "github.com/rbaliyan/wallet-crypto"
)

// Client is the subset of the AWS KMS API used to unwrap secrets.
type Client interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	encryptedKeys []encryptedKeyEntry
	unwrapOpts    []crypto.UnwrapOption
}

type encryptedKeyEntry struct {
	ciphertext []byte
	id         string
	kmsKeyID   string // KMS key ARN or alias; empty = let KMS determine
}

// WithEncryptedKey adds a KMS-encrypted X25519 secret under id.
// The first key added becomes the ring's current key.
func WithEncryptedKey(ciphertext []byte, id string) Option {
	return func(o *options) {
		o.encryptedKeys = append(o.encryptedKeys, encryptedKeyEntry{
			ciphertext: ciphertext,
			id:         id,
		})
	}
}

// WithEncryptedKeyForKMSKey is like WithEncryptedKey but pins the KMS key ARN
// or alias used for Decrypt.
func WithEncryptedKeyForKMSKey(ciphertext []byte, id, kmsKeyID string) Option {
	return func(o *options) {
		o.encryptedKeys = append(o.encryptedKeys, encryptedKeyEntry{
			ciphertext: ciphertext,
			id:         id,
			kmsKeyID:   kmsKeyID,
		})
	}
}

// WithUnwrapOptions passes tracing and logging options through to crypto.UnwrapKeyRing.
func WithUnwrapOptions(opts ...crypto.UnwrapOption) Option {
	return func(o *options) {
		o.unwrapOpts = append(o.unwrapOpts, opts...)
	}
}

// New unwraps every configured secret with KMS Decrypt and returns a key ring
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
				input := &kms.DecryptInput{
					CiphertextBlob: ek.ciphertext,
				}
				if ek.kmsKeyID != "" {
					input.KeyId = &ek.kmsKeyID
				}
				out, err := client.Decrypt(ctx, input)
				if err != nil {
					return nil, err
				}
				return out.Plaintext, nil
			},
		})
	}

	return crypto.UnwrapKeyRing(ctx, "awskms", keys, o.unwrapOpts...)
}
