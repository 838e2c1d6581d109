package crypto

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rbaliyan/config/codec"
)

// sealedName is the transformer name; codec names are "sealed:<inner>".
const sealedName = "sealed"

// Sealer is a codec.Transformer that seals bytes to a key ring's current key
// and opens them with the key named in the header. Compose it with any codec
// via codec.NewChain, or use Codec.
type Sealer struct {
	ring   KeyRing
	engine *Engine
}

// Compile-time interface checks.
var (
	_ codec.Transformer = (*Sealer)(nil)
	_ codec.Codec       = (*Codec)(nil)
)

// CodecOption configures a Sealer or Codec.
type CodecOption func(*Sealer)

// WithEngine sets the engine used to seal and open values. Defaults to Default().
func WithEngine(e *Engine) CodecOption {
	return func(s *Sealer) {
		if e != nil {
			s.engine = e
		}
	}
}

// NewSealer creates a sealing transformer over ring.
// Returns an error if ring is nil.
func NewSealer(ring KeyRing, opts ...CodecOption) (*Sealer, error) {
	if ring == nil {
		return nil, fmt.Errorf("crypto: NewSealer key ring is nil")
	}
	s := &Sealer{
		ring:   ring,
		engine: Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns "sealed".
func (s *Sealer) Name() string {
	return sealedName
}

// Transform seals data to the current key and prepends the framing header.
func (s *Sealer) Transform(_ context.Context, data []byte) ([]byte, error) {
	key, err := s.ring.CurrentKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to get current key: %w", err)
	}
	if key.Pair == nil {
		return nil, fmt.Errorf("%w: current key %q has no keypair", ErrKeyRole, key.ID)
	}

	sealed, err := s.engine.Seal(key.Pair.PublicKey(), data)
	if err != nil {
		return nil, err
	}

	h := &header{
		version:   formatVersion,
		algorithm: algX25519XSalsa20Poly1305,
		keyID:     key.ID,
	}

	var buf bytes.Buffer
	buf.Grow(headerSize(key.ID) + len(sealed))
	if err := writeHeader(&buf, h); err != nil {
		return nil, fmt.Errorf("crypto: failed to write header: %w", err)
	}
	buf.Write(sealed)

	return buf.Bytes(), nil
}

// Reverse reads the header, looks up the named key and opens the sealed box.
func (s *Sealer) Reverse(_ context.Context, data []byte) ([]byte, error) {
	h, sealed, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	key, err := s.ring.KeyByID(h.keyID)
	if err != nil {
		return nil, err
	}

	return s.engine.SealOpen(key.Pair, sealed)
}

// Codec wraps an inner codec with anonymous sealed-box encryption.
// On Encode, the inner codec serializes the value, then the result is sealed to
// the key ring's current public key. On Decode, the key ID in the header selects
// the keypair, the sealed box is opened, then the inner codec deserializes it.
//
// Codec is safe for concurrent use if the KeyRing and inner codec are safe for
// concurrent use. StaticKeyRing satisfies this requirement.
type Codec struct {
	inner  codec.Codec
	sealer *Sealer
	name   string
}

// NewCodec creates a sealing codec that wraps the given inner codec.
// The codec name is "sealed:<inner>", e.g. "sealed:json".
// Returns an error if inner or ring is nil.
func NewCodec(inner codec.Codec, ring KeyRing, opts ...CodecOption) (*Codec, error) {
	if inner == nil {
		return nil, fmt.Errorf("crypto: NewCodec inner codec is nil")
	}
	sealer, err := NewSealer(ring, opts...)
	if err != nil {
		return nil, fmt.Errorf("crypto: NewCodec: %w", err)
	}
	return &Codec{
		inner:  inner,
		sealer: sealer,
		name:   sealedName + ":" + inner.Name(),
	}, nil
}

// Name returns the codec name, e.g. "sealed:json".
func (c *Codec) Name() string {
	return c.name
}

// Encode serializes the value using the inner codec, then seals the result.
func (c *Codec) Encode(ctx context.Context, v any) ([]byte, error) {
	plaintext, err := c.inner.Encode(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("crypto: inner encode failed: %w", err)
	}
	return c.sealer.Transform(ctx, plaintext)
}

// Decode opens the sealed value, then deserializes the plaintext using the inner codec.
func (c *Codec) Decode(ctx context.Context, data []byte, v any) error {
	plaintext, err := c.sealer.Reverse(ctx, data)
	if err != nil {
		return fmt.Errorf("crypto: decode failed: %w", err)
	}

	if err := c.inner.Decode(ctx, plaintext, v); err != nil {
		return fmt.Errorf("crypto: inner decode failed: %w", err)
	}
	return nil
}
