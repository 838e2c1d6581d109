package crypto

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/salsa20/salsa"
)

// Engine implements the crypto_box envelope operations: authenticated box/open
// between two known keys, and anonymous seal/open to a recipient key.
//
// An Engine holds no secrets and no per-call state; it is safe for concurrent
// use. Nonce uniqueness for Box is the caller's responsibility: the engine does
// not track nonces, and reusing one for the same key pair breaks confidentiality.
type Engine struct {
	provider PrimitiveProvider
	logger   zerolog.Logger
	metrics  *instruments
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	provider      PrimitiveProvider
	logger        zerolog.Logger
	meterProvider metric.MeterProvider
}

// WithProvider sets the primitive provider. Defaults to NaClProvider{}.
func WithProvider(p PrimitiveProvider) Option {
	return func(o *engineOptions) {
		o.provider = p
	}
}

// WithLogger sets the logger used for failed operations. Key material and
// plaintext are never logged. Defaults to a disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *engineOptions) {
		o.meterProvider = mp
	}
}

// NewEngine creates an Engine. Returns an error if the provider is nil.
func NewEngine(opts ...Option) (*Engine, error) {
	o := engineOptions{
		provider:      NaClProvider{},
		logger:        zerolog.Nop(),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		return nil, fmt.Errorf("crypto: NewEngine provider is nil")
	}
	if o.meterProvider == nil {
		return nil, fmt.Errorf("crypto: NewEngine meter provider is nil")
	}

	return &Engine{
		provider: o.provider,
		logger:   o.logger,
		metrics:  newInstruments(o.meterProvider),
	}, nil
}

var defaultEngine = sync.OnceValue(func() *Engine {
	e, err := NewEngine()
	if err != nil {
		panic(err)
	}
	return e
})

// Default returns the shared Engine used by the package-level functions.
func Default() *Engine {
	return defaultEngine()
}

// RandomNonce returns a fresh NonceSize-byte nonce.
func (e *Engine) RandomNonce() (nonce []byte, err error) {
	defer func() { e.observe(opRandomNonce, err) }()
	return e.provider.RandomBytes(NonceSize)
}

// Box encrypts message from sender to recipient under nonce.
// The sender must be a *KeyPair; recipient may be either key variant.
// Output is tag || ciphertext, identical to NaCl crypto_box_easy.
func (e *Engine) Box(sender, recipient Key, message, nonce []byte) (out []byte, err error) {
	defer func() { e.observe(opBox, err) }()

	sk, err := privateKey(sender, "sender")
	if err != nil {
		return nil, err
	}
	rpk, err := publicKey(recipient, "recipient")
	if err != nil {
		return nil, err
	}

	err = sk.withSecret(func(secret []byte) error {
		var err error
		out, err = e.boxWithSecret(secret, rpk, message, nonce)
		return err
	})
	return out, err
}

// Open authenticates and decrypts a ciphertext produced by Box(sender, recipient, ...).
// The recipient must be a *KeyPair. Either the full message is returned or an
// error; on ErrAuthentication no plaintext is exposed.
func (e *Engine) Open(recipient, sender Key, ciphertext, nonce []byte) (out []byte, err error) {
	defer func() { e.observe(opOpen, err) }()

	rk, err := privateKey(recipient, "recipient")
	if err != nil {
		return nil, err
	}
	spk, err := publicKey(sender, "sender")
	if err != nil {
		return nil, err
	}

	err = rk.withSecret(func(secret []byte) error {
		var err error
		out, err = e.openWithSecret(secret, spk, ciphertext, nonce)
		return err
	})
	return out, err
}

// Seal encrypts message anonymously to recipient. A fresh ephemeral keypair is
// generated, its secret is wiped before Seal returns, and the output is
// ephemeral_pk(32) || box(message), identical to libsodium crypto_box_seal.
func (e *Engine) Seal(recipient Key, message []byte) (out []byte, err error) {
	defer func() { e.observe(opSeal, err) }()

	rpk, err := publicKey(recipient, "recipient")
	if err != nil {
		return nil, err
	}

	esk, err := e.provider.RandomBytes(KeySize)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(esk)

	epk, err := e.provider.ECDH(esk, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	nonce, err := sealNonce(epk, rpk)
	if err != nil {
		return nil, err
	}

	body, err := e.boxWithSecret(esk, rpk, message, nonce)
	if err != nil {
		return nil, err
	}

	out = make([]byte, 0, len(epk)+len(body))
	out = append(out, epk...)
	out = append(out, body...)
	return out, nil
}

// SealOpen decrypts a sealed box addressed to recipient, which must be a *KeyPair.
// Input shorter than the ephemeral key prefix fails with ErrFormat.
func (e *Engine) SealOpen(recipient Key, ciphertext []byte) (out []byte, err error) {
	defer func() { e.observe(opSealOpen, err) }()

	rk, err := privateKey(recipient, "recipient")
	if err != nil {
		return nil, err
	}
	epk, body, err := splitSealed(ciphertext)
	if err != nil {
		return nil, err
	}
	nonce, err := sealNonce(epk, rk.public[:])
	if err != nil {
		return nil, err
	}

	err = rk.withSecret(func(secret []byte) error {
		var err error
		out, err = e.openWithSecret(secret, epk, body, nonce)
		if IsCrypto(err) {
			// The ephemeral key is attacker controlled; a rejected point is a forgery.
			return fmt.Errorf("%w: ephemeral key rejected: %v", ErrAuthentication, err)
		}
		return err
	})
	return out, err
}

func (e *Engine) boxWithSecret(secret, public, message, nonce []byte) ([]byte, error) {
	key, err := e.sharedKey(secret, public)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(key)
	return e.provider.AEADEncrypt(key, nonce, message)
}

func (e *Engine) openWithSecret(secret, public, ciphertext, nonce []byte) ([]byte, error) {
	key, err := e.sharedKey(secret, public)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(key)
	return e.provider.AEADDecrypt(key, nonce, ciphertext)
}

// sharedKey computes HSalsa20(X25519(secret, public), 0), the crypto_box beforenm key.
func (e *Engine) sharedKey(secret, public []byte) ([]byte, error) {
	shared, err := e.provider.ECDH(secret, public)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(shared)
	if len(shared) != KeySize {
		return nil, fmt.Errorf("%w: shared secret has %d bytes", ErrCrypto, len(shared))
	}

	var in [KeySize]byte
	var out [KeySize]byte
	var zero [16]byte
	copy(in[:], shared)
	salsa.HSalsa20(&out, &zero, &in, &salsa.Sigma)
	memguard.WipeBytes(in[:])
	return out[:], nil
}

// RandomNonce returns a fresh nonce from the default engine.
func RandomNonce() ([]byte, error) {
	return Default().RandomNonce()
}

// Box encrypts message from sender to recipient using the default engine.
func Box(sender, recipient Key, message, nonce []byte) ([]byte, error) {
	return Default().Box(sender, recipient, message, nonce)
}

// Open decrypts a Box ciphertext using the default engine.
func Open(recipient, sender Key, ciphertext, nonce []byte) ([]byte, error) {
	return Default().Open(recipient, sender, ciphertext, nonce)
}

// Seal anonymously encrypts message to recipient using the default engine.
func Seal(recipient Key, message []byte) ([]byte, error) {
	return Default().Seal(recipient, message)
}

// SealOpen decrypts a sealed box using the default engine.
func SealOpen(recipient Key, ciphertext []byte) ([]byte, error) {
	return Default().SealOpen(recipient, ciphertext)
}
