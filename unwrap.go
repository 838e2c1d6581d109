package crypto

import (
	"context"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WrappedKey is an X25519 secret key encrypted by an external key manager.
type WrappedKey struct {
	// ID identifies the key in the resulting ring.
	ID string

	// Unwrap returns the plaintext 32-byte secret. The returned slice is wiped
	// once it has been copied into protected memory.
	Unwrap func(ctx context.Context) ([]byte, error)
}

// UnwrapOption configures UnwrapKeyRing.
type UnwrapOption func(*unwrapOptions)

type unwrapOptions struct {
	tracerProvider trace.TracerProvider
	logger         zerolog.Logger
}

// WithTracerProvider sets the OpenTelemetry tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) UnwrapOption {
	return func(o *unwrapOptions) {
		o.tracerProvider = tp
	}
}

// WithUnwrapLogger sets the logger used to report loaded key IDs.
func WithUnwrapLogger(l zerolog.Logger) UnwrapOption {
	return func(o *unwrapOptions) {
		o.logger = l
	}
}

// UnwrapKeyRing unwraps every key and returns a StaticKeyRing holding them.
// The first key becomes the current key; the rest are kept for opening values
// sealed before a rotation. source names the key manager in errors and spans.
func UnwrapKeyRing(ctx context.Context, source string, keys []WrappedKey, opts ...UnwrapOption) (*StaticKeyRing, error) {
	o := unwrapOptions{
		tracerProvider: otel.GetTracerProvider(),
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: at least one wrapped key is required", source)
	}
	if err := checkWrappedIDs(keys); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	tracer := o.tracerProvider.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "UnwrapKeyRing", trace.WithAttributes(
		attribute.String("key_manager", source),
		attribute.Int("keys", len(keys)),
	))
	defer span.End()

	pairs := make([]NamedKey, 0, len(keys))
	for _, wk := range keys {
		kp, err := unwrapOne(ctx, tracer, source, wk)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unwrap failed")
			return nil, err
		}
		pairs = append(pairs, NamedKey{ID: wk.ID, Pair: kp})
		o.logger.Debug().Str("key_manager", source).Str("key_id", wk.ID).Msg("unwrapped key")
	}

	staticOpts := make([]StaticOption, 0, len(pairs)-1)
	for _, nk := range pairs[1:] {
		staticOpts = append(staticOpts, WithOldKeyPair(nk.Pair, nk.ID))
	}

	ring, err := newStaticKeyRing(pairs[0], staticOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return ring, nil
}

// checkWrappedIDs rejects empty, oversized or repeated key IDs before any key
// manager is called.
func checkWrappedIDs(keys []WrappedKey) error {
	seen := make(map[string]struct{}, len(keys))
	for _, wk := range keys {
		if err := validateKeyID(wk.ID); err != nil {
			return err
		}
		if _, ok := seen[wk.ID]; ok {
			return fmt.Errorf("%w: duplicate key ID %q", ErrInvalidKeyID, wk.ID)
		}
		seen[wk.ID] = struct{}{}
	}
	return nil
}

func unwrapOne(ctx context.Context, tracer trace.Tracer, source string, wk WrappedKey) (*KeyPair, error) {
	ctx, span := tracer.Start(ctx, "UnwrapKey", trace.WithAttributes(
		attribute.String("key_id", wk.ID),
	))
	defer span.End()

	if wk.Unwrap == nil {
		return nil, fmt.Errorf("%s: key %q has no unwrap function", source, wk.ID)
	}

	secret, err := wk.Unwrap(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s: failed to unwrap key %q: %w", source, wk.ID, err)
	}
	defer memguard.WipeBytes(secret)

	kp, err := KeyPairFromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("%s: key %q: %w", source, wk.ID, err)
	}
	return kp, nil
}
