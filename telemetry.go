package crypto

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/rbaliyan/wallet-crypto"

// Operation names used in metrics and logs.
const (
	opRandomNonce = "random_nonce"
	opBox         = "box"
	opOpen        = "open"
	opSeal        = "seal"
	opSealOpen    = "seal_open"
)

type instruments struct {
	operations metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) *instruments {
	counter, err := mp.Meter(instrumentationName).Int64Counter(
		"wallet_crypto.operations",
		metric.WithDescription("Envelope operations by operation and outcome."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	return &instruments{operations: counter}
}

// observe records the outcome of op and logs failures.
func (e *Engine) observe(op string, err error) {
	outcome := outcomeOf(err)
	e.metrics.operations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
	if err != nil {
		e.logger.Debug().
			Str("operation", op).
			Str("outcome", outcome).
			Err(err).
			Msg("envelope operation failed")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthentication):
		return "authentication_failed"
	case errors.Is(err, ErrKeyRole):
		return "key_role"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrEntropy):
		return "entropy"
	case errors.Is(err, ErrCrypto):
		return "crypto"
	default:
		return "error"
	}
}
