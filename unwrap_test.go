package crypto

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace/noop"
)

// staticUnwrap returns a copy of secret and records the slice it handed out.
func staticUnwrap(secret []byte, handed *[]byte) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		out := append([]byte(nil), secret...)
		if handed != nil {
			*handed = out
		}
		return out, nil
	}
}

func TestUnwrapKeyRing(t *testing.T) {
	ctx := context.Background()

	ring, err := UnwrapKeyRing(ctx, "test", []WrappedKey{
		{ID: "key-2", Unwrap: staticUnwrap(makeKey(32), nil)},
		{ID: "key-1", Unwrap: staticUnwrap(oldSecret(100), nil)},
	}, WithTracerProvider(noop.NewTracerProvider()))
	if err != nil {
		t.Fatalf("UnwrapKeyRing: %v", err)
	}

	current, err := ring.CurrentKey()
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != "key-2" {
		t.Errorf("CurrentKey().ID: got %q, want %q", current.ID, "key-2")
	}

	want, _ := KeyPairFromSecret(makeKey(32))
	if !bytes.Equal(current.Pair.PublicBytes(), want.PublicBytes()) {
		t.Error("current key does not match unwrapped secret")
	}

	old, err := ring.KeyByID("key-1")
	if err != nil {
		t.Fatalf("KeyByID(key-1): %v", err)
	}
	sealed, err := Seal(old.Pair.PublicKey(), []byte("legacy"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := SealOpen(old.Pair, sealed); err != nil {
		t.Errorf("old key cannot open: %v", err)
	}
}

func TestUnwrapKeyRingWipesPlaintext(t *testing.T) {
	var handed []byte
	_, err := UnwrapKeyRing(context.Background(), "test", []WrappedKey{
		{ID: "key-1", Unwrap: staticUnwrap(makeKey(32), &handed)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(handed, make([]byte, 32)) {
		t.Error("unwrapped plaintext was not zeroed")
	}
}

func TestUnwrapKeyRingNoKeys(t *testing.T) {
	_, err := UnwrapKeyRing(context.Background(), "test", nil)
	if err == nil {
		t.Fatal("expected error for empty key list")
	}
	if !strings.HasPrefix(err.Error(), "test:") {
		t.Errorf("error not prefixed with source: %v", err)
	}
}

func TestUnwrapKeyRingUnwrapFailure(t *testing.T) {
	errDenied := errors.New("access denied")
	_, err := UnwrapKeyRing(context.Background(), "awskms", []WrappedKey{
		{ID: "key-2", Unwrap: staticUnwrap(makeKey(32), nil)},
		{ID: "key-1", Unwrap: func(context.Context) ([]byte, error) { return nil, errDenied }},
	})
	if !errors.Is(err, errDenied) {
		t.Fatalf("expected wrapped unwrap error, got %v", err)
	}
	if !strings.Contains(err.Error(), `awskms: failed to unwrap key "key-1"`) {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestUnwrapKeyRingInvalidSize(t *testing.T) {
	var handed []byte
	_, err := UnwrapKeyRing(context.Background(), "test", []WrappedKey{
		{ID: "key-1", Unwrap: staticUnwrap(makeKey(16), &handed)},
	})
	if !IsInvalidKeySize(err) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
	if !bytes.Equal(handed, make([]byte, 16)) {
		t.Error("rejected plaintext was not zeroed")
	}
}

func TestUnwrapKeyRingInvalidID(t *testing.T) {
	_, err := UnwrapKeyRing(context.Background(), "test", []WrappedKey{
		{ID: "", Unwrap: staticUnwrap(makeKey(32), nil)},
	})
	if !IsInvalidKeyID(err) {
		t.Errorf("expected ErrInvalidKeyID, got %v", err)
	}

	_, err = UnwrapKeyRing(context.Background(), "test", []WrappedKey{
		{ID: "key-2", Unwrap: staticUnwrap(makeKey(32), nil)},
		{ID: "", Unwrap: staticUnwrap(oldSecret(100), nil)},
	})
	if !IsInvalidKeyID(err) {
		t.Errorf("old key: expected ErrInvalidKeyID, got %v", err)
	}
}

func TestUnwrapKeyRingRejectsIDsBeforeUnwrap(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
	}{
		{"empty old ID", []string{"key-2", ""}},
		{"oversized ID", []string{"key-2", strings.Repeat("k", maxKeyIDLen+1)}},
		{"duplicate ID", []string{"key-2", "key-1", "key-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			keys := make([]WrappedKey, 0, len(tt.ids))
			for i, id := range tt.ids {
				secret := oldSecret(byte(i))
				keys = append(keys, WrappedKey{ID: id, Unwrap: func(context.Context) ([]byte, error) {
					calls++
					return append([]byte(nil), secret...), nil
				}})
			}
			_, err := UnwrapKeyRing(t.Context(), "test", keys)
			if !IsInvalidKeyID(err) {
				t.Fatalf("expected ErrInvalidKeyID, got %v", err)
			}
			if calls != 0 {
				t.Errorf("key manager called %d times before ID validation", calls)
			}
		})
	}
}

func TestUnwrapKeyRingNilUnwrap(t *testing.T) {
	_, err := UnwrapKeyRing(context.Background(), "test", []WrappedKey{{ID: "key-1"}})
	if err == nil {
		t.Error("expected error for missing unwrap function")
	}
}

func TestUnwrapKeyRingPassesContext(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")

	var seen any
	_, err := UnwrapKeyRing(ctx, "test", []WrappedKey{{
		ID: "key-1",
		Unwrap: func(ctx context.Context) ([]byte, error) {
			seen = ctx.Value(ctxKey{})
			return makeKey(32), nil
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if seen != "marker" {
		t.Errorf("unwrap did not receive caller context, got %v", seen)
	}
}

func TestUnwrapKeyRingLogsIDsOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	_, err := UnwrapKeyRing(context.Background(), "test", []WrappedKey{
		{ID: "key-1", Unwrap: staticUnwrap(makeKey(32), nil)},
	}, WithUnwrapLogger(logger))
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `"key_id":"key-1"`) {
		t.Errorf("log missing key ID: %s", out)
	}
	if strings.Contains(out, "AAECAwQF") || bytes.Contains(buf.Bytes(), makeKey(32)) {
		t.Errorf("log contains key material: %s", out)
	}
}
