package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"
)

// JWK parameters for X25519 keys (RFC 8037).
const (
	jwkKeyType = "OKP"
	jwkCurve   = "X25519"
)

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	D   string `json:"d,omitempty"`
}

var b64 = base64.RawURLEncoding

// ToJWK encodes the public key as an OKP JWK.
func (k *PublicKey) ToJWK() ([]byte, error) {
	return json.Marshal(jwk{Kty: jwkKeyType, Crv: jwkCurve, X: b64.EncodeToString(k.public[:])})
}

// ToJWK encodes the keypair as an OKP JWK. With includeSecret the output
// carries the secret key in "d" and must be handled as key material.
func (k *KeyPair) ToJWK(includeSecret bool) ([]byte, error) {
	if !includeSecret {
		return k.PublicKey().ToJWK()
	}
	var out []byte
	err := k.WithSecretBytes(func(secret []byte) error {
		var err error
		out, err = json.Marshal(jwk{
			Kty: jwkKeyType,
			Crv: jwkCurve,
			X:   b64.EncodeToString(k.public[:]),
			D:   b64.EncodeToString(secret),
		})
		return err
	})
	return out, err
}

// KeyFromJWK decodes an OKP X25519 JWK. It returns a *KeyPair when the JWK
// carries "d" and a *PublicKey otherwise. A "d" whose public key differs from
// "x" fails with ErrInvalidKeyData.
func KeyFromJWK(data []byte) (Key, error) {
	var j jwk
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: jwk: %v", ErrInvalidKeyData, err)
	}
	if j.Kty != jwkKeyType || j.Crv != jwkCurve {
		return nil, fmt.Errorf("%w: jwk: unsupported key type %q/%q", ErrInvalidKeyData, j.Kty, j.Crv)
	}

	public, err := decodeJWKField("x", j.X)
	if err != nil {
		return nil, err
	}
	if j.D == "" {
		pk, err := PublicKeyFromBytes(public)
		if err != nil {
			return nil, err
		}
		return pk, nil
	}

	secret, err := decodeJWKField("d", j.D)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(secret)

	kp, err := KeyPairFromSecret(secret)
	if err != nil {
		return nil, err
	}
	if err := kp.checkPublic(public); err != nil {
		return nil, err
	}
	return kp, nil
}

func decodeJWKField(name, v string) ([]byte, error) {
	b, err := b64.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: jwk %q: %v", ErrInvalidKeyData, name, err)
	}
	if len(b) != KeySize {
		memguard.WipeBytes(b)
		return nil, fmt.Errorf("%w: jwk %q has %d bytes, want %d", ErrInvalidKeyData, name, len(b), KeySize)
	}
	return b, nil
}
