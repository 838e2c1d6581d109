package crypto

import "errors"

var (
	// ErrKeyRole is returned when an operation needs private key material
	// but was given a public-only key.
	ErrKeyRole = errors.New("crypto: key lacks private material")

	// ErrAuthentication is returned when the MAC check of a box or sealed box fails
	// (tampered ciphertext, wrong key, or wrong nonce). No plaintext is returned.
	ErrAuthentication = errors.New("crypto: authentication failed")

	// ErrFormat is returned when ciphertext is too short or structurally invalid.
	ErrFormat = errors.New("crypto: invalid ciphertext format")

	// ErrCrypto is returned when the primitive layer rejects its inputs
	// (bad key or nonce length, low-order point, unsupported algorithm).
	ErrCrypto = errors.New("crypto: primitive rejected input")

	// ErrEntropy is returned when the secure random source fails.
	ErrEntropy = errors.New("crypto: entropy source failed")

	// ErrKeyNotFound is returned when a key ID is not found in a key ring.
	ErrKeyNotFound = errors.New("crypto: key not found")

	// ErrInvalidKeySize is returned when key material is not 32 bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid key size, must be 32 bytes")

	// ErrInvalidKeyData is returned when imported key material is inconsistent,
	// e.g. a public key that does not belong to the secret key.
	ErrInvalidKeyData = errors.New("crypto: invalid key data")

	// ErrInvalidKeyID is returned when a key ID is empty or too long.
	ErrInvalidKeyID = errors.New("crypto: invalid key ID")
)

// IsKeyRole returns true if the error is or wraps ErrKeyRole.
func IsKeyRole(err error) bool {
	return errors.Is(err, ErrKeyRole)
}

// IsAuthentication returns true if the error is or wraps ErrAuthentication.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsFormat returns true if the error is or wraps ErrFormat.
func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat)
}

// IsCrypto returns true if the error is or wraps ErrCrypto.
func IsCrypto(err error) bool {
	return errors.Is(err, ErrCrypto)
}

// IsEntropy returns true if the error is or wraps ErrEntropy.
func IsEntropy(err error) bool {
	return errors.Is(err, ErrEntropy)
}

// IsKeyNotFound returns true if the error is or wraps ErrKeyNotFound.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsInvalidKeySize returns true if the error is or wraps ErrInvalidKeySize.
func IsInvalidKeySize(err error) bool {
	return errors.Is(err, ErrInvalidKeySize)
}

// IsInvalidKeyID returns true if the error is or wraps ErrInvalidKeyID.
func IsInvalidKeyID(err error) bool {
	return errors.Is(err, ErrInvalidKeyID)
}

// IsInvalidKeyData returns true if the error is or wraps ErrInvalidKeyData.
func IsInvalidKeyData(err error) bool {
	return errors.Is(err, ErrInvalidKeyData)
}
