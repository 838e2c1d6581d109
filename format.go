package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

// Envelope constants.
const (
	// KeySize is the size of X25519 public and secret keys and of the derived box key.
	KeySize = 32

	// NonceSize is the size of a crypto_box nonce (XSalsa20).
	NonceSize = 24

	// TagSize is the size of the Poly1305 authentication tag.
	TagSize = secretbox.Overhead

	// KeyPairSize is the size of the secret || public export format.
	KeyPairSize = 2 * KeySize

	// SealOverhead is the number of bytes Seal adds to a message:
	// the ephemeral public key followed by the tag.
	SealOverhead = KeySize + TagSize
)

// Sealed-value framing used by Codec.
const (
	// magic is the 2-byte signature "SB" (Sealed Box).
	magic = "SB"

	// formatVersion is the current framing version.
	formatVersion = 0x01

	// algX25519XSalsa20Poly1305 identifies an anonymous crypto_box seal.
	algX25519XSalsa20Poly1305 = 0x01

	// minHeaderSize is magic(2) + version(1) + alg(1) + keyIDLen(1).
	minHeaderSize = 5

	// maxKeyIDLen is bounded by the single length byte.
	maxKeyIDLen = 255
)

// sealNonce derives the nonce of an anonymous sealed box:
// BLAKE2b-192(ephemeral_pk || recipient_pk), as in libsodium crypto_box_seal.
func sealNonce(ephemeralPub, recipientPub []byte) ([]byte, error) {
	h, err := blake2b.New(NonceSize, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	h.Write(ephemeralPub)
	h.Write(recipientPub)
	return h.Sum(nil), nil
}

// splitSealed splits a sealed box into its ephemeral public key and box body.
func splitSealed(ciphertext []byte) (ephemeralPub, body []byte, err error) {
	if len(ciphertext) < KeySize {
		return nil, nil, fmt.Errorf("%w: sealed box has %d bytes, need at least %d", ErrFormat, len(ciphertext), KeySize)
	}
	return ciphertext[:KeySize], ciphertext[KeySize:], nil
}

// header is the framing in front of a sealed value produced by Codec.
type header struct {
	version   byte
	algorithm byte
	keyID     string
}

// headerSize returns the framing size in bytes for the given key ID.
func headerSize(keyID string) int {
	return minHeaderSize + len(keyID)
}

// writeHeader writes the framing header to w.
func writeHeader(w io.Writer, h *header) error {
	keyIDBytes := []byte(h.keyID)
	if len(keyIDBytes) > maxKeyIDLen {
		return fmt.Errorf("%w: key ID too long", ErrFormat)
	}

	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{h.version, h.algorithm, byte(len(keyIDBytes))}); err != nil {
		return err
	}
	_, err := w.Write(keyIDBytes)
	return err
}

// readHeader parses the framing header, returning it and the sealed box that follows.
func readHeader(data []byte) (*header, []byte, error) {
	if len(data) < minHeaderSize {
		return nil, nil, fmt.Errorf("%w: data too short", ErrFormat)
	}
	if string(data[0:2]) != magic {
		return nil, nil, fmt.Errorf("%w: invalid magic bytes", ErrFormat)
	}

	h := &header{
		version:   data[2],
		algorithm: data[3],
	}
	if h.version != formatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, h.version)
	}
	if h.algorithm != algX25519XSalsa20Poly1305 {
		return nil, nil, fmt.Errorf("%w: unsupported algorithm %d", ErrFormat, h.algorithm)
	}

	keyIDLen := int(data[4])
	if keyIDLen == 0 {
		return nil, nil, fmt.Errorf("%w: empty key ID", ErrFormat)
	}
	if len(data) < minHeaderSize+keyIDLen {
		return nil, nil, fmt.Errorf("%w: data too short for key ID", ErrFormat)
	}
	h.keyID = string(data[minHeaderSize : minHeaderSize+keyIDLen])

	return h, data[minHeaderSize+keyIDLen:], nil
}
