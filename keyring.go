package crypto

// NamedKey is a keypair registered in a KeyRing under an ID.
type NamedKey struct {
	// ID is a unique identifier for the key (e.g., "wallet-2024-01").
	ID string

	// Pair is the X25519 keypair.
	Pair *KeyPair
}

// KeyRing abstracts recipient keypair lookup for Codec.
// Implementations must be safe for concurrent use.
type KeyRing interface {
	// CurrentKey returns the key new values are sealed to.
	CurrentKey() (NamedKey, error)

	// KeyByID returns the key with the given ID, used for opening.
	// Returns ErrKeyNotFound if the key ID is not known.
	KeyByID(id string) (NamedKey, error)
}
