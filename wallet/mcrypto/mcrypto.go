// Package mcrypto derives Monero-compatible spend/view keypairs. No Monero
// client library exists in this module's dependency set, so this package
// builds directly on golang.org/x/crypto's Ed25519 and Blake2b primitives --
// the same curve and hash Monero's CryptoNote key derivation uses -- rather
// than hand-rolling either.
package mcrypto

import (
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ed25519"
)

// PrivateKey is a Monero-style scalar private key: the low 32 bytes of an
// Ed25519-curve clamped scalar, kept opaque to callers outside this
// package.
type PrivateKey struct {
	scalar [32]byte
	public [32]byte
}

// Bytes returns the 32-byte scalar.
func (k *PrivateKey) Bytes() [32]byte { return k.scalar }

// PublicBytes returns the corresponding 32-byte public point.
func (k *PrivateKey) PublicBytes() [32]byte { return k.public }

// DeriveSwapKeys derives a Monero spend and view keypair from seed, the way
// a Monero wallet derives its view key as Keccak/Blake2b(spend_scalar):
// spend is clamped from the first half of SHA-512(seed), view the same way
// from Blake2b-256(spend scalar), giving the standard one-seed-to-two-keys
// relationship Monero wallets rely on for scanning without the spend key.
func DeriveSwapKeys(seed [32]byte) (spend, view *PrivateKey, err error) {
	spend, err = newPrivateKey(seed)
	if err != nil {
		return nil, nil, fmt.Errorf("mcrypto: deriving spend key: %w", err)
	}

	viewSeed := blake2b.Sum256(spend.scalar[:])
	view, err = newPrivateKey(viewSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("mcrypto: deriving view key: %w", err)
	}
	return spend, view, nil
}

// newPrivateKey clamps seed into a valid Ed25519/Curve25519 scalar and
// computes its basepoint-multiplied public point, mirroring the clamping
// Ed25519 itself performs on an expanded private key's first half.
func newPrivateKey(seed [32]byte) (*PrivateKey, error) {
	expanded := sha512.Sum512(seed[:])
	var scalar [32]byte
	copy(scalar[:], expanded[:32])
	clamp(&scalar)

	pub := ed25519.NewKeyFromSeed(seed[:]).Public().(ed25519.PublicKey)
	var pubArr [32]byte
	copy(pubArr[:], pub)

	return &PrivateKey{scalar: scalar, public: pubArr}, nil
}

// clamp applies the standard Curve25519 scalar clamp in place.
func clamp(s *[32]byte) {
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
}
