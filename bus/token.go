package bus

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"gopkg.in/macaroon.v2"
)

// tokenCaveatID is the single, fixed capability identifier every Token
// macaroon carries. swapd only ever needs one undischarged capability --
// "the bearer may ask Wallet to derive swap keys" -- so there is no caveat
// tree to walk, unlike a general macaroon-bakery deployment.
const tokenCaveatID = "swapkeys"

// Token is the 16-byte random capability generated once per Farcaster
// lifetime and shared with Wallet at startup. It is wrapped in a macaroon so
// it carries the same signed, self-describing envelope the daemon's gRPC-era
// ancestor used for RPC auth, even though swapd only ever mints one of them
// and never discharges a caveat.
type Token struct {
	raw [16]byte
	mac *macaroon.Macaroon
}

// NewToken generates a fresh random Token, signed as a macaroon over
// tokenCaveatID.
func NewToken() (Token, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return Token{}, fmt.Errorf("bus: generating token: %w", err)
	}
	return tokenFromRaw(raw)
}

func tokenFromRaw(raw [16]byte) (Token, error) {
	mac, err := macaroon.New(raw[:], []byte(tokenCaveatID), "farcasterd", macaroon.LatestVersion)
	if err != nil {
		return Token{}, fmt.Errorf("bus: signing token: %w", err)
	}
	return Token{raw: raw, mac: mac}, nil
}

// TokenFromBytes reconstructs a Token from the raw 16-byte capability, e.g.
// after reading it back from a config file or RPC payload.
func TokenFromBytes(raw []byte) (Token, error) {
	if len(raw) != 16 {
		return Token{}, fmt.Errorf("bus: token must be 16 bytes, got %d", len(raw))
	}
	var buf [16]byte
	copy(buf[:], raw)
	return tokenFromRaw(buf)
}

// Bytes returns the raw 16-byte capability.
func (t Token) Bytes() [16]byte { return t.raw }

// Signature returns the macaroon's signature bytes, a convenient
// fixed-length value to compare or transmit in place of the raw secret when
// only proof-of-possession is required.
func (t Token) Signature() []byte {
	if t.mac == nil {
		return nil
	}
	return t.mac.Signature()
}

// Equal reports whether two tokens were derived from the same 16 bytes,
// compared in constant time so a Wallet's token-matching branch does not
// leak timing information about the stored secret.
func (t Token) Equal(other Token) bool {
	return subtle.ConstantTimeCompare(t.raw[:], other.raw[:]) == 1
}
