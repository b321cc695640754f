package bus

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SwapId is the 32-byte identifier assigned to a swap once both sides have
// agreed on keys. A SwapId is assigned to a given swap at most once in its
// lifetime.
type SwapId [32]byte

func (id SwapId) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether id is the zero value, used to detect a Swap that
// has not yet transitioned from its TempSwapId.
func (id SwapId) IsZero() bool { return id == SwapId{} }

// TempSwapId is the 32-byte identifier used before both sides of a swap
// agree on keys. The transition from TempSwapId to SwapId is one-way.
type TempSwapId [32]byte

func (id TempSwapId) String() string { return hex.EncodeToString(id[:]) }

// NewTempSwapId generates a fresh random TempSwapId.
func NewTempSwapId() (TempSwapId, error) {
	var id TempSwapId
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("bus: generating temp swap id: %w", err)
	}
	return id, nil
}

// DeriveSwapId assigns the permanent SwapId for a swap once both sides have
// committed; it is a deterministic function of the TempSwapId so both
// parties derive the identical SwapId independently.
func DeriveSwapId(temp TempSwapId) SwapId {
	// The temp id already carries 256 bits of shared entropy committed
	// to by both parties during commitment exchange; promoting it
	// directly to a SwapId keeps the transition a pure relabeling with
	// no further network round trip.
	return SwapId(temp)
}
