// Package swap implements one Runtime per active swap: the Lifecycle state
// machine driving a swap from offer to settlement at the fabric level (the
// Alice/Bob cryptographic protocol proper is out of this module's scope;
// see the module's design notes).
package swap

import "github.com/farcasterd/swapd/bus"

// Lifecycle is this package's authoritative swap state; bus.Lifecycle is
// the wire projection of the same values used by SwapInfo, kept in its own
// package to avoid a bus<->swap import cycle.
type Lifecycle = bus.Lifecycle

const (
	Proposed             = bus.LifecycleProposed
	Started              = bus.LifecycleStarted
	CommitmentExchanged  = bus.LifecycleCommitmentExchanged
	Revealed             = bus.LifecycleRevealed
	Funded               = bus.LifecycleFunded
	Locked               = bus.LifecycleLocked
	BuyBroadcast         = bus.LifecycleBuyBroadcast
	CancelBroadcast      = bus.LifecycleCancelBroadcast
	Refunded             = bus.LifecycleRefunded
	Completed            = bus.LifecycleCompleted
	Aborted              = bus.LifecycleAborted
)

// Role is which side of the swap this Runtime plays: Alice receives the
// accordant (Monero) asset, Bob receives the arbitrating (Bitcoin) asset.
type Role uint8

const (
	RoleAlice Role = iota
	RoleBob
)

func (r Role) String() string {
	if r == RoleAlice {
		return "alice"
	}
	return "bob"
}

// forwardEdges is the happy-path transition table: from -> the set of
// states reachable by a single legitimate forward transition. Locked
// branches two ways depending on which side broadcasts first; both BuyBroadcast
// and CancelBroadcast in turn settle into exactly one terminal state.
var forwardEdges = map[Lifecycle][]Lifecycle{
	Proposed:            {Started},
	Started:             {CommitmentExchanged},
	CommitmentExchanged: {Revealed},
	Revealed:            {Funded},
	Funded:              {Locked},
	Locked:              {BuyBroadcast, CancelBroadcast},
	BuyBroadcast:        {Completed},
	CancelBroadcast:     {Refunded},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// single-step transition. Every non-terminal state may also transition to
// Aborted --
// omitted from the table since it applies universally -- and a
// self-transition (from == to) is always allowed, matching "receiving the
// same event twice advances nothing."
func CanTransition(from, to Lifecycle) bool {
	if from == to {
		return true
	}
	if to == Aborted {
		return !IsTerminal(from)
	}
	for _, next := range forwardEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether l is one of the swap's three terminal states.
func IsTerminal(l Lifecycle) bool {
	return l == Refunded || l == Completed || l == Aborted
}
