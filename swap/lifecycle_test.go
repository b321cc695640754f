package swap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionHappyPath(t *testing.T) {
	path := []Lifecycle{
		Proposed, Started, CommitmentExchanged, Revealed, Funded, Locked,
	}
	for i := 0; i < len(path)-1; i++ {
		require.True(t, CanTransition(path[i], path[i+1]), "%v -> %v", path[i], path[i+1])
	}
}

func TestCanTransitionLockedBranches(t *testing.T) {
	require.True(t, CanTransition(Locked, BuyBroadcast))
	require.True(t, CanTransition(Locked, CancelBroadcast))
	require.True(t, CanTransition(BuyBroadcast, Completed))
	require.True(t, CanTransition(CancelBroadcast, Refunded))
}

func TestCanTransitionSelfIsNoOp(t *testing.T) {
	require.True(t, CanTransition(Funded, Funded))
}

func TestCanTransitionAbortAlwaysAllowedUntilTerminal(t *testing.T) {
	require.True(t, CanTransition(Proposed, Aborted))
	require.True(t, CanTransition(Locked, Aborted))
	require.False(t, CanTransition(Completed, Aborted))
	require.False(t, CanTransition(Refunded, Aborted))
}

func TestCanTransitionRejectsSkippingStates(t *testing.T) {
	require.False(t, CanTransition(Proposed, Funded))
	require.False(t, CanTransition(Started, Locked))
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(Completed))
	require.True(t, IsTerminal(Refunded))
	require.True(t, IsTerminal(Aborted))
	require.False(t, IsTerminal(Locked))
}
