package swap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
	"github.com/farcasterd/swapd/wallet"
)

func newTestSwap(t *testing.T, role Role) (*Runtime, bus.Endpoints, <-chan bus.Envelope, bus.SwapId, *checkpoint.Store) {
	t.Helper()
	store, err := checkpoint.Open(t.TempDir() + "/swapd.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var seed [32]byte
	seed[0] = 7
	keys, err := wallet.NewKeyManager(seed, 1, false)
	require.NoError(t, err)

	tempID, err := bus.NewTempSwapId()
	require.NoError(t, err)
	swapID := bus.DeriveSwapId(tempID)

	router := bus.NewRouter()
	endpoints, _ := router.Register(bus.SwapServiceId(swapID))
	_, syncerInbox := router.Register(bus.SyncerId(bus.ChainBitcoin, bus.NetworkTestnet))

	offer := bus.PublicOffer{Network: bus.NetworkTestnet, ArbitratingChain: bus.ChainBitcoin}
	rt := New(swapID, tempID, role, offer, bus.PeerId("127.0.0.1:1"), keys, endpoints, store)

	return rt, endpoints, syncerInbox, swapID, store
}

func driveToLocked(t *testing.T, rt *Runtime) {
	t.Helper()
	require.NoError(t, rt.handlePeerMessage(bus.ServiceId{}, nil)) // Proposed -> Started
	require.NoError(t, rt.handlePeerMessage(bus.ServiceId{}, nil)) // Started -> CommitmentExchanged
	require.NoError(t, rt.handlePeerMessage(bus.ServiceId{}, nil)) // CommitmentExchanged -> Revealed
	require.NoError(t, rt.handleFunded([32]byte{1}, 0))            // Revealed -> Funded
	require.NoError(t, rt.handleConfirmed(bus.Event{Kind: bus.EventTransactionConfirmations})) // Funded -> Locked
}

func TestRuntimeTerminalTransitionDeletesCheckpoints(t *testing.T) {
	rt, _, _, swapID, store := newTestSwap(t, RoleAlice)
	driveToLocked(t, rt)

	require.NoError(t, wallet.SaveCheckpoint(store, swapID, wallet.CheckpointWallet{KeyManagerBlob: []byte{1, 2, 3, 4}}))

	// Locked -> BuyBroadcast (Alice) -> Completed, a terminal state.
	require.NoError(t, rt.handleConfirmed(bus.Event{Kind: bus.EventTransactionConfirmations}))
	require.Equal(t, BuyBroadcast, rt.State())
	require.NoError(t, rt.handleConfirmed(bus.Event{Kind: bus.EventTransactionConfirmations}))
	require.Equal(t, Completed, rt.State())

	_, ok, err := LoadSnapshot(store, swapID)
	require.NoError(t, err)
	require.False(t, ok, "snapshot should be deleted on reaching a terminal state")

	_, ok, err = wallet.LoadCheckpoint(store, swapID)
	require.NoError(t, err)
	require.False(t, ok, "wallet checkpoint should be deleted on reaching a terminal state")
}

func TestRuntimeNonTerminalTransitionKeepsSnapshot(t *testing.T) {
	rt, _, _, swapID, store := newTestSwap(t, RoleAlice)
	require.NoError(t, rt.handlePeerMessage(bus.ServiceId{}, nil))

	_, ok, err := LoadSnapshot(store, swapID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRuntimeBobBranchGoesToCancelAndRefunded(t *testing.T) {
	rt, _, _, _, _ := newTestSwap(t, RoleBob)
	driveToLocked(t, rt)

	require.NoError(t, rt.handleConfirmed(bus.Event{Kind: bus.EventTransactionConfirmations}))
	require.Equal(t, CancelBroadcast, rt.State())
	require.NoError(t, rt.handleConfirmed(bus.Event{Kind: bus.EventTransactionConfirmations}))
	require.Equal(t, Refunded, rt.State())
}

func TestRuntimeSyncFailureAbortsSwap(t *testing.T) {
	rt, _, _, _, _ := newTestSwap(t, RoleAlice)
	require.NoError(t, rt.handleSync(bus.ServiceId{}, bus.EventMsg{Event: bus.Event{Kind: bus.EventFailure, ErrorInfo: "syncer died"}}))
	require.Equal(t, Aborted, rt.State())
}

func TestRuntimeFundSwapForOtherSwapIgnored(t *testing.T) {
	rt, _, _, swapID, _ := newTestSwap(t, RoleAlice)
	require.NoError(t, rt.handlePeerMessage(bus.ServiceId{}, nil))
	require.NoError(t, rt.handlePeerMessage(bus.ServiceId{}, nil))
	require.NoError(t, rt.handlePeerMessage(bus.ServiceId{}, nil))

	otherID := swapID
	otherID[0] ^= 0xff
	require.NoError(t, rt.handleCtl(bus.ServiceId{}, bus.FundSwap{SwapId: otherID, Txid: [32]byte{9}}))
	require.Equal(t, Revealed, rt.State())
}
