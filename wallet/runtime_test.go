package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"

	swapd "github.com/farcasterd/swapd"
	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
)

func newTestRuntime(t *testing.T) (*Runtime, bus.Endpoints, <-chan bus.Envelope, bus.Token) {
	t.Helper()
	store, err := checkpoint.Open(t.TempDir() + "/swapd.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var walletSeed, peerdSecretKey [32]byte
	walletSeed[0] = 1
	peerdSecretKey[0] = 2

	secrets, err := NewNodeSecrets(walletSeed, peerdSecretKey, store)
	require.NoError(t, err)

	token, err := bus.NewToken()
	require.NoError(t, err)

	router := bus.NewRouter()
	endpoints, _ := router.Register(bus.WalletId())
	farcasterEndpoints, farcasterInbox := router.Register(bus.FarcasterId())
	_ = farcasterEndpoints

	rt := New(endpoints, token, secrets, store, false)
	return rt, endpoints, farcasterInbox, token
}

func TestRuntimeRejectsInvalidTokenOnCreateSwapKeys(t *testing.T) {
	rt, endpoints, farcasterInbox, _ := newTestRuntime(t)

	badToken, err := bus.NewToken()
	require.NoError(t, err)

	err = rt.Handle(bus.Ctl, bus.FarcasterId(), bus.CreateSwapKeys{Token: badToken})
	require.NoError(t, err)
	_ = endpoints

	env := <-farcasterInbox
	failure, ok := env.Msg.(bus.Failure)
	require.True(t, ok)
	require.Equal(t, swapd.NewInvalidToken().Code(), failure.Code)
}

func TestRuntimeRejectsInvalidTokenOnGetKeys(t *testing.T) {
	rt, _, farcasterInbox, _ := newTestRuntime(t)

	badToken, err := bus.NewToken()
	require.NoError(t, err)

	err = rt.Handle(bus.Ctl, bus.FarcasterId(), bus.GetKeys{Token: badToken})
	require.NoError(t, err)

	env := <-farcasterInbox
	_, ok := env.Msg.(bus.Failure)
	require.True(t, ok)
}

func TestRuntimeCreateSwapKeysValidToken(t *testing.T) {
	rt, _, farcasterInbox, token := newTestRuntime(t)

	offer := bus.PublicOffer{ArbitratingAmt: 100}
	err := rt.Handle(bus.Ctl, bus.FarcasterId(), bus.CreateSwapKeys{Token: token, Offer: offer})
	require.NoError(t, err)

	env := <-farcasterInbox
	keys, ok := env.Msg.(bus.SwapKeys)
	require.True(t, ok)
	require.NotEmpty(t, keys.KeyManagerBlob)
	require.Equal(t, offer, keys.Offer)
}

func TestRuntimeGetKeysValidToken(t *testing.T) {
	rt, _, farcasterInbox, token := newTestRuntime(t)

	err := rt.Handle(bus.Ctl, bus.FarcasterId(), bus.GetKeys{Token: token})
	require.NoError(t, err)

	env := <-farcasterInbox
	keys, ok := env.Msg.(bus.Keys)
	require.True(t, ok)
	require.NotEqual(t, [33]byte{}, keys.NodeId)
}

func TestRuntimeRejectsNonCtlLane(t *testing.T) {
	rt, _, _, token := newTestRuntime(t)
	err := rt.Handle(bus.Info, bus.FarcasterId(), bus.GetKeys{Token: token})
	require.ErrorIs(t, err, bus.ErrLaneMismatch)
}
