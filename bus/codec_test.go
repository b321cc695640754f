package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg BusMsg) BusMsg {
	t.Helper()
	encoded, err := EncodeBytes(msg)
	require.NoError(t, err)
	decoded, err := DecodeBytes(encoded)
	require.NoError(t, err)
	return decoded
}

func TestCodecRoundTrip(t *testing.T) {
	token, err := NewToken()
	require.NoError(t, err)

	offer := PublicOffer{
		Network:          NetworkTestnet,
		ArbitratingChain: ChainBitcoin,
		AccordantChain:   ChainMonero,
		ArbitratingAmt:   100000,
		AccordantAmt:     7000000,
		CancelTimelock:   10,
		PunishTimelock:   20,
		FeeRate:          5,
		RoleIsAlice:      true,
	}

	cases := []BusMsg{
		Hello{},
		Terminate{},
		Listen{Addr: "0.0.0.0:9735"},
		ConnectPeer{Addr: "127.0.0.1:9735"},
		PingPeer{},
		PeerMessage{Payload: []byte{1, 2, 3}},
		FundSwap{SwapId: SwapId{1, 2}, Txid: [32]byte{3, 4}, Vout: 1},
		CreateSwapKeys{Offer: offer, Token: token},
		GetKeys{Token: token},
		Keys{NodeSecretKey: [32]byte{9}, NodeId: [33]byte{8}},
		Pedicide{},
		GetInfo{},
		ListPeers{},
		ListSwaps{},
		Progress{Message: "working"},
		Success{Details: WithDetail("done")},
		Success{Details: NoDetail()},
		Failure{Code: 7, Info: "bad token"},
		PeerList{Addrs: []string{"a:1", "b:2"}},
		SwapList{Ids: []SwapId{{1}, {2}}},
	}

	for _, msg := range cases {
		decoded := roundTrip(t, msg)
		require.Equal(t, msg.Tag(), decoded.Tag(), "%T", msg)
		require.Equal(t, msg, decoded, "%T", msg)
	}
}

func TestCreateSwapRoundTrip(t *testing.T) {
	tempID, err := NewTempSwapId()
	require.NoError(t, err)

	cs := CreateSwap{
		TempSwapId: tempID,
		Offer:      PublicOffer{Network: NetworkMainnet, ArbitratingChain: ChainBitcoin},
		PeerId:     PeerId("127.0.0.1:1234"),
	}

	open := roundTrip(t, OpenSwapWith{CreateSwap: cs})
	require.Equal(t, OpenSwapWith{CreateSwap: cs}, open)

	accept := roundTrip(t, AcceptSwapFrom{CreateSwap: cs})
	require.Equal(t, AcceptSwapFrom{CreateSwap: cs}, accept)
}

func TestDecodeUnknownTag(t *testing.T) {
	msg, err := DecodeBytes([]byte{0xff, 0xff, 0, 0, 0, 0})
	require.NoError(t, err)
	unknown, ok := msg.(UnknownMsg)
	require.True(t, ok)
	require.Equal(t, uint16(0xffff), unknown.Tag())
}

func TestTokenEqual(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	require.True(t, a.Equal(a))
	require.False(t, a.Equal(b))
}
