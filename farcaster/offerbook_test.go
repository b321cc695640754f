package farcaster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farcasterd/swapd/bus"
)

func TestOfferBookLifecycle(t *testing.T) {
	book := newOfferBook()
	require.Equal(t, 0, book.count())

	tempID, err := bus.NewTempSwapId()
	require.NoError(t, err)
	peer := bus.PeerId("127.0.0.1:9999")
	offer := bus.PublicOffer{ArbitratingAmt: 1000}

	book.open(tempID, offer, peer)
	require.Equal(t, 1, book.count())

	entry, ok := book.get(tempID)
	require.True(t, ok)
	require.Equal(t, offer, entry.offer)
	require.Equal(t, peer, entry.peer)
	require.True(t, entry.swapId.IsZero())

	swapID := bus.DeriveSwapId(tempID)
	book.promote(tempID, swapID)

	gotTemp, gotEntry, ok := book.bySwapId(swapID)
	require.True(t, ok)
	require.Equal(t, tempID, gotTemp)
	require.Equal(t, swapID, gotEntry.swapId)
	require.Equal(t, []bus.SwapId{swapID}, book.swapIds())

	book.close(tempID)
	require.Equal(t, 0, book.count())
	_, ok = book.get(tempID)
	require.False(t, ok)
}

func TestOfferBookBySwapIdMiss(t *testing.T) {
	book := newOfferBook()
	_, _, ok := book.bySwapId(bus.SwapId{1})
	require.False(t, ok)
}
