package farcaster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddrBookConnectedSet(t *testing.T) {
	book := newAddrBook(t.TempDir())
	book.start()
	defer book.stop()

	require.Empty(t, book.connectedAddrs())

	book.markConnected("127.0.0.1:1")
	book.markConnected("127.0.0.1:2")
	require.ElementsMatch(t, []string{"127.0.0.1:1", "127.0.0.1:2"}, book.connectedAddrs())

	book.markDisconnected("127.0.0.1:1")
	require.Equal(t, []string{"127.0.0.1:2"}, book.connectedAddrs())
}
