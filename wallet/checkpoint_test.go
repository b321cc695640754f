package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"

	swapd "github.com/farcasterd/swapd"
)

func TestCheckpointWalletRoundTrip(t *testing.T) {
	w := CheckpointWallet{KeyManagerBlob: []byte{1, 2, 3, 4}, XMRAddress: "4AddrExample"}

	decoded, err := decodeCheckpointWallet(w.encode())
	require.NoError(t, err)
	require.Equal(t, w, decoded)
}

func TestDecodeCheckpointWalletRejectsTruncatedSegment(t *testing.T) {
	var buf []byte
	buf = append(buf, 10, 0, 0, 0) // claims a 10-byte key manager segment, little-endian
	buf = append(buf, 1, 2, 3)     // but only 3 bytes follow

	_, err := decodeCheckpointWallet(buf)
	require.Error(t, err)

	swapErr, ok := err.(*swapd.Error)
	require.True(t, ok, "expected *swapd.Error, got %T", err)
	require.Equal(t, swapd.ErrDataIntegrity, swapErr.Kind)
}

func TestDecodeCheckpointWalletRejectsTruncatedLengthPrefix(t *testing.T) {
	_, err := decodeCheckpointWallet([]byte{0, 0})

	swapErr, ok := err.(*swapd.Error)
	require.True(t, ok, "expected *swapd.Error, got %T", err)
	require.Equal(t, swapd.ErrDataIntegrity, swapErr.Kind)
}
