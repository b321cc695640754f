package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyManagerMarshalRoundTrip(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}

	km, err := NewKeyManager(seed, 42, false)
	require.NoError(t, err)
	require.Equal(t, uint32(42), km.Index)

	blob := km.Marshal()
	require.Len(t, blob, 4)

	restored, err := UnmarshalKeyManager(blob, seed, false)
	require.NoError(t, err)
	require.Equal(t, km.Index, restored.Index)
	require.Equal(t, km.BitcoinSpendKey().Serialize(), restored.BitcoinSpendKey().Serialize())
	require.Equal(t, km.BitcoinRefundKey().Serialize(), restored.BitcoinRefundKey().Serialize())
}

// The HD version bytes only affect string serialization of an extended
// key, never the derived scalar, so the same seed and index must derive
// identical key material whether or not testnet is set.
func TestKeyManagerNetworkOnlyAffectsSerialization(t *testing.T) {
	var seed [32]byte
	seed[0] = 1

	mainnet, err := NewKeyManager(seed, 1, false)
	require.NoError(t, err)
	testnet, err := NewKeyManager(seed, 1, true)
	require.NoError(t, err)

	require.Equal(t, mainnet.BitcoinSpendKey().Serialize(), testnet.BitcoinSpendKey().Serialize())
}

func TestKeyManagerIndexChangesKeys(t *testing.T) {
	var seed [32]byte
	seed[0] = 1

	a, err := NewKeyManager(seed, 1, false)
	require.NoError(t, err)
	b, err := NewKeyManager(seed, 2, false)
	require.NoError(t, err)

	require.NotEqual(t, a.BitcoinSpendKey().Serialize(), b.BitcoinSpendKey().Serialize())
}

func TestUnmarshalKeyManagerRejectsShortBlob(t *testing.T) {
	var seed [32]byte
	_, err := UnmarshalKeyManager([]byte{1, 2, 3}, seed, false)
	require.Error(t, err)
}
