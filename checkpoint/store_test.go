package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swapd.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("ns", []byte("key"), []byte("value")))

	got, err := store.Get("ns", []byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestStoreGetMissingKeyReturnsNil(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get("ns", []byte("absent"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("ns", []byte("key"), []byte("value")))
	require.NoError(t, store.Delete("ns", []byte("key")))

	got, err := store.Get("ns", []byte("key"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoreForEach(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("ns", []byte("a"), []byte("1")))
	require.NoError(t, store.Put("ns", []byte("b"), []byte("2")))

	seen := map[string]string{}
	err := store.ForEach("ns", func(key, value []byte) error {
		seen[string(key)] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}

func TestStoreNamespacesAreIsolated(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("ns1", []byte("key"), []byte("ns1-value")))
	require.NoError(t, store.Put("ns2", []byte("key"), []byte("ns2-value")))

	got1, err := store.Get("ns1", []byte("key"))
	require.NoError(t, err)
	got2, err := store.Get("ns2", []byte("key"))
	require.NoError(t, err)

	require.Equal(t, []byte("ns1-value"), got1)
	require.Equal(t, []byte("ns2-value"), got2)
}
