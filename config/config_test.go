package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farcasterd/swapd/bus"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farcaster.toml")
	contents := `
testnet = true
log_level = "debug"

[bitcoin]
rpc_host = "127.0.0.1:18332"
rpc_user = "alice"
rpc_pass = "hunter2"
network = "testnet"

[monero]
daemon_url = "http://127.0.0.1:28081"
wallet_url = "http://127.0.0.1:28082"

[peer]
listen_addr = "0.0.0.0:9999"
enable_nat = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.True(t, cfg.Testnet)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "127.0.0.1:18332", cfg.Bitcoin.RPCHost)
	require.Equal(t, "alice", cfg.Bitcoin.RPCUser)
	require.Equal(t, "http://127.0.0.1:28081", cfg.Monero.DaemonURL)
	require.Equal(t, "0.0.0.0:9999", cfg.Peer.ListenAddr)
	require.True(t, cfg.Peer.EnableNAT)

	// Fields untouched by the file keep DefaultConfig()'s values.
	require.Equal(t, DefaultConfig().DataDir, cfg.DataDir)
}

func TestNetworkReflectsTestnetFlagOrBitcoinNetwork(t *testing.T) {
	require.Equal(t, bus.NetworkMainnet, DefaultConfig().Network())

	cfg := DefaultConfig()
	cfg.Testnet = true
	require.Equal(t, bus.NetworkTestnet, cfg.Network())

	cfg = DefaultConfig()
	cfg.Bitcoin.Network = "testnet"
	require.Equal(t, bus.NetworkTestnet, cfg.Network())
}

func TestChainEndpointsAdaptsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bitcoin.RPCHost = "localhost:8332"
	cfg.Bitcoin.RPCUser = "user"
	cfg.Bitcoin.RPCPass = "pass"

	endpoints := cfg.ChainEndpoints()
	require.Equal(t, "localhost:8332", endpoints.BitcoinRPC.Host)
	require.Equal(t, "user", endpoints.BitcoinRPC.User)
	require.Equal(t, "pass", endpoints.BitcoinRPC.Pass)
	require.True(t, endpoints.BitcoinRPC.HTTPPostMode)
	require.True(t, endpoints.BitcoinRPC.DisableTLS)
	require.Equal(t, cfg.Monero.DaemonURL, endpoints.MoneroDaemonURL)
	require.Equal(t, cfg.Monero.WalletURL, endpoints.MoneroWalletURL)
}
