// Package config loads farcaster.toml, the daemon's single configuration
// file, into the typed structures the rest of swapd is built around.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/decred/dcrd/rpcclient/v7"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/farcaster"
)

const DefaultConfigFilename = "farcaster.toml"

// BitcoinConfig names the Bitcoin Core RPC endpoint a Bitcoin Syncer
// connects to, and which Network it watches.
type BitcoinConfig struct {
	RPCHost string `toml:"rpc_host"`
	RPCUser string `toml:"rpc_user"`
	RPCPass string `toml:"rpc_pass"`
	Network string `toml:"network"`
}

func (c BitcoinConfig) connConfig() rpcclient.ConnConfig {
	return rpcclient.ConnConfig{
		Host:         c.RPCHost,
		User:         c.RPCUser,
		Pass:         c.RPCPass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
}

// MoneroConfig names the monerod and monero-wallet-rpc endpoints a Monero
// Syncer connects to.
type MoneroConfig struct {
	DaemonURL string `toml:"daemon_url"`
	WalletURL string `toml:"wallet_url"`
	Network   string `toml:"network"`
}

// PeerConfig controls the P2P transport: the address to listen on (empty
// disables inbound) and whether to attempt UPnP/NAT-PMP port mapping.
type PeerConfig struct {
	ListenAddr string `toml:"listen_addr"`
	EnableNAT  bool   `toml:"enable_nat"`
}

// Config is the top-level shape of farcaster.toml.
type Config struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	LogLevel string `toml:"log_level"`
	Testnet  bool   `toml:"testnet"`

	Bitcoin BitcoinConfig `toml:"bitcoin"`
	Monero  MoneroConfig  `toml:"monero"`
	Peer    PeerConfig    `toml:"peer"`
}

// DefaultConfig returns the configuration used when no farcaster.toml is
// present: data under ~/.swapd, mainnet Bitcoin Core and local monero
// defaults, no inbound listener.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".swapd")
	return Config{
		DataDir:  dataDir,
		LogDir:   filepath.Join(dataDir, "logs"),
		LogLevel: "info",
		Bitcoin: BitcoinConfig{
			RPCHost: "localhost:8332",
			Network: "mainnet",
		},
		Monero: MoneroConfig{
			DaemonURL: "http://localhost:18081",
			WalletURL: "http://localhost:18082",
			Network:   "mainnet",
		},
	}
}

// Load reads and parses path, merging it over DefaultConfig() so a
// farcaster.toml only needs to name the fields it overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Network returns the bus.Network the Bitcoin leg is configured for.
func (c Config) Network() bus.Network {
	if c.Testnet || c.Bitcoin.Network == "testnet" {
		return bus.NetworkTestnet
	}
	return bus.NetworkMainnet
}

// ChainEndpoints adapts the parsed config into the connection bundle
// farcaster.Supervisor needs to stand up a Syncer on demand.
func (c Config) ChainEndpoints() farcaster.ChainEndpoints {
	return farcaster.ChainEndpoints{
		BitcoinRPC:      c.Bitcoin.connConfig(),
		MoneroDaemonURL: c.Monero.DaemonURL,
		MoneroWalletURL: c.Monero.WalletURL,
	}
}
