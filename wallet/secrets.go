package wallet

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"

	"github.com/farcasterd/swapd/checkpoint"
)

const (
	counterNamespace = "wallet"
	counterKey       = "wallet_counter"
)

// NodeSecrets holds the daemon's long-term identity: the peer-connection
// secret key, and the seed from which every per-swap KeyManager is
// deterministically derived. The wallet counter is the only piece of
// mutable state here, and it is checkpointed to disk before every reply
// that exposes a value derived from it, so a crash can never replay an
// already-handed-out derivation index.
type NodeSecrets struct {
	walletSeed     [32]byte
	peerdSecretKey [32]byte
	nodeID         [33]byte

	store   *checkpoint.Store
	counter uint32
}

// NewNodeSecrets derives peerdSecretKey's public key as this node's id and
// loads the wallet counter's last checkpointed value from store (0 if this
// is a fresh node).
func NewNodeSecrets(walletSeed, peerdSecretKey [32]byte, store *checkpoint.Store) (*NodeSecrets, error) {
	_, pub := secp256k1.PrivKeyFromBytes(peerdSecretKey[:])
	var nodeID [33]byte
	copy(nodeID[:], pub.SerializeCompressed())

	ns := &NodeSecrets{
		walletSeed:     walletSeed,
		peerdSecretKey: peerdSecretKey,
		nodeID:         nodeID,
		store:          store,
	}

	raw, err := store.Get(counterNamespace, []byte(counterKey))
	if err != nil {
		return nil, fmt.Errorf("wallet: loading wallet counter: %w", err)
	}
	if len(raw) == 4 {
		ns.counter = binary.LittleEndian.Uint32(raw)
	}
	return ns, nil
}

// NodeID returns the compressed secp256k1 public key identifying this node
// to its peers.
func (n *NodeSecrets) NodeID() [33]byte { return n.nodeID }

// PeerSecretKey returns the long-term secret key used to authenticate
// peer-to-peer connections.
func (n *NodeSecrets) PeerSecretKey() [32]byte { return n.peerdSecretKey }

// UnmarshalKeyManager reconstructs the KeyManager a blob (as handed to
// Farcaster in bus.SwapKeys) names, without ever exposing walletSeed itself
// outside this package.
func (n *NodeSecrets) UnmarshalKeyManager(blob []byte, testnet bool) (*KeyManager, error) {
	return UnmarshalKeyManager(blob, n.walletSeed, testnet)
}

// NextWalletIndex durably increments and returns the wallet counter. The
// new value is fsync'd to disk before this returns, so the caller's
// subsequent key derivation is never replayed across a crash: a restart
// reloads the checkpointed value and continues from the index after it.
func (n *NodeSecrets) NextWalletIndex() (uint32, error) {
	n.counter++
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], n.counter)
	if err := n.store.Put(counterNamespace, []byte(counterKey), raw[:]); err != nil {
		n.counter--
		return 0, fmt.Errorf("wallet: checkpointing wallet counter: %w", err)
	}
	return n.counter, nil
}
