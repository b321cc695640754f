package bus

import (
	"encoding/binary"
	"fmt"

	"github.com/tv42/zbase32"
)

// Chain is a chain tag used by Syncer's ServiceId variant; kept distinct
// from the Bitcoin/Monero oracle implementations in package syncer so bus
// stays free of chain-client dependencies.
type Chain uint8

const (
	// ChainBitcoin tags the Bitcoin syncer.
	ChainBitcoin Chain = iota
	// ChainMonero tags the Monero syncer.
	ChainMonero
)

func (c Chain) String() string {
	switch c {
	case ChainBitcoin:
		return "bitcoin"
	case ChainMonero:
		return "monero"
	default:
		return "chain(unknown)"
	}
}

// Network is the chain network a Syncer instance is watching.
type Network uint8

const (
	// NetworkMainnet is production chain state.
	NetworkMainnet Network = iota
	// NetworkTestnet is the public test network.
	NetworkTestnet
	// NetworkLocal is a regtest/local network used in integration tests.
	NetworkLocal
)

func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkTestnet:
		return "testnet"
	case NetworkLocal:
		return "local"
	default:
		return "network(unknown)"
	}
}

// idKind tags which ServiceId variant is held; ServiceId is a closed tagged
// union over six concrete endpoint kinds, mirroring the ServiceId enum in
// spec section 3.
type idKind uint8

const (
	idFarcaster idKind = iota
	idWallet
	idPeer
	idSwap
	idSyncer
	idClient
)

// ServiceId addresses one endpoint on the bus. Equality is structural: two
// ServiceIds compare equal exactly when their kind and payload match, which
// Go's comparable struct semantics give us for free as long as every field
// is itself comparable.
type ServiceId struct {
	kind idKind

	// peerAddr is set iff kind == idPeer.
	peerAddr string

	// swapId is set iff kind == idSwap.
	swapId SwapId

	// chain/network are set iff kind == idSyncer.
	chain   Chain
	network Network

	// clientNonce is set iff kind == idClient.
	clientNonce uint64
}

// FarcasterId addresses the singleton supervisor.
func FarcasterId() ServiceId { return ServiceId{kind: idFarcaster} }

// WalletId addresses the singleton key-custody service.
func WalletId() ServiceId { return ServiceId{kind: idWallet} }

// PeerId addresses the Peer service owning the connection to remoteAddr.
func PeerId(remoteAddr string) ServiceId {
	return ServiceId{kind: idPeer, peerAddr: remoteAddr}
}

// SwapServiceId addresses the Swap service running swap id.
func SwapServiceId(id SwapId) ServiceId {
	return ServiceId{kind: idSwap, swapId: id}
}

// SyncerId addresses the Syncer for the given chain x network pair.
func SyncerId(chain Chain, network Network) ServiceId {
	return ServiceId{kind: idSyncer, chain: chain, network: network}
}

// ClientId addresses an external CLI/RPC client identified by a per-
// connection nonce.
func ClientId(nonce uint64) ServiceId {
	return ServiceId{kind: idClient, clientNonce: nonce}
}

// IsFarcaster reports whether id addresses the supervisor.
func (id ServiceId) IsFarcaster() bool { return id.kind == idFarcaster }

// IsWallet reports whether id addresses the wallet service.
func (id ServiceId) IsWallet() bool { return id.kind == idWallet }

// IsPeer reports whether id addresses a Peer service, and if so its remote
// address.
func (id ServiceId) IsPeer() (string, bool) {
	return id.peerAddr, id.kind == idPeer
}

// IsSwap reports whether id addresses a Swap service, and if so its SwapId.
func (id ServiceId) IsSwap() (SwapId, bool) {
	return id.swapId, id.kind == idSwap
}

// IsSyncer reports whether id addresses a Syncer, and if so its chain and
// network.
func (id ServiceId) IsSyncer() (Chain, Network, bool) {
	return id.chain, id.network, id.kind == idSyncer
}

// IsClient reports whether id addresses an external client, and if so its
// nonce.
func (id ServiceId) IsClient() (uint64, bool) {
	return id.clientNonce, id.kind == idClient
}

// String renders a human-readable identity, used in logs and CLI output.
func (id ServiceId) String() string {
	switch id.kind {
	case idFarcaster:
		return "farcasterd"
	case idWallet:
		return "walletd"
	case idPeer:
		return fmt.Sprintf("peerd<%s>", id.peerAddr)
	case idSwap:
		return fmt.Sprintf("swapd<%s>", id.swapId.String())
	case idSyncer:
		return fmt.Sprintf("syncerd<%s,%s>", id.chain, id.network)
	case idClient:
		return fmt.Sprintf("client<%s>", zbase32.EncodeToString(
			encodeUint64(id.clientNonce)),
		)
	default:
		return "serviceid(unknown)"
	}
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// MarshalBinary produces the stable binary address form used on the wire:
// one kind byte followed by the variant's fixed-width payload.
func (id ServiceId) MarshalBinary() ([]byte, error) {
	switch id.kind {
	case idFarcaster, idWallet:
		return []byte{byte(id.kind)}, nil
	case idPeer:
		addr := []byte(id.peerAddr)
		out := make([]byte, 0, 1+4+len(addr))
		out = append(out, byte(id.kind))
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(addr)))
		out = append(out, lenBuf[:]...)
		out = append(out, addr...)
		return out, nil
	case idSwap:
		out := make([]byte, 1+32)
		out[0] = byte(id.kind)
		copy(out[1:], id.swapId[:])
		return out, nil
	case idSyncer:
		return []byte{byte(id.kind), byte(id.chain), byte(id.network)}, nil
	case idClient:
		out := make([]byte, 1+8)
		out[0] = byte(id.kind)
		binary.LittleEndian.PutUint64(out[1:], id.clientNonce)
		return out, nil
	default:
		return nil, fmt.Errorf("bus: unknown ServiceId kind %d", id.kind)
	}
}

// UnmarshalServiceId decodes the stable binary address form produced by
// MarshalBinary, returning the number of bytes consumed.
func UnmarshalServiceId(b []byte) (ServiceId, int, error) {
	if len(b) < 1 {
		return ServiceId{}, 0, fmt.Errorf("bus: empty ServiceId")
	}
	kind := idKind(b[0])
	switch kind {
	case idFarcaster, idWallet:
		return ServiceId{kind: kind}, 1, nil
	case idPeer:
		if len(b) < 5 {
			return ServiceId{}, 0, fmt.Errorf("bus: truncated peer ServiceId")
		}
		n := binary.LittleEndian.Uint32(b[1:5])
		if len(b) < 5+int(n) {
			return ServiceId{}, 0, fmt.Errorf("bus: truncated peer address")
		}
		addr := string(b[5 : 5+n])
		return PeerId(addr), 5 + int(n), nil
	case idSwap:
		if len(b) < 33 {
			return ServiceId{}, 0, fmt.Errorf("bus: truncated swap ServiceId")
		}
		var id SwapId
		copy(id[:], b[1:33])
		return SwapServiceId(id), 33, nil
	case idSyncer:
		if len(b) < 3 {
			return ServiceId{}, 0, fmt.Errorf("bus: truncated syncer ServiceId")
		}
		return SyncerId(Chain(b[1]), Network(b[2])), 3, nil
	case idClient:
		if len(b) < 9 {
			return ServiceId{}, 0, fmt.Errorf("bus: truncated client ServiceId")
		}
		nonce := binary.LittleEndian.Uint64(b[1:9])
		return ClientId(nonce), 9, nil
	default:
		return ServiceId{}, 0, fmt.Errorf("bus: unknown ServiceId kind %d", kind)
	}
}
