package wallet

import (
	"bytes"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/decred/dcrd/hdkeychain/v3"

	"github.com/farcasterd/swapd/wallet/mcrypto"
)

// hdNetParams implements hdkeychain/v3's small NetworkParams interface
// directly, rather than depending on a full chaincfg.Params -- there is
// exactly one thing a KeyManager needs from "network": the HD extended key
// version bytes to stamp derived keys with.
type hdNetParams struct {
	privVersion [4]byte
	pubVersion  [4]byte
}

func (p hdNetParams) HDPrivKeyVersion() [4]byte { return p.privVersion }
func (p hdNetParams) HDPubKeyVersion() [4]byte  { return p.pubVersion }

// Standard BIP-32 mainnet/testnet version bytes (xprv/xpub, tprv/tpub),
// picked by NewKeyManager's testnet flag. They only change the serialized
// extended-key prefix; the derived key material is the same on both.
var (
	hdParamsMainnet = hdNetParams{
		privVersion: [4]byte{0x04, 0x88, 0xad, 0xe4},
		pubVersion:  [4]byte{0x04, 0x88, 0xb2, 0x1e},
	}
	hdParamsTestnet = hdNetParams{
		privVersion: [4]byte{0x04, 0x35, 0x83, 0x94},
		pubVersion:  [4]byte{0x04, 0x35, 0x87, 0xcf},
	}
)

// KeyManager holds every key material a single swap needs on its Bitcoin
// and Monero legs, deterministically derived from the node's wallet seed at
// a single hardened index so it never needs to be derived again: the index
// alone, recorded in CheckpointWallet, is enough to reconstruct it.
type KeyManager struct {
	Index uint32

	btcSpend  *secp256k1.PrivateKey
	btcPublic *secp256k1.PrivateKey // refund/punish/cancel sub-keys share the same extended key's children

	XMRSpendKey *mcrypto.PrivateKey
	XMRViewKey  *mcrypto.PrivateKey
}

// NewKeyManager derives a fresh KeyManager from seed at the given hardened
// index, deriving its Bitcoin-side spend key off BIP-32 path m/index' and
// its Monero-side spend/view keys from the same index via mcrypto.
func NewKeyManager(seed [32]byte, index uint32, testnet bool) (*KeyManager, error) {
	params := hdParamsMainnet
	if testnet {
		params = hdParamsTestnet
	}

	master, err := hdkeychain.NewMaster(seed[:], params)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving master key: %w", err)
	}
	child, err := master.Child(hdkeychain.HardenedKeyStart + index)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving child %d: %w", index, err)
	}
	spendPriv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: extracting ec privkey: %w", err)
	}

	refundChild, err := child.Child(0)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving refund subkey: %w", err)
	}
	refundPriv, err := refundChild.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: extracting refund ec privkey: %w", err)
	}

	var xmrSeed [32]byte
	copy(xmrSeed[:], spendPriv.Serialize())
	xmrSpend, xmrView, err := mcrypto.DeriveSwapKeys(xmrSeed)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving monero keys: %w", err)
	}

	return &KeyManager{
		Index:       index,
		btcSpend:    spendPriv,
		btcPublic:   refundPriv,
		XMRSpendKey: xmrSpend,
		XMRViewKey:  xmrView,
	}, nil
}

// BitcoinSpendKey returns the private key controlling this swap's Bitcoin
// leg's primary spend path.
func (k *KeyManager) BitcoinSpendKey() *secp256k1.PrivateKey { return k.btcSpend }

// BitcoinRefundKey returns the private key controlling this swap's Bitcoin
// leg's refund/cancel path.
func (k *KeyManager) BitcoinRefundKey() *secp256k1.PrivateKey { return k.btcPublic }

// Marshal encodes the KeyManager as the opaque blob carried in bus.SwapKeys
// (see bus.SwapKeys.KeyManagerBlob): just the derivation index, since every
// other field is reconstructed deterministically from (seed, index).
func (k *KeyManager) Marshal() []byte {
	var buf bytes.Buffer
	var idx [4]byte
	idx[0] = byte(k.Index)
	idx[1] = byte(k.Index >> 8)
	idx[2] = byte(k.Index >> 16)
	idx[3] = byte(k.Index >> 24)
	buf.Write(idx[:])
	return buf.Bytes()
}

// UnmarshalKeyManager reconstructs a KeyManager from its blob form plus the
// seed it was originally derived from.
func UnmarshalKeyManager(blob []byte, seed [32]byte, testnet bool) (*KeyManager, error) {
	if len(blob) != 4 {
		return nil, fmt.Errorf("wallet: malformed key manager blob: %d bytes", len(blob))
	}
	index := uint32(blob[0]) | uint32(blob[1])<<8 | uint32(blob[2])<<16 | uint32(blob[3])<<24
	return NewKeyManager(seed, index, testnet)
}
