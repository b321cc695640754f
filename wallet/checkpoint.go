package wallet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	swapd "github.com/farcasterd/swapd"
	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
)

const checkpointNamespace = "swapwallet"

// CheckpointWallet is the durable, per-swap snapshot of wallet-side state:
// the KeyManager's derivation index (everything else about it is
// deterministic from seed+index, so nothing more needs to survive a crash)
// plus the Monero subaddress this swap's accordant leg pays into. It
// encodes as two length-delimited segments, one per field, so a future
// field can be appended without invalidating already-written checkpoints --
// the same self-delimiting segment-at-a-time shape the original
// implementation's strict encoding used.
type CheckpointWallet struct {
	KeyManagerBlob []byte
	XMRAddress     string
}

func (w CheckpointWallet) encode() []byte {
	var buf bytes.Buffer
	writeSegment(&buf, w.KeyManagerBlob)
	writeSegment(&buf, []byte(w.XMRAddress))
	return buf.Bytes()
}

func decodeCheckpointWallet(b []byte) (CheckpointWallet, error) {
	r := bytes.NewReader(b)
	keyBlob, err := readSegment(r)
	if err != nil {
		return CheckpointWallet{}, swapd.NewDataIntegrity(fmt.Sprintf("decoding key manager segment: %v", err))
	}
	addr, err := readSegment(r)
	if err != nil {
		return CheckpointWallet{}, swapd.NewDataIntegrity(fmt.Sprintf("decoding xmr address segment: %v", err))
	}
	return CheckpointWallet{KeyManagerBlob: keyBlob, XMRAddress: string(addr)}, nil
}

func writeSegment(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

func readSegment(r *bytes.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(length[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveCheckpoint durably writes w under id, fsync'd before returning.
func SaveCheckpoint(store *checkpoint.Store, id bus.SwapId, w CheckpointWallet) error {
	return store.Put(checkpointNamespace, id[:], w.encode())
}

// LoadCheckpoint reads back the wallet checkpoint for id, if one exists.
func LoadCheckpoint(store *checkpoint.Store, id bus.SwapId) (CheckpointWallet, bool, error) {
	raw, err := store.Get(checkpointNamespace, id[:])
	if err != nil {
		return CheckpointWallet{}, false, err
	}
	if raw == nil {
		return CheckpointWallet{}, false, nil
	}
	w, err := decodeCheckpointWallet(raw)
	return w, true, err
}

// DeleteCheckpoint removes a swap's wallet checkpoint once the swap reaches
// a terminal Lifecycle state.
func DeleteCheckpoint(store *checkpoint.Store, id bus.SwapId) error {
	return store.Delete(checkpointNamespace, id[:])
}
