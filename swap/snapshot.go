package swap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
)

const snapshotNamespace = "swap"

// Snapshot is the durable, checkpointed form of a Runtime: everything
// needed to reconstruct it on restart via Resume. The KeyManager itself is
// deliberately excluded -- it is re-derived from the wallet seed and the
// KeyManager index carried in the matching wallet.CheckpointWallet, so a
// swap's checkpoint never itself holds key material.
type Snapshot struct {
	SwapId     bus.SwapId
	TempSwapId bus.TempSwapId
	Role       Role
	Offer      bus.PublicOffer
	Peer       bus.ServiceId
	State      Lifecycle
	FundingTx  [32]byte
	SettleTx   [32]byte
}

func (s Snapshot) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(s.SwapId[:])
	buf.Write(s.TempSwapId[:])
	buf.WriteByte(byte(s.Role))
	encodeOffer(&buf, s.Offer)
	peerBytes, err := s.Peer.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("swap: marshaling peer id: %w", err)
	}
	putSegment(&buf, peerBytes)
	buf.WriteByte(byte(s.State))
	buf.Write(s.FundingTx[:])
	buf.Write(s.SettleTx[:])
	return buf.Bytes(), nil
}

func decodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	r := bytes.NewReader(b)
	if _, err := r.Read(s.SwapId[:]); err != nil {
		return s, err
	}
	if _, err := r.Read(s.TempSwapId[:]); err != nil {
		return s, err
	}
	roleByte, err := r.ReadByte()
	if err != nil {
		return s, err
	}
	s.Role = Role(roleByte)
	offer, err := decodeOffer(r)
	if err != nil {
		return s, err
	}
	s.Offer = offer
	peerBytes, err := getSegment(r)
	if err != nil {
		return s, err
	}
	peer, _, err := bus.UnmarshalServiceId(peerBytes)
	if err != nil {
		return s, err
	}
	s.Peer = peer
	stateByte, err := r.ReadByte()
	if err != nil {
		return s, err
	}
	s.State = Lifecycle(stateByte)
	if _, err := r.Read(s.FundingTx[:]); err != nil {
		return s, err
	}
	if _, err := r.Read(s.SettleTx[:]); err != nil {
		return s, err
	}
	return s, nil
}

func encodeOffer(buf *bytes.Buffer, o bus.PublicOffer) {
	buf.WriteByte(byte(o.Network))
	buf.WriteByte(byte(o.ArbitratingChain))
	buf.WriteByte(byte(o.AccordantChain))
	var amts [32]byte
	binary.LittleEndian.PutUint64(amts[0:8], o.ArbitratingAmt)
	binary.LittleEndian.PutUint64(amts[8:16], o.AccordantAmt)
	binary.LittleEndian.PutUint32(amts[16:20], o.CancelTimelock)
	binary.LittleEndian.PutUint32(amts[20:24], o.PunishTimelock)
	binary.LittleEndian.PutUint64(amts[24:32], o.FeeRate)
	buf.Write(amts[:])
	if o.RoleIsAlice {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func decodeOffer(r *bytes.Reader) (bus.PublicOffer, error) {
	var o bus.PublicOffer
	nb, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.Network = bus.Network(nb)
	ac, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.ArbitratingChain = bus.Chain(ac)
	cc, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.AccordantChain = bus.Chain(cc)
	var amts [32]byte
	if _, err := r.Read(amts[:]); err != nil {
		return o, err
	}
	o.ArbitratingAmt = binary.LittleEndian.Uint64(amts[0:8])
	o.AccordantAmt = binary.LittleEndian.Uint64(amts[8:16])
	o.CancelTimelock = binary.LittleEndian.Uint32(amts[16:20])
	o.PunishTimelock = binary.LittleEndian.Uint32(amts[20:24])
	o.FeeRate = binary.LittleEndian.Uint64(amts[24:32])
	roleByte, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.RoleIsAlice = roleByte == 1
	return o, nil
}

func putSegment(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

func getSegment(r *bytes.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := r.Read(length[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(length[:])
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// SaveSnapshot durably writes snap, fsync'd before returning.
func SaveSnapshot(store *checkpoint.Store, snap Snapshot) error {
	raw, err := snap.encode()
	if err != nil {
		return err
	}
	return store.Put(snapshotNamespace, snap.SwapId[:], raw)
}

// LoadSnapshot reads back the checkpoint for id, if one exists.
func LoadSnapshot(store *checkpoint.Store, id bus.SwapId) (Snapshot, bool, error) {
	raw, err := store.Get(snapshotNamespace, id[:])
	if err != nil {
		return Snapshot{}, false, err
	}
	if raw == nil {
		return Snapshot{}, false, nil
	}
	snap, err := decodeSnapshot(raw)
	return snap, true, err
}

// DeleteSnapshot removes a swap's checkpoint once it reaches a terminal
// Lifecycle state, matching wallet.DeleteCheckpoint's cleanup of the
// paired wallet-side checkpoint under the same SwapId.
func DeleteSnapshot(store *checkpoint.Store, id bus.SwapId) error {
	return store.Delete(snapshotNamespace, id[:])
}

// ListSnapshots replays every non-terminal swap checkpoint on startup, so
// Farcaster can Resume each one instead of losing track of it.
func ListSnapshots(store *checkpoint.Store) ([]Snapshot, error) {
	var snaps []Snapshot
	err := store.ForEach(snapshotNamespace, func(_, value []byte) error {
		snap, err := decodeSnapshot(value)
		if err != nil {
			return fmt.Errorf("swap: decoding checkpoint: %w", err)
		}
		if !IsTerminal(snap.State) {
			snaps = append(snaps, snap)
		}
		return nil
	})
	return snaps, err
}
