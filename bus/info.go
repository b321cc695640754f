package bus

import (
	"bytes"
	"time"
)

// Info message type tags, matching the examples given in spec section 6
// (GetInfo=100) and extending the numbering scheme for the rest of the
// read-only introspection family.
const (
	TagGetInfo    uint16 = 100
	TagListPeers  uint16 = 101
	TagListSwaps  uint16 = 102
	TagListTasks  uint16 = 103
	TagProgress   uint16 = 1002
	TagSuccess    uint16 = 1001
	TagFailure    uint16 = 1000
	TagNodeInfo   uint16 = 1100
	TagPeerInfo   uint16 = 1101
	TagSwapInfo   uint16 = 1102
	TagPeerList   uint16 = 1103
	TagSwapList   uint16 = 1104
	TagSyncerInfo uint16 = 1105
	TagTaskList   uint16 = 1106
)

// InfoMsg is the family of read-only introspection requests and the
// terminal trio of responses (Progress/Success/Failure) every request
// eventually resolves to.
type InfoMsg interface {
	BusMsg
	isInfoMsg()
}

type infoBase struct{}

func (infoBase) Family() Family { return FamilyInfo }
func (infoBase) isInfoMsg()     {}

// GetInfo requests a NodeInfo or SyncerInfo projection depending on who
// answers it.
type GetInfo struct{ infoBase }

func (GetInfo) Tag() uint16                     { return TagGetInfo }
func (GetInfo) MarshalPayload() ([]byte, error) { return nil, nil }

func init() {
	registerTag(TagGetInfo, func([]byte) (BusMsg, error) { return GetInfo{}, nil })
}

// ListPeers requests the list of known/connected peer addresses.
type ListPeers struct{ infoBase }

func (ListPeers) Tag() uint16                     { return TagListPeers }
func (ListPeers) MarshalPayload() ([]byte, error) { return nil, nil }

func init() {
	registerTag(TagListPeers, func([]byte) (BusMsg, error) { return ListPeers{}, nil })
}

// ListSwaps requests the list of active SwapIds.
type ListSwaps struct{ infoBase }

func (ListSwaps) Tag() uint16                     { return TagListSwaps }
func (ListSwaps) MarshalPayload() ([]byte, error) { return nil, nil }

func init() {
	registerTag(TagListSwaps, func([]byte) (BusMsg, error) { return ListSwaps{}, nil })
}

// ListTasks requests the set of tasks a Syncer currently has outstanding.
type ListTasks struct{ infoBase }

func (ListTasks) Tag() uint16                     { return TagListTasks }
func (ListTasks) MarshalPayload() ([]byte, error) { return nil, nil }

func init() {
	registerTag(TagListTasks, func([]byte) (BusMsg, error) { return ListTasks{}, nil })
}

// Progress is an intermediate, non-terminal status update for a long-
// running CLI request.
type Progress struct {
	infoBase
	Message string
}

func (m Progress) Tag() uint16 { return TagProgress }
func (m Progress) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putString(&buf, m.Message)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagProgress, func(b []byte) (BusMsg, error) {
		s, err := readString(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		return Progress{Message: s}, nil
	})
}

// OptionDetails is an optional human-readable success payload; an empty
// Detail means "silent success", matching the original's OptionDetails
// wrapper.
type OptionDetails struct {
	Detail string
	Set    bool
}

// WithDetail builds a populated OptionDetails.
func WithDetail(s string) OptionDetails { return OptionDetails{Detail: s, Set: true} }

// NoDetail builds an empty OptionDetails.
func NoDetail() OptionDetails { return OptionDetails{} }

func (o OptionDetails) String() string {
	if !o.Set {
		return ""
	}
	return o.Detail
}

// Success is the terminal "everything worked" response, carrying an
// optional detail string.
type Success struct {
	infoBase
	Details OptionDetails
}

func (m Success) Tag() uint16 { return TagSuccess }
func (m Success) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	if m.Details.Set {
		buf.WriteByte(1)
		putString(&buf, m.Details.Detail)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagSuccess, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		set, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if set == 0 {
			return Success{Details: NoDetail()}, nil
		}
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return Success{Details: WithDetail(s)}, nil
	})
}

// Failure is the terminal "something went wrong" response. Code mirrors the
// ErrorKind that produced it; Info is a human-readable detail string.
type Failure struct {
	infoBase
	Code uint16
	Info string
}

func (m Failure) Tag() uint16 { return TagFailure }
func (m Failure) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	var codeBuf [2]byte
	codeBuf[0] = byte(m.Code)
	codeBuf[1] = byte(m.Code >> 8)
	buf.Write(codeBuf[:])
	putString(&buf, m.Info)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagFailure, func(b []byte) (BusMsg, error) {
		if len(b) < 2 {
			return nil, errShortBuffer
		}
		code := uint16(b[0]) | uint16(b[1])<<8
		r := bytes.NewReader(b[2:])
		info, err := readString(r)
		if err != nil {
			return nil, err
		}
		return Failure{Code: code, Info: info}, nil
	})
}

// NodeInfo is the read-only projection of the daemon as a whole.
type NodeInfo struct {
	infoBase
	NodeId  [33]byte
	Listens []string
	Uptime  time.Duration
	Since   int64
	Peers   []string
	Swaps   []SwapId
}

func (m NodeInfo) Tag() uint16 { return TagNodeInfo }
func (m NodeInfo) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(m.NodeId[:])
	putUint32(&buf, uint32(len(m.Listens)))
	for _, l := range m.Listens {
		putString(&buf, l)
	}
	putUint64(&buf, uint64(m.Uptime))
	putUint64(&buf, uint64(m.Since))
	putUint32(&buf, uint32(len(m.Peers)))
	for _, p := range m.Peers {
		putString(&buf, p)
	}
	putUint32(&buf, uint32(len(m.Swaps)))
	for _, s := range m.Swaps {
		buf.Write(s[:])
	}
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagNodeInfo, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		var m NodeInfo
		if _, err := readFull(r, m.NodeId[:]); err != nil {
			return nil, err
		}
		nListens, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < nListens; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			m.Listens = append(m.Listens, s)
		}
		uptime, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Uptime = time.Duration(uptime)
		since, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Since = int64(since)
		nPeers, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < nPeers; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			m.Peers = append(m.Peers, s)
		}
		nSwaps, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < nSwaps; i++ {
			var id SwapId
			if _, err := readFull(r, id[:]); err != nil {
				return nil, err
			}
			m.Swaps = append(m.Swaps, id)
		}
		return m, nil
	})
}

// PeerInfo is the read-only projection of one live or known peer
// connection.
type PeerInfo struct {
	infoBase
	RemoteAddr     string
	LocalAddr      string
	Uptime         time.Duration
	Since          int64
	MessagesSent   uint64
	MessagesRecv   uint64
	Connected      bool
	AwaitsPong     bool
}

func (m PeerInfo) Tag() uint16 { return TagPeerInfo }
func (m PeerInfo) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putString(&buf, m.RemoteAddr)
	putString(&buf, m.LocalAddr)
	putUint64(&buf, uint64(m.Uptime))
	putUint64(&buf, uint64(m.Since))
	putUint64(&buf, m.MessagesSent)
	putUint64(&buf, m.MessagesRecv)
	if m.Connected {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if m.AwaitsPong {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagPeerInfo, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		var m PeerInfo
		var err error
		if m.RemoteAddr, err = readString(r); err != nil {
			return nil, err
		}
		if m.LocalAddr, err = readString(r); err != nil {
			return nil, err
		}
		uptime, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Uptime = time.Duration(uptime)
		since, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Since = int64(since)
		if m.MessagesSent, err = readUint64(r); err != nil {
			return nil, err
		}
		if m.MessagesRecv, err = readUint64(r); err != nil {
			return nil, err
		}
		connected, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		m.Connected = connected == 1
		awaits, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		m.AwaitsPong = awaits == 1
		return m, nil
	})
}

// Lifecycle mirrors swap.Lifecycle without importing package swap (which
// itself imports bus); see package swap for the authoritative state
// transition table.
type Lifecycle uint8

const (
	LifecycleProposed Lifecycle = iota
	LifecycleStarted
	LifecycleCommitmentExchanged
	LifecycleRevealed
	LifecycleFunded
	LifecycleLocked
	LifecycleBuyBroadcast
	LifecycleCancelBroadcast
	LifecycleRefunded
	LifecycleCompleted
	LifecycleAborted
)

func (l Lifecycle) String() string {
	names := [...]string{
		"Proposed", "Started", "CommitmentExchanged", "Revealed",
		"Funded", "Locked", "BuyBroadcast", "CancelBroadcast",
		"Refunded", "Completed", "Aborted",
	}
	if int(l) < len(names) {
		return names[l]
	}
	return "Unknown"
}

// SwapInfo is the read-only projection of one Swap service.
type SwapInfo struct {
	infoBase
	SwapId         SwapId
	TempSwapId     TempSwapId
	State          Lifecycle
	ArbitratingAmt uint64
	AccordantAmt   uint64
	Uptime         time.Duration
	Since          int64
	RemotePeer     string
}

func (m SwapInfo) Tag() uint16 { return TagSwapInfo }
func (m SwapInfo) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(m.SwapId[:])
	buf.Write(m.TempSwapId[:])
	buf.WriteByte(byte(m.State))
	putUint64(&buf, m.ArbitratingAmt)
	putUint64(&buf, m.AccordantAmt)
	putUint64(&buf, uint64(m.Uptime))
	putUint64(&buf, uint64(m.Since))
	putString(&buf, m.RemotePeer)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagSwapInfo, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		var m SwapInfo
		if _, err := readFull(r, m.SwapId[:]); err != nil {
			return nil, err
		}
		if _, err := readFull(r, m.TempSwapId[:]); err != nil {
			return nil, err
		}
		state, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		m.State = Lifecycle(state)
		if m.ArbitratingAmt, err = readUint64(r); err != nil {
			return nil, err
		}
		if m.AccordantAmt, err = readUint64(r); err != nil {
			return nil, err
		}
		uptime, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Uptime = time.Duration(uptime)
		since, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Since = int64(since)
		if m.RemotePeer, err = readString(r); err != nil {
			return nil, err
		}
		return m, nil
	})
}

// PeerList answers ListPeers.
type PeerList struct {
	infoBase
	Addrs []string
}

func (m PeerList) Tag() uint16 { return TagPeerList }
func (m PeerList) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putUint32(&buf, uint32(len(m.Addrs)))
	for _, a := range m.Addrs {
		putString(&buf, a)
	}
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagPeerList, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		m := PeerList{Addrs: make([]string, 0, n)}
		for i := uint32(0); i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			m.Addrs = append(m.Addrs, s)
		}
		return m, nil
	})
}

// SwapList answers ListSwaps.
type SwapList struct {
	infoBase
	Ids []SwapId
}

func (m SwapList) Tag() uint16 { return TagSwapList }
func (m SwapList) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putUint32(&buf, uint32(len(m.Ids)))
	for _, id := range m.Ids {
		buf.Write(id[:])
	}
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagSwapList, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		m := SwapList{Ids: make([]SwapId, 0, n)}
		for i := uint32(0); i < n; i++ {
			var id SwapId
			if _, err := readFull(r, id[:]); err != nil {
				return nil, err
			}
			m.Ids = append(m.Ids, id)
		}
		return m, nil
	})
}

// SyncerInfo answers a Syncer's GetInfo.
type SyncerInfo struct {
	infoBase
	Chain  Chain
	Net    Network
	Uptime time.Duration
	Since  int64
	NTasks uint32
}

func (m SyncerInfo) Tag() uint16 { return TagSyncerInfo }
func (m SyncerInfo) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Chain))
	buf.WriteByte(byte(m.Net))
	putUint64(&buf, uint64(m.Uptime))
	putUint64(&buf, uint64(m.Since))
	putUint32(&buf, m.NTasks)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagSyncerInfo, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		var m SyncerInfo
		c, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		m.Chain = Chain(c)
		n, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		m.Net = Network(n)
		uptime, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Uptime = time.Duration(uptime)
		since, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		m.Since = int64(since)
		if m.NTasks, err = readUint32(r); err != nil {
			return nil, err
		}
		return m, nil
	})
}

// TaskList answers a Syncer's ListTasks with the task ids it has
// outstanding; the task bodies themselves live in package syncer, so only
// identifying information crosses back over Info.
type TaskList struct {
	infoBase
	TaskIds []uint32
}

func (m TaskList) Tag() uint16 { return TagTaskList }
func (m TaskList) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putUint32(&buf, uint32(len(m.TaskIds)))
	for _, id := range m.TaskIds {
		putUint32(&buf, id)
	}
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagTaskList, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		m := TaskList{TaskIds: make([]uint32, 0, n)}
		for i := uint32(0); i < n; i++ {
			id, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			m.TaskIds = append(m.TaskIds, id)
		}
		return m, nil
	})
}

var errShortBuffer = bufferTooShort{}

type bufferTooShort struct{}

func (bufferTooShort) Error() string { return "bus: buffer too short" }
