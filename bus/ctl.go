package bus

import (
	"bytes"
	"io"
)

// Ctl message type tags. Values for the variants present in spec section 6
// are kept identical to the examples given there; new variants added here
// (CreateSwapKeys, SwapKeys, GetKeys, Keys, OpenSwapWith, ...) are assigned
// free slots in the same numbering scheme.
const (
	TagHello          uint16 = 0
	TagTerminate      uint16 = 1
	TagPeerMessage    uint16 = 2
	TagListen         uint16 = 200
	TagConnectPeer    uint16 = 201
	TagPingPeer       uint16 = 202
	TagOpenSwapWith   uint16 = 203
	TagAcceptSwapFrom uint16 = 204
	TagFundSwap       uint16 = 205
	TagCreateSwapKeys uint16 = 206
	TagSwapKeys       uint16 = 207
	TagGetKeys        uint16 = 208
	TagKeys           uint16 = 209
	TagPedicide       uint16 = 210
)

// CtlMsg is the family of control-bus payloads: process/service lifecycle,
// peer wiring, key exchange, and swap setup.
type CtlMsg interface {
	BusMsg
	isCtlMsg()
}

type ctlBase struct{}

func (ctlBase) Family() Family { return FamilyCtl }
func (ctlBase) isCtlMsg()      {}

// Hello announces the sending service to the receiver. It carries no
// payload and no service replies to it: the Syncer logs it at info level,
// the Wallet at debug level, and Farcaster accepts it silently.
type Hello struct{ ctlBase }

func (Hello) Tag() uint16                      { return TagHello }
func (Hello) MarshalPayload() ([]byte, error)  { return nil, nil }

func init() {
	registerTag(TagHello, func([]byte) (BusMsg, error) { return Hello{}, nil })
}

// Terminate asks a service to exit its loop at the next message boundary.
type Terminate struct{ ctlBase }

func (Terminate) Tag() uint16                     { return TagTerminate }
func (Terminate) MarshalPayload() ([]byte, error) { return nil, nil }

func init() {
	registerTag(TagTerminate, func([]byte) (BusMsg, error) { return Terminate{}, nil })
}

// PeerMessage wraps one framed protocol message forwarded between a Peer
// service and its Swap service. The payload is opaque to the bus: Swap and
// Peer agree on its internal structure, which belongs to the Alice/Bob
// protocol proper and is out of this fabric's scope.
type PeerMessage struct {
	ctlBase
	Payload []byte
}

func (m PeerMessage) Tag() uint16 { return TagPeerMessage }
func (m PeerMessage) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putBytes(&buf, m.Payload)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagPeerMessage, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		payload, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return PeerMessage{Payload: payload}, nil
	})
}

// Listen asks Farcaster to bind a listener for inbound peer connections at
// addr.
type Listen struct {
	ctlBase
	Addr string
}

func (m Listen) Tag() uint16 { return TagListen }
func (m Listen) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putString(&buf, m.Addr)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagListen, func(b []byte) (BusMsg, error) {
		addr, err := readString(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		return Listen{Addr: addr}, nil
	})
}

// ConnectPeer asks Farcaster to spawn a Peer service connecting to addr.
type ConnectPeer struct {
	ctlBase
	Addr string
}

func (m ConnectPeer) Tag() uint16 { return TagConnectPeer }
func (m ConnectPeer) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putString(&buf, m.Addr)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagConnectPeer, func(b []byte) (BusMsg, error) {
		addr, err := readString(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		return ConnectPeer{Addr: addr}, nil
	})
}

// PingPeer asks a Peer service to send a liveness ping to its remote node.
type PingPeer struct{ ctlBase }

func (PingPeer) Tag() uint16                     { return TagPingPeer }
func (PingPeer) MarshalPayload() ([]byte, error) { return nil, nil }

func init() {
	registerTag(TagPingPeer, func([]byte) (BusMsg, error) { return PingPeer{}, nil })
}

// PublicOffer carries the negotiated swap terms named by the CLI's Make
// command: network/chain pair, amounts, timelocks, fee rate and role.
type PublicOffer struct {
	Network          Network
	ArbitratingChain Chain
	AccordantChain   Chain
	ArbitratingAmt   uint64
	AccordantAmt     uint64
	CancelTimelock   uint32
	PunishTimelock   uint32
	FeeRate          uint64
	RoleIsAlice      bool
}

func (o PublicOffer) marshal(buf *bytes.Buffer) {
	buf.WriteByte(byte(o.Network))
	buf.WriteByte(byte(o.ArbitratingChain))
	buf.WriteByte(byte(o.AccordantChain))
	putUint64(buf, o.ArbitratingAmt)
	putUint64(buf, o.AccordantAmt)
	putUint32(buf, o.CancelTimelock)
	putUint32(buf, o.PunishTimelock)
	putUint64(buf, o.FeeRate)
	if o.RoleIsAlice {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func unmarshalPublicOffer(r *bytes.Reader) (PublicOffer, error) {
	var o PublicOffer
	nb, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.Network = Network(nb)
	ac, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.ArbitratingChain = Chain(ac)
	cc, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.AccordantChain = Chain(cc)
	if o.ArbitratingAmt, err = readUint64(r); err != nil {
		return o, err
	}
	if o.AccordantAmt, err = readUint64(r); err != nil {
		return o, err
	}
	if o.CancelTimelock, err = readUint32(r); err != nil {
		return o, err
	}
	if o.PunishTimelock, err = readUint32(r); err != nil {
		return o, err
	}
	if o.FeeRate, err = readUint64(r); err != nil {
		return o, err
	}
	roleByte, err := r.ReadByte()
	if err != nil {
		return o, err
	}
	o.RoleIsAlice = roleByte == 1
	return o, nil
}

// CreateSwap is Farcaster's request to spawn a Swap service, used both when
// making and when taking an offer.
type CreateSwap struct {
	ctlBase
	TempSwapId TempSwapId
	Offer      PublicOffer
	PeerId     ServiceId
}

func (m CreateSwap) marshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(m.TempSwapId[:])
	m.Offer.marshal(&buf)
	peerBytes, err := m.PeerId.MarshalBinary()
	if err != nil {
		return nil, err
	}
	putBytes(&buf, peerBytes)
	return buf.Bytes(), nil
}

func unmarshalCreateSwap(b []byte) (CreateSwap, error) {
	var m CreateSwap
	r := bytes.NewReader(b)
	if _, err := readFull(r, m.TempSwapId[:]); err != nil {
		return m, err
	}
	offer, err := unmarshalPublicOffer(r)
	if err != nil {
		return m, err
	}
	m.Offer = offer
	peerBytes, err := readBytes(r)
	if err != nil {
		return m, err
	}
	peerId, _, err := UnmarshalServiceId(peerBytes)
	if err != nil {
		return m, err
	}
	m.PeerId = peerId
	return m, nil
}

// OpenSwapWith is issued by the CLI when making a fresh offer.
type OpenSwapWith struct{ CreateSwap }

func (m OpenSwapWith) Tag() uint16                     { return TagOpenSwapWith }
func (m OpenSwapWith) MarshalPayload() ([]byte, error) { return m.CreateSwap.marshalPayload() }

func init() {
	registerTag(TagOpenSwapWith, func(b []byte) (BusMsg, error) {
		cs, err := unmarshalCreateSwap(b)
		if err != nil {
			return nil, err
		}
		return OpenSwapWith{cs}, nil
	})
}

// AcceptSwapFrom is issued by the CLI when taking a counterparty's offer.
type AcceptSwapFrom struct{ CreateSwap }

func (m AcceptSwapFrom) Tag() uint16                     { return TagAcceptSwapFrom }
func (m AcceptSwapFrom) MarshalPayload() ([]byte, error) { return m.CreateSwap.marshalPayload() }

func init() {
	registerTag(TagAcceptSwapFrom, func(b []byte) (BusMsg, error) {
		cs, err := unmarshalCreateSwap(b)
		if err != nil {
			return nil, err
		}
		return AcceptSwapFrom{cs}, nil
	})
}

// FundSwap supplies the funding outpoint for a swap awaiting funding.
type FundSwap struct {
	ctlBase
	SwapId SwapId
	Txid   [32]byte
	Vout   uint32
}

func (m FundSwap) Tag() uint16 { return TagFundSwap }
func (m FundSwap) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(m.SwapId[:])
	buf.Write(m.Txid[:])
	putUint32(&buf, m.Vout)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagFundSwap, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		var m FundSwap
		if _, err := readFull(r, m.SwapId[:]); err != nil {
			return nil, err
		}
		if _, err := readFull(r, m.Txid[:]); err != nil {
			return nil, err
		}
		vout, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		m.Vout = vout
		return m, nil
	})
}

// CreateSwapKeys asks Wallet to derive a fresh KeyManager for offer, gated
// by token.
type CreateSwapKeys struct {
	ctlBase
	Offer PublicOffer
	Token Token
}

func (m CreateSwapKeys) Tag() uint16 { return TagCreateSwapKeys }
func (m CreateSwapKeys) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	m.Offer.marshal(&buf)
	tok := m.Token.Bytes()
	buf.Write(tok[:])
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagCreateSwapKeys, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		offer, err := unmarshalPublicOffer(r)
		if err != nil {
			return nil, err
		}
		var tok [16]byte
		if _, err := readFull(r, tok[:]); err != nil {
			return nil, err
		}
		token, err := TokenFromBytes(tok[:])
		if err != nil {
			return nil, err
		}
		return CreateSwapKeys{Offer: offer, Token: token}, nil
	})
}

// SwapKeys is Wallet's reply to CreateSwapKeys, carrying the opaque
// serialized KeyManager blob (see package wallet for its structure) plus the
// offer it was derived for.
type SwapKeys struct {
	ctlBase
	KeyManagerBlob []byte
	Offer          PublicOffer
}

func (m SwapKeys) Tag() uint16 { return TagSwapKeys }
func (m SwapKeys) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	putBytes(&buf, m.KeyManagerBlob)
	m.Offer.marshal(&buf)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagSwapKeys, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		blob, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		offer, err := unmarshalPublicOffer(r)
		if err != nil {
			return nil, err
		}
		return SwapKeys{KeyManagerBlob: blob, Offer: offer}, nil
	})
}

// GetKeys asks Wallet for the node's long-term peer secret key and node id,
// gated by token.
type GetKeys struct {
	ctlBase
	Token Token
}

func (m GetKeys) Tag() uint16 { return TagGetKeys }
func (m GetKeys) MarshalPayload() ([]byte, error) {
	tok := m.Token.Bytes()
	return tok[:], nil
}

func init() {
	registerTag(TagGetKeys, func(b []byte) (BusMsg, error) {
		token, err := TokenFromBytes(b)
		if err != nil {
			return nil, err
		}
		return GetKeys{Token: token}, nil
	})
}

// Keys is Wallet's reply to GetKeys.
type Keys struct {
	ctlBase
	NodeSecretKey [32]byte
	NodeId        [33]byte
}

func (m Keys) Tag() uint16 { return TagKeys }
func (m Keys) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(m.NodeSecretKey[:])
	buf.Write(m.NodeId[:])
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagKeys, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		var m Keys
		if _, err := readFull(r, m.NodeSecretKey[:]); err != nil {
			return nil, err
		}
		if _, err := readFull(r, m.NodeId[:]); err != nil {
			return nil, err
		}
		return m, nil
	})
}

// Pedicide is the CLI's immediate, SIGKILL-equivalent kill-all-children
// command. Unlike Terminate it does not await graceful child exit.
type Pedicide struct{ ctlBase }

func (Pedicide) Tag() uint16                     { return TagPedicide }
func (Pedicide) MarshalPayload() ([]byte, error) { return nil, nil }

func init() {
	registerTag(TagPedicide, func([]byte) (BusMsg, error) { return Pedicide{}, nil })
}

func readFull(r *bytes.Reader, dst []byte) (int, error) {
	return io.ReadFull(r, dst)
}
