package peer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/farcasterd/swapd/bus"
)

// maxFrameLen bounds a single wire frame so a corrupt or hostile peer can't
// make Runtime allocate unbounded memory while reading a length prefix.
const maxFrameLen = 16 << 20

// Runtime is one live peer-to-peer connection: it frames and deframes the
// opaque swap-protocol payload carried over conn, multiplexing it to and
// from whichever local Swap services are party to it. The payload's
// internal structure belongs to the Alice/Bob cryptographic protocol and
// stays opaque here; this Runtime only routes it.
type Runtime struct {
	conn   net.Conn
	remote string
	self   bus.ServiceId

	endpoints bus.Endpoints

	mu       sync.Mutex
	lastSeen time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// New wraps an established connection (inbound or outbound) as a Peer
// service identified by remoteAddr.
func New(conn net.Conn, remoteAddr string, endpoints bus.Endpoints) *Runtime {
	return &Runtime{
		conn:      conn,
		remote:    remoteAddr,
		self:      bus.PeerId(remoteAddr),
		endpoints: endpoints,
		lastSeen:  time.Now(),
		done:      make(chan struct{}),
	}
}

func (r *Runtime) Identity() bus.ServiceId { return r.self }

// Run reads framed messages off the wire until the connection drops or
// Close is called, dispatching each to the local swap service it names.
func (r *Runtime) Run() {
	defer r.Close()
	reader := bufio.NewReader(r.conn)
	for {
		dest, payload, err := readFrame(reader)
		if err != nil {
			if err != io.EOF {
				log.Debugf("peer %s: read: %v", r.remote, err)
			}
			return
		}
		r.mu.Lock()
		r.lastSeen = time.Now()
		r.mu.Unlock()
		if err := r.endpoints.SendTo(bus.Ctl, dest, bus.PeerMessage{Payload: payload}); err != nil {
			log.Warnf("peer %s: routing inbound frame to %s: %v", r.remote, dest, err)
		}
	}
}

// Handle dispatches a bus message addressed to this Peer service: outbound
// PeerMessage payloads get framed and written to the wire, PingPeer sends a
// liveness probe.
func (r *Runtime) Handle(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
	if lane != bus.Ctl {
		return bus.ErrLaneMismatch
	}
	switch m := msg.(type) {
	case bus.PeerMessage:
		return r.send(source, m.Payload)
	case bus.PingPeer:
		return r.send(source, nil)
	case bus.Terminate:
		return r.Close()
	default:
		log.Warnf("peer %s: ctl request not supported: %T", r.remote, msg)
		return nil
	}
}

func (r *Runtime) send(source bus.ServiceId, payload []byte) error {
	if err := writeFrame(r.conn, source, payload); err != nil {
		return fmt.Errorf("peer %s: writing frame: %w", r.remote, err)
	}
	return nil
}

// Info reports this connection for GetInfo/ListPeers.
func (r *Runtime) Info() bus.PeerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bus.PeerInfo{
		RemoteAddr: r.remote,
		Since:      r.lastSeen.Unix(),
	}
}

// Close tears down the connection; safe to call more than once.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.conn.Close()
	})
	return err
}

// writeFrame encodes one message as:
//   u32 total_length || dest_len u16 || dest bytes || payload
// total_length covers everything after itself, matching the length-prefixed
// shape the bus codec uses internally for its own Ctl/Info/Sync messages.
func writeFrame(w io.Writer, dest bus.ServiceId, payload []byte) error {
	destBytes, err := dest.MarshalBinary()
	if err != nil {
		return err
	}
	body := make([]byte, 2+len(destBytes)+len(payload))
	binary.LittleEndian.PutUint16(body[0:2], uint16(len(destBytes)))
	copy(body[2:], destBytes)
	copy(body[2+len(destBytes):], payload)

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func readFrame(r io.Reader) (bus.ServiceId, []byte, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return bus.ServiceId{}, nil, err
	}
	total := binary.LittleEndian.Uint32(lenPrefix[:])
	if total > maxFrameLen {
		return bus.ServiceId{}, nil, fmt.Errorf("peer: frame of %d bytes exceeds limit", total)
	}
	body := make([]byte, total)
	if _, err := io.ReadFull(r, body); err != nil {
		return bus.ServiceId{}, nil, err
	}
	if len(body) < 2 {
		return bus.ServiceId{}, nil, fmt.Errorf("peer: short frame")
	}
	destLen := binary.LittleEndian.Uint16(body[0:2])
	if int(destLen) > len(body)-2 {
		return bus.ServiceId{}, nil, fmt.Errorf("peer: malformed frame header")
	}
	dest, _, err := bus.UnmarshalServiceId(body[2 : 2+int(destLen)])
	if err != nil {
		return bus.ServiceId{}, nil, err
	}
	payload := body[2+int(destLen):]
	return dest, payload, nil
}
