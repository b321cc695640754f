package peer

import (
	"fmt"
	"net"

	"github.com/decred/dcrd/connmgr"
)

// Manager owns outbound connection lifecycle via connmgr -- the same
// retrying-dialer package the teacher stack uses to keep its outbound peer
// slots filled -- and a set of plain listeners for inbound connections,
// which connmgr's own Config.Listeners/OnAccept pair could drive too, but
// only if wired up before Start; since swapd opens listeners on demand
// after the daemon is already running (via the Listen command), inbound
// accept loops are spawned directly instead.
type Manager struct {
	cm *connmgr.ConnManager
}

// NewManager builds a Manager that calls onConn for every outbound
// connection connmgr establishes.
func NewManager(onConn func(conn net.Conn, remoteAddr string)) (*Manager, error) {
	cfg := connmgr.Config{
		TargetOutbound: 64,
		Dial: func(addr net.Addr) (net.Conn, error) {
			return net.Dial(addr.Network(), addr.String())
		},
		OnConnection: func(req *connmgr.ConnReq, conn net.Conn) {
			onConn(conn, req.Addr.String())
		},
	}
	cm, err := connmgr.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("peer: building connection manager: %w", err)
	}
	return &Manager{cm: cm}, nil
}

// Start begins connmgr's internal connection-handler goroutine.
func (m *Manager) Start() { m.cm.Start() }

// Stop halts all outbound connection management.
func (m *Manager) Stop() { m.cm.Stop() }

// ConnectPeer resolves addr and asks connmgr to establish (and, on drop,
// retry) an outbound connection to it.
func (m *Manager) ConnectPeer(addr string) error {
	resolved, err := resolveAddr(addr)
	if err != nil {
		return err
	}
	m.cm.Connect(&connmgr.ConnReq{Addr: resolved, Permanent: false})
	return nil
}

// Listener wraps a bound net.Listener together with the accept loop feeding
// newly inbound connections to onConn, stoppable via Close.
type Listener struct {
	ln net.Listener
}

// Listen binds addr and spawns an accept loop calling onConn for every
// inbound connection until the Listener is closed.
func Listen(addr string, onConn func(conn net.Conn, remoteAddr string)) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("peer: listening on %s: %w", addr, err)
	}
	l := &Listener{ln: ln}
	go l.acceptLoop(onConn)
	return l, nil
}

func (l *Listener) acceptLoop(onConn func(conn net.Conn, remoteAddr string)) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		onConn(conn, conn.RemoteAddr().String())
	}
}

// Addr returns the listener's bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new inbound connections.
func (l *Listener) Close() error { return l.ln.Close() }
