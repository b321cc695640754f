package farcaster

import (
	"net"
	"sync"

	"github.com/decred/dcrd/addrmgr/v2"
)

// addrBook tracks peer addresses this node has connected to or accepted
// connections from. Persistence and address-quality scoring (good/bad,
// last-seen, retry backoff) are delegated to addrmgr, the same address
// manager dcrwallet's SPV syncer hands its peer set to; the connected-now
// set that ListPeers/GetInfo answer from is kept separately since that is
// live connection state addrmgr itself doesn't track.
type addrBook struct {
	mgr *addrmgr.AddrManager

	mu        sync.Mutex
	connected map[string]struct{}
}

func newAddrBook(dataDir string) *addrBook {
	mgr := addrmgr.New(dataDir, net.LookupIP)
	return &addrBook{mgr: mgr, connected: make(map[string]struct{})}
}

func (b *addrBook) start() { b.mgr.Start() }

func (b *addrBook) stop() { b.mgr.Stop() }

// markConnected records addr as a live outbound or inbound connection.
func (b *addrBook) markConnected(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected[addr] = struct{}{}
}

// markDisconnected drops addr from the live connection set.
func (b *addrBook) markDisconnected(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connected, addr)
}

// connectedAddrs lists every address with a live connection, for ListPeers.
func (b *addrBook) connectedAddrs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.connected))
	for addr := range b.connected {
		out = append(out, addr)
	}
	return out
}

// knownCount is the number of addresses addrmgr has on file, regardless of
// current connection state, reported by GetInfo as network-wide visibility.
func (b *addrBook) knownCount() int {
	return b.mgr.NumAddresses()
}
