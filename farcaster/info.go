package farcaster

import (
	"fmt"
	"time"

	"github.com/farcasterd/swapd/bus"
)

// handleInfo answers the three Info-lane introspection requests a CLI
// client can make of Farcaster directly.
func (f *Supervisor) handleInfo(source bus.ServiceId, msg bus.InfoMsg) error {
	switch msg.(type) {
	case bus.GetInfo:
		return f.endpoints.SendTo(bus.Info, source, bus.NodeInfo{
			NodeId:  f.nodeID,
			Listens: f.listenAddrs(),
			Uptime:  time.Since(f.started),
			Since:   f.started.Unix(),
			Peers:   f.addrs.connectedAddrs(),
			Swaps:   f.offers.swapIds(),
		})
	case bus.ListPeers:
		return f.endpoints.SendTo(bus.Info, source, bus.PeerList{Addrs: f.addrs.connectedAddrs()})
	case bus.ListSwaps:
		return f.endpoints.SendTo(bus.Info, source, bus.SwapList{Ids: f.offers.swapIds()})
	default:
		return fmt.Errorf("farcaster: unhandled Info message %T", msg)
	}
}
