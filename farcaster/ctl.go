package farcaster

import (
	"fmt"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/swap"
)

// handleCtl answers every CLI/peer-facing Ctl request Farcaster itself
// terminates (as opposed to forwarding into a Peer/Swap/Syncer child).
func (f *Supervisor) handleCtl(source bus.ServiceId, msg bus.CtlMsg) error {
	switch m := msg.(type) {
	case bus.Listen:
		return f.replyResult(source, f.handleListen(m.Addr))
	case bus.ConnectPeer:
		return f.replyResult(source, f.handleConnectPeer(m.Addr))
	case bus.OpenSwapWith:
		return f.openSwap(source, m.CreateSwap, m.Offer.RoleIsAlice)
	case bus.AcceptSwapFrom:
		return f.openSwap(source, m.CreateSwap, !m.Offer.RoleIsAlice)
	case bus.FundSwap:
		return f.forwardToSwap(source, m.SwapId, bus.Ctl, m)
	case bus.Pedicide:
		f.registry.killAll()
		return f.endpoints.SendTo(bus.Info, source, bus.Success{Details: bus.NoDetail()})
	case bus.Terminate:
		f.registry.terminateAll(f.endpoints)
		f.addrs.stop()
		f.cancel()
		return f.endpoints.SendTo(bus.Info, source, bus.Success{Details: bus.NoDetail()})
	case bus.Hello:
		return nil
	default:
		return fmt.Errorf("farcaster: unhandled Ctl message %T", msg)
	}
}

// openSwap runs the synchronous key exchange with Wallet, constructs a
// Swap service for the given role, spawns it under the registry, and
// records the offer in the offer book keyed by TempSwapId.
func (f *Supervisor) openSwap(source bus.ServiceId, req bus.CreateSwap, role bool) error {
	blob, err := f.requestSwapKeys(req.Offer)
	if err != nil {
		return f.endpoints.SendTo(bus.Info, source, bus.Failure{Info: err.Error()})
	}
	keys, err := f.secrets.UnmarshalKeyManager(blob, f.testnet)
	if err != nil {
		return f.endpoints.SendTo(bus.Info, source, bus.Failure{Info: err.Error()})
	}

	localRole := swap.RoleBob
	if role {
		localRole = swap.RoleAlice
	}

	swapID := bus.DeriveSwapId(req.TempSwapId)
	id := bus.SwapServiceId(swapID)
	endpoints, inbox := f.registry.register(id)
	rt := swap.New(swapID, req.TempSwapId, localRole, req.Offer, req.PeerId, keys, endpoints, f.store)
	f.registry.run(id, inbox, rt.Handle)

	f.offers.open(req.TempSwapId, req.Offer, req.PeerId)
	f.offers.promote(req.TempSwapId, swapID)
	f.metrics.incSwapStarted()
	f.metrics.setActiveSwaps(f.offers.count())

	return f.endpoints.SendTo(bus.Info, source, bus.Progress{Message: fmt.Sprintf("swap %s started", swapID)})
}

// forwardToSwap relays msg to the running Swap service for id, failing
// with Failure back to source if no such swap is active.
func (f *Supervisor) forwardToSwap(source bus.ServiceId, id bus.SwapId, lane bus.Lane, msg bus.BusMsg) error {
	dest := bus.SwapServiceId(id)
	if !f.registry.has(dest) {
		return f.endpoints.SendTo(bus.Info, source, bus.Failure{Info: fmt.Sprintf("no active swap %s", id)})
	}
	return f.endpoints.SendTo(lane, dest, msg)
}

// replyResult turns a plain error from a local operation into the
// Success/Failure pair every Ctl request ultimately resolves to.
func (f *Supervisor) replyResult(source bus.ServiceId, err error) error {
	if err != nil {
		return f.endpoints.SendTo(bus.Info, source, bus.Failure{Info: err.Error()})
	}
	return f.endpoints.SendTo(bus.Info, source, bus.Success{Details: bus.NoDetail()})
}
