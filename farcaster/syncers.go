package farcaster

import (
	"context"
	"fmt"
	"sync"

	"github.com/decred/dcrd/rpcclient/v7"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/syncer"
)

// ChainEndpoints is the connection information Farcaster needs to stand up
// a Syncer for a given chain, sourced from farcaster.toml.
type ChainEndpoints struct {
	BitcoinRPC      rpcclient.ConnConfig
	MoneroDaemonURL string
	MoneroWalletURL string
}

// syncerPool launches a Syncer per distinct (chain, network) pair on
// demand and reuses it for every subsequent request, per "launches a
// Syncer on demand ... reusing existing ones."
type syncerPool struct {
	mu  sync.Mutex
	ids map[bus.ServiceId]struct{}
}

func newSyncerPool() *syncerPool {
	return &syncerPool{ids: make(map[bus.ServiceId]struct{})}
}

// ensureSyncer returns the ServiceId of the running Syncer for (chain, network),
// spawning one via the registry if none exists yet.
func (f *Supervisor) ensureSyncer(chain bus.Chain, network bus.Network) (bus.ServiceId, error) {
	id := bus.SyncerId(chain, network)

	f.syncers.mu.Lock()
	_, exists := f.syncers.ids[id]
	f.syncers.mu.Unlock()
	if exists {
		return id, nil
	}

	var synclet syncer.Synclet
	switch chain {
	case bus.ChainBitcoin:
		conn := f.chainEndpoints.BitcoinRPC
		synclet = syncer.NewBitcoinSynclet(&conn)
	case bus.ChainMonero:
		synclet = syncer.NewMoneroSynclet(f.chainEndpoints.MoneroDaemonURL, f.chainEndpoints.MoneroWalletURL)
	default:
		return id, fmt.Errorf("farcaster: unknown chain %s", chain)
	}

	endpoints, inbox := f.registry.register(id)
	rt := syncer.New(id, endpoints)
	ctx, cancel := context.WithCancel(f.ctx)
	f.registry.track(id, cancel)
	rt.Spawn(ctx, synclet)
	f.registry.run(id, inbox, rt.Handle)

	f.syncers.mu.Lock()
	f.syncers.ids[id] = struct{}{}
	f.syncers.mu.Unlock()
	f.metrics.setSyncerCount(len(f.syncers.ids))

	return id, nil
}
