package farcaster

import (
	"sync"

	"github.com/farcasterd/swapd/bus"
)

// offerEntry is one open offer: the terms plus which peer it was made with
// or taken from, so FundSwap/AcceptSwapFrom can find the right Swap service.
type offerEntry struct {
	offer  bus.PublicOffer
	peer   bus.ServiceId
	swapId bus.SwapId // zero until promote sets it when the Swap service is spawned
}

// offerBook is Farcaster's in-memory table of offers made or taken but not
// yet resolved to a terminal Lifecycle state, keyed by the TempSwapId
// assigned when the offer was first created.
type offerBook struct {
	mu      sync.Mutex
	entries map[bus.TempSwapId]*offerEntry
}

func newOfferBook() *offerBook {
	return &offerBook{entries: make(map[bus.TempSwapId]*offerEntry)}
}

func (b *offerBook) open(tempID bus.TempSwapId, offer bus.PublicOffer, peer bus.ServiceId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[tempID] = &offerEntry{offer: offer, peer: peer}
}

func (b *offerBook) promote(tempID bus.TempSwapId, swapId bus.SwapId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[tempID]; ok {
		e.swapId = swapId
	}
}

func (b *offerBook) close(tempID bus.TempSwapId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, tempID)
}

func (b *offerBook) get(tempID bus.TempSwapId) (*offerEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[tempID]
	return e, ok
}

// bySwapId finds the offer entry whose promoted SwapId matches id.
func (b *offerBook) bySwapId(id bus.SwapId) (bus.TempSwapId, *offerEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for tempID, e := range b.entries {
		if e.swapId == id {
			return tempID, e, true
		}
	}
	return bus.TempSwapId{}, nil, false
}

func (b *offerBook) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// swapIds lists the SwapId of every offer entry that has been promoted to a
// concrete SwapId.
func (b *offerBook) swapIds() []bus.SwapId {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bus.SwapId, 0, len(b.entries))
	var zero bus.SwapId
	for _, e := range b.entries {
		if e.swapId != zero {
			out = append(out, e.swapId)
		}
	}
	return out
}
