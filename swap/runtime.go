package swap

import (
	"fmt"
	"time"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
	"github.com/farcasterd/swapd/wallet"
)

// Runtime is one running swap: role, peer, key material, and Lifecycle
// state, checkpointed before every externally visible acknowledgement.
type Runtime struct {
	id     bus.SwapId
	tempID bus.TempSwapId
	role   Role
	offer  bus.PublicOffer
	peer   bus.ServiceId
	keys   *wallet.KeyManager

	state     Lifecycle
	started   time.Time
	fundingTx [32]byte
	settleTx  [32]byte

	endpoints bus.Endpoints
	store     *checkpoint.Store
}

// New constructs a fresh Runtime in Proposed state for a newly created swap.
func New(id bus.SwapId, tempID bus.TempSwapId, role Role, offer bus.PublicOffer, peer bus.ServiceId, keys *wallet.KeyManager, endpoints bus.Endpoints, store *checkpoint.Store) *Runtime {
	return &Runtime{
		id: id, tempID: tempID, role: role, offer: offer, peer: peer, keys: keys,
		state: Proposed, started: time.Now(), endpoints: endpoints, store: store,
	}
}

// Resume reconstructs a Runtime from its last checkpoint, replayed on
// startup per "on startup the Swap replays from its last checkpoint."
func Resume(snap Snapshot, keys *wallet.KeyManager, endpoints bus.Endpoints, store *checkpoint.Store) *Runtime {
	return &Runtime{
		id: snap.SwapId, tempID: snap.TempSwapId, role: snap.Role, offer: snap.Offer,
		peer: snap.Peer, keys: keys, state: snap.State, started: time.Now(),
		fundingTx: snap.FundingTx, settleTx: snap.SettleTx,
		endpoints: endpoints, store: store,
	}
}

func (r *Runtime) Identity() bus.ServiceId { return bus.SwapServiceId(r.id) }

func (r *Runtime) State() Lifecycle { return r.state }

// Handle dispatches one bus message addressed to this swap.
func (r *Runtime) Handle(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
	switch lane {
	case bus.Ctl:
		if m, ok := msg.(bus.CtlMsg); ok {
			return r.handleCtl(source, m)
		}
	case bus.Sync:
		if m, ok := msg.(bus.SyncMsg); ok {
			return r.handleSync(source, m)
		}
	case bus.Info:
		if m, ok := msg.(bus.InfoMsg); ok {
			return r.handleInfo(source, m)
		}
	}
	return bus.ErrLaneMismatch
}

func (r *Runtime) handleCtl(source bus.ServiceId, req bus.CtlMsg) error {
	switch m := req.(type) {
	case bus.PeerMessage:
		return r.handlePeerMessage(source, m.Payload)
	case bus.FundSwap:
		if m.SwapId != r.id {
			return nil
		}
		return r.handleFunded(m.Txid, m.Vout)
	case bus.Terminate:
		return nil
	default:
		log.Warnf("swap %s: ctl request not supported: %T", r.id, req)
		return nil
	}
}

func (r *Runtime) handleInfo(source bus.ServiceId, req bus.InfoMsg) error {
	switch req.(type) {
	case bus.GetInfo:
		return r.endpoints.SendTo(bus.Info, source, bus.SwapInfo{
			SwapId: r.id, TempSwapId: r.tempID, State: r.state,
			ArbitratingAmt: r.offer.ArbitratingAmt, AccordantAmt: r.offer.AccordantAmt,
			Uptime: time.Since(r.started), Since: r.started.Unix(),
			RemotePeer: r.peer.String(),
		})
	default:
		return nil
	}
}

// handlePeerMessage advances the commitment/reveal handshake. The payload's
// internal structure belongs to the Alice/Bob cryptographic protocol and is
// opaque here; this fabric only tracks that *a* message of the expected
// shape arrived at each step, not its cryptographic validity.
func (r *Runtime) handlePeerMessage(source bus.ServiceId, payload []byte) error {
	var next Lifecycle
	switch r.state {
	case Proposed:
		next = Started
	case Started:
		next = CommitmentExchanged
	case CommitmentExchanged:
		next = Revealed
	default:
		log.Debugf("swap %s: ignoring peer message in state %s", r.id, r.state)
		return nil
	}
	return r.transition(next)
}

// handleFunded records the funding outpoint and asks this swap's Bitcoin
// syncer to watch it to confirmation before moving to Locked.
func (r *Runtime) handleFunded(txid [32]byte, vout uint32) error {
	if r.state != Revealed && r.state != Funded {
		log.Warnf("swap %s: FundSwap in unexpected state %s", r.id, r.state)
		return nil
	}
	r.fundingTx = txid
	if err := r.transition(Funded); err != nil {
		return err
	}
	syncerID := bus.SyncerId(bus.ChainBitcoin, r.offer.Network)
	task := bus.WatchTransaction(1, txid, 1)
	return r.endpoints.SendTo(bus.Sync, syncerID, bus.TaskMsg{Task: task})
}

func (r *Runtime) handleSync(source bus.ServiceId, req bus.SyncMsg) error {
	m, ok := req.(bus.EventMsg)
	if !ok {
		return nil
	}
	switch m.Event.Kind {
	case bus.EventTransactionConfirmations:
		return r.handleConfirmed(m.Event)
	case bus.EventFailure:
		return r.abort(fmt.Sprintf("syncer reported failure: %s", m.Event.ErrorInfo))
	default:
		return nil
	}
}

func (r *Runtime) handleConfirmed(ev bus.Event) error {
	switch r.state {
	case Funded:
		return r.transition(Locked)
	case Locked:
		r.settleTx = ev.Txid
		if r.role == RoleAlice {
			return r.transition(BuyBroadcast)
		}
		return r.transition(CancelBroadcast)
	case BuyBroadcast:
		return r.transition(Completed)
	case CancelBroadcast:
		return r.transition(Refunded)
	default:
		return nil
	}
}

// abort moves the swap to Aborted via the deterministic cancel path: if
// funds were already locked, it broadcasts the cancel/refund transaction
// before acknowledging the abort, never leaving funds stranded.
func (r *Runtime) abort(reason string) error {
	if IsTerminal(r.state) {
		return nil
	}
	log.Errorf("swap %s: aborting: %s", r.id, reason)
	if r.state == Locked || r.state == Funded {
		syncerID := bus.SyncerId(bus.ChainBitcoin, r.offer.Network)
		task := bus.BroadcastTransaction(2, fmt.Sprintf("%x", r.fundingTx))
		if err := r.endpoints.SendTo(bus.Sync, syncerID, bus.TaskMsg{Task: task}); err != nil {
			log.Errorf("swap %s: broadcasting cancel path: %v", r.id, err)
		}
	}
	return r.transition(Aborted)
}

// transition validates and applies a state change, checkpointing it before
// returning -- "every state mutation writes a checkpoint ... before
// acknowledging progress externally."
func (r *Runtime) transition(to Lifecycle) error {
	if r.state == to {
		return nil
	}
	if !CanTransition(r.state, to) {
		return r.abort(fmt.Sprintf("illegal transition %s -> %s", r.state, to))
	}
	r.state = to
	if err := r.checkpoint(); err != nil {
		return fmt.Errorf("swap %s: checkpointing transition to %s: %w", r.id, to, err)
	}
	if IsTerminal(to) {
		if err := wallet.DeleteCheckpoint(r.store, r.id); err != nil {
			return fmt.Errorf("swap %s: deleting wallet checkpoint: %w", r.id, err)
		}
		return DeleteSnapshot(r.store, r.id)
	}
	return nil
}

func (r *Runtime) checkpoint() error {
	snap := Snapshot{
		SwapId: r.id, TempSwapId: r.tempID, Role: r.role, Offer: r.offer,
		Peer: r.peer, State: r.state, FundingTx: r.fundingTx, SettleTx: r.settleTx,
	}
	return SaveSnapshot(r.store, snap)
}
