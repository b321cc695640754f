package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/farcasterd/swapd/bus"
)

// MoneroSynclet watches a monerod/monero-wallet-rpc pair over their JSON-RPC
// 2.0 HTTP interface. No Monero RPC client exists anywhere in this module's
// dependency set, so jsonRPCClient below is a minimal hand-written one --
// the one ambient concern in this package built on net/http + encoding/json
// rather than a pack library, justified in the design ledger.
type MoneroSynclet struct {
	daemon *jsonRPCClient
	wallet *jsonRPCClient

	mu     sync.Mutex
	states map[string]TaskState
}

// NewMoneroSynclet builds a synclet pointed at a monerod daemon RPC endpoint
// and, for sweep tasks, a monero-wallet-rpc endpoint.
func NewMoneroSynclet(daemonURL, walletURL string) *MoneroSynclet {
	return &MoneroSynclet{
		daemon: newJSONRPCClient(daemonURL),
		wallet: newJSONRPCClient(walletURL),
		states: make(map[string]TaskState),
	}
}

func (s *MoneroSynclet) Run(ctx context.Context, tasks <-chan bus.SyncerdTask, bridge *bus.Bridge) error {
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
			go s.runTask(ctx, t, bridge)
		}
	}
}

func (s *MoneroSynclet) key(t bus.SyncerdTask) string { return t.Key() }

func (s *MoneroSynclet) setState(t bus.SyncerdTask, st TaskState) {
	s.mu.Lock()
	s.states[s.key(t)] = st
	s.mu.Unlock()
}

func (s *MoneroSynclet) stateOf(t bus.SyncerdTask) TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[s.key(t)]
}

// abort marks every outstanding task whose TaskId matches target as
// aborted, mirroring BitcoinSynclet.abort's key encoding (Task.marshal
// writes Kind then TaskId as the first five little-endian bytes).
func (s *MoneroSynclet) abort(target uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.states {
		if len(k) >= 5 {
			b := []byte(k)[1:5]
			id := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
			if id == target {
				s.states[k] = TaskAborted
			}
		}
	}
}

func (s *MoneroSynclet) emit(bridge *bus.Bridge, t bus.SyncerdTask, ev bus.Event) {
	ev.TaskId = t.Task.TaskId
	bridge.Send(bus.BridgeEvent{Source: t.Source, Event: ev})
}

func (s *MoneroSynclet) emitFailure(bridge *bus.Bridge, t bus.SyncerdTask, detail string) {
	s.emit(bridge, t, bus.Event{Kind: bus.EventFailure, ErrorInfo: detail})
}

func (s *MoneroSynclet) runTask(ctx context.Context, t bus.SyncerdTask, bridge *bus.Bridge) {
	var cancel context.CancelFunc
	if d := taskTimeout(t.Task.Kind); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	switch t.Task.Kind {
	case bus.TaskWatchHeight:
		s.watchHeight(ctx, t, bridge)
	case bus.TaskWatchAddress:
		s.watchAddress(ctx, t, bridge)
	case bus.TaskWatchTransaction:
		s.watchTransaction(ctx, t, bridge)
	case bus.TaskSweepAddress:
		s.sweep(ctx, t, bridge)
	case bus.TaskGetTx:
		s.watchTransaction(ctx, t, bridge)
	}

	s.setState(t, TaskSatisfied)
}

type getHeightResult struct {
	Height uint64 `json:"height"`
}

func (s *MoneroSynclet) watchHeight(ctx context.Context, t bus.SyncerdTask, bridge *bus.Bridge) {
	var last uint64 = 0
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
			var res getHeightResult
			if err := s.daemon.call(ctx, "get_height", nil, &res); err != nil {
				continue
			}
			if res.Height != last {
				last = res.Height
				s.emit(bridge, t, bus.Event{Kind: bus.EventHeightChanged, Height: uint32(res.Height)})
			}
		}
	}
}

type transferEntry struct {
	Txid          string `json:"txid"`
	Amount        uint64 `json:"amount"`
	Confirmations uint64 `json:"confirmations"`
	Address       string `json:"address"`
}

type getTransfersResult struct {
	In  []transferEntry `json:"in"`
	Out []transferEntry `json:"out"`
}

func (s *MoneroSynclet) watchAddress(ctx context.Context, t bus.SyncerdTask, bridge *bus.Bridge) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stateOf(t) == TaskAborted {
				return
			}
			var res getTransfersResult
			params := map[string]interface{}{"in": true}
			if err := s.wallet.call(ctx, "get_transfers", params, &res); err != nil {
				continue
			}
			for _, entry := range res.In {
				if entry.Address != t.Task.Script || seen[entry.Txid] {
					continue
				}
				seen[entry.Txid] = true
				var txid [32]byte
				copy(txid[:], []byte(entry.Txid))
				s.emit(bridge, t, bus.Event{
					Kind:   bus.EventAddressTransaction,
					Txid:   txid,
					Amount: entry.Amount,
				})
			}
		}
	}
}

func (s *MoneroSynclet) watchTransaction(ctx context.Context, t bus.SyncerdTask, bridge *bus.Bridge) {
	target := fmt.Sprintf("%x", t.Task.Txid)
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
			var res getTransfersResult
			params := map[string]interface{}{"in": true, "out": true, "pending": true}
			if err := s.wallet.call(ctx, "get_transfers", params, &res); err != nil {
				failures++
				if failures >= maxTaskFailures {
					s.emitFailure(bridge, t, err.Error())
					failures = 0
				}
				continue
			}
			failures = 0
			for _, entry := range append(res.In, res.Out...) {
				if entry.Txid != target {
					continue
				}
				if entry.Confirmations >= uint64(t.Task.ConfirmationsRequired) {
					s.emit(bridge, t, bus.Event{
						Kind:          bus.EventTransactionConfirmations,
						Txid:          t.Task.Txid,
						Confirmations: uint32(entry.Confirmations),
					})
					return
				}
			}
		}
	}
}

func (s *MoneroSynclet) sweep(ctx context.Context, t bus.SyncerdTask, bridge *bus.Bridge) {
	params := map[string]interface{}{
		"address": t.Task.SweepDestination,
	}
	var res struct {
		TxHashList []string `json:"tx_hash_list"`
	}
	_, err := retryCall(ctx, func() error {
		return s.wallet.call(ctx, "sweep_all", params, &res)
	})
	if err != nil {
		s.emitFailure(bridge, t, err.Error())
		return
	}
	s.emit(bridge, t, bus.Event{Kind: bus.EventSweepSuccess})
}

// jsonRPCClient is a minimal JSON-RPC 2.0 over HTTP client, sufficient for
// monerod/monero-wallet-rpc's request shape: POST /json_rpc with
// {"jsonrpc":"2.0","id":"0","method":...,"params":...}.
type jsonRPCClient struct {
	url    string
	client *http.Client
}

func newJSONRPCClient(url string) *jsonRPCClient {
	return &jsonRPCClient{url: url, client: &http.Client{Timeout: 30 * time.Second}}
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

func (c *jsonRPCClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: "0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("monero rpc: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/json_rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("monero rpc: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("monero rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("monero rpc: decoding response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("monero rpc: %s: %s", method, rpcResp.Error.Message)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, result)
}
