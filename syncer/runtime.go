package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/farcasterd/swapd/bus"
)

// Runtime is the bus-facing half of a Syncer: one per watched (chain,
// network) pair, dispatching Ctl/Info/Sync traffic and relaying the
// Synclet's Bridge events back out on the Sync lane.
type Runtime struct {
	identity bus.ServiceId
	started  time.Time

	endpoints bus.Endpoints
	bridge    *bus.Bridge
	taskCh    chan bus.SyncerdTask

	mu    sync.Mutex
	tasks map[string]bus.SyncerdTask
}

// New builds a Runtime for identity, wired to endpoints for outbound
// traffic. The caller is responsible for starting synclet.Run against the
// returned Runtime's task channel and bridge, typically via Spawn.
func New(identity bus.ServiceId, endpoints bus.Endpoints) *Runtime {
	return &Runtime{
		identity:  identity,
		started:   time.Now(),
		endpoints: endpoints,
		bridge:    bus.NewBridge(256),
		taskCh:    make(chan bus.SyncerdTask, 256),
		tasks:     make(map[string]bus.SyncerdTask),
	}
}

// Spawn starts synclet.Run in its own goroutine, wired to this Runtime's
// task channel and bridge, and starts the Runtime's own bridge-draining
// loop. It returns once both goroutines are running; ctx cancellation
// stops them both.
func (r *Runtime) Spawn(ctx context.Context, synclet Synclet) {
	go func() {
		if err := synclet.Run(ctx, r.taskCh, r.bridge); err != nil {
			log.Errorf("%s: synclet exited: %v", r.identity, err)
		}
	}()
	go r.drainBridge(ctx)
}

func (r *Runtime) drainBridge(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.bridge.Recv():
			if !ok {
				return
			}
			r.handleBridge(ev)
		}
	}
}

// Handle dispatches one bus message, matching the (lane, family) switch
// every service runtime in this module implements: Ctl only on Ctl,
// Info only on Info, Sync only on Sync, and the internal Bridge lane
// (driven here directly by drainBridge rather than through the router).
func (r *Runtime) Handle(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
	switch lane {
	case bus.Ctl:
		if m, ok := msg.(bus.CtlMsg); ok {
			return r.handleCtl(source, m)
		}
	case bus.Info:
		if m, ok := msg.(bus.InfoMsg); ok {
			return r.handleInfo(source, m)
		}
	case bus.Sync:
		if m, ok := msg.(bus.SyncMsg); ok {
			return r.handleSync(source, m)
		}
	}
	return bus.ErrLaneMismatch
}

func (r *Runtime) handleCtl(source bus.ServiceId, req bus.CtlMsg) error {
	switch req.(type) {
	case bus.Hello:
		log.Infof("%s: %s connected", r.identity, source)
	case bus.Terminate:
		if source.IsFarcaster() {
			log.Infof("%s: received terminate", r.identity)
		}
	default:
		log.Warnf("%s: ctl request not supported: %T", r.identity, req)
	}
	return nil
}

func (r *Runtime) handleInfo(source bus.ServiceId, req bus.InfoMsg) error {
	switch req.(type) {
	case bus.GetInfo:
		chain, network, _ := r.identity.IsSyncer()
		return r.endpoints.SendTo(bus.Info, source, bus.SyncerInfo{
			Chain:  chain,
			Net:    network,
			Uptime: time.Since(r.started),
			Since:  r.started.Unix(),
			NTasks: uint32(len(r.snapshotTaskIds())),
		})
	case bus.ListTasks:
		return r.endpoints.SendTo(bus.Info, source, bus.TaskList{TaskIds: r.snapshotTaskIds()})
	default:
		log.Warnf("%s: ignoring info request: %T", r.identity, req)
	}
	return nil
}

// handleSync accepts a Task addressed to this syncer. Accepting the same
// (Task, Source) pair twice is a no-op: the outstanding-task set is keyed
// by structural equality, matching the idempotent submission contract.
func (r *Runtime) handleSync(source bus.ServiceId, req bus.SyncMsg) error {
	switch m := req.(type) {
	case bus.TaskMsg:
		t := bus.SyncerdTask{Task: m.Task, Source: source}
		r.mu.Lock()
		_, dup := r.tasks[t.Key()]
		r.tasks[t.Key()] = t
		r.mu.Unlock()
		if dup {
			return nil
		}
		select {
		case r.taskCh <- t:
		default:
			log.Errorf("%s: task channel full, dropping task %d", r.identity, m.Task.TaskId)
		}
	default:
		log.Warnf("%s: ignoring sync request: %T", r.identity, req)
	}
	return nil
}

// handleBridge unwraps a BridgeEvent received from this Runtime's own
// Synclet and re-emits the inner Event on the Sync lane, addressed back to
// the task's original submitter.
func (r *Runtime) handleBridge(ev bus.BridgeEvent) {
	if err := r.endpoints.SendTo(bus.Sync, ev.Source, bus.EventMsg{Event: ev.Event}); err != nil {
		log.Errorf("%s: relaying event to %s: %v", r.identity, ev.Source, err)
	}
	if ev.Event.Kind == bus.EventTaskAborted || ev.Event.Kind == bus.EventFailure ||
		ev.Event.Kind == bus.EventSweepSuccess || ev.Event.Kind == bus.EventTransactionBroadcasted {
		r.forget(ev.Event.TaskId, ev.Source)
	}
}

func (r *Runtime) forget(taskID uint32, source bus.ServiceId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.tasks {
		if t.Task.TaskId == taskID && t.Source == source {
			delete(r.tasks, k)
		}
	}
}

func (r *Runtime) snapshotTaskIds() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Task.TaskId)
	}
	return out
}

// Identity returns this Runtime's ServiceId.
func (r *Runtime) Identity() bus.ServiceId { return r.identity }
