package bus

import (
	"fmt"
	"sync"
)

// inboxDepth bounds each service's inbox, giving the bus's "reliable while
// both endpoints are alive" guarantee a concrete backpressure point instead
// of unbounded memory growth.
const inboxDepth = 256

// Envelope is one delivered message together with the lane it arrived on
// and the ServiceId that sent it.
type Envelope struct {
	Lane   Lane
	Source ServiceId
	Msg    BusMsg
}

// Router is the process-wide bus singleton -- the Go analogue of the
// design notes' "global ZMQ_CONTEXT": state initialized once, handed by
// reference into every service at construction, never reached for from
// arbitrary call sites. It owns the routing table from ServiceId to that
// service's inbox channel.
type Router struct {
	mu      sync.RWMutex
	inboxes map[ServiceId]chan Envelope
}

// NewRouter constructs an empty, ready-to-use Router.
func NewRouter() *Router {
	return &Router{inboxes: make(map[ServiceId]chan Envelope)}
}

// Register binds id to a fresh inbox and returns the Endpoints handle that
// id's event loop uses to send, plus the inbox it should range over.
// Registering an id that is already registered replaces its inbox, matching
// a service restarting under the same identity after a crash.
func (r *Router) Register(id ServiceId) (Endpoints, <-chan Envelope) {
	inbox := make(chan Envelope, inboxDepth)

	r.mu.Lock()
	r.inboxes[id] = inbox
	r.mu.Unlock()

	return Endpoints{router: r, self: id}, inbox
}

// Unregister removes id from the routing table and closes its inbox. Any
// messages still queued in the inbox are dropped, matching "after a peer
// disconnects, queued messages to it are dropped."
func (r *Router) Unregister(id ServiceId) {
	r.mu.Lock()
	inbox, ok := r.inboxes[id]
	delete(r.inboxes, id)
	r.mu.Unlock()

	if ok {
		close(inbox)
	}
}

// deliver attempts at-most-once delivery of an Envelope to dest's inbox. It
// returns a TransportError if dest is not registered (e.g. already dead) or
// its inbox is full; callers (Endpoints.SendTo) treat this as
// handle_err-worthy, never fatal.
func (r *Router) deliver(dest ServiceId, env Envelope) error {
	r.mu.RLock()
	inbox, ok := r.inboxes[dest]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("bus: no live endpoint for %s", dest)
	}

	select {
	case inbox <- env:
		return nil
	default:
		return fmt.Errorf("bus: inbox full for %s", dest)
	}
}

// Endpoints is the per-service handle passed into every handle() call, bound
// to the sending service's own identity, matching the esb::Endpoints
// parameter of the original service contract.
type Endpoints struct {
	router *Router
	self   ServiceId
}

// SendTo delivers msg to dest on lane, addressed as coming from the
// Endpoints' bound identity. It rejects msg whose family does not match
// lane before attempting delivery, enforcing the same admission rule the
// receiving end re-checks. The returned error wraps ErrLaneMismatch so
// callers in the root package can recognize it and translate it into a
// NotSupported Error without bus importing back up to them.
func (e Endpoints) SendTo(lane Lane, dest ServiceId, msg BusMsg) error {
	if !Allowed(lane, msg.Family()) {
		return fmt.Errorf("%w: %s carries %s on %s", ErrLaneMismatch, msgTag(msg), msg.Family(), lane)
	}
	return e.router.deliver(dest, Envelope{Lane: lane, Source: e.self, Msg: msg})
}

// Self returns the ServiceId this Endpoints handle sends as.
func (e Endpoints) Self() ServiceId { return e.self }

// ErrLaneMismatch is wrapped by SendTo when msg's family does not belong on
// the requested lane.
var ErrLaneMismatch = fmt.Errorf("bus: message family not allowed on lane")

// msgTag renders msg's tag for error details; BusMsg doesn't otherwise need
// a human string, so this lives here rather than on the interface.
func msgTag(msg BusMsg) string {
	return fmt.Sprintf("tag(%d)", msg.Tag())
}

// Bridge is the internal, single-producer/single-consumer channel a
// Syncer's Synclet worker goroutine uses to hand Events back to its own
// Runtime without sharing Runtime's handler state. It never crosses a
// service boundary and is not registered with a Router; any
// implementation delivering FIFO with no loss for the Syncer's lifetime
// satisfies its contract, and a buffered Go channel is the natural one.
type Bridge struct {
	ch chan BridgeEvent
}

// NewBridge creates a Bridge with the given buffer depth.
func NewBridge(depth int) *Bridge {
	return &Bridge{ch: make(chan BridgeEvent, depth)}
}

// Send hands ev to the Runtime side of the bridge. It blocks if the
// Runtime has fallen behind, which is acceptable: the Synclet's own
// blocking chain-RPC loop is already off the Runtime's handler thread, so a
// slow Runtime only throttles the Synclet, never the reverse.
func (b *Bridge) Send(ev BridgeEvent) {
	b.ch <- ev
}

// Recv exposes the Runtime-side receive channel.
func (b *Bridge) Recv() <-chan BridgeEvent {
	return b.ch
}

// Close closes the bridge; only the Runtime side should call this, after
// its Synclet has stopped sending.
func (b *Bridge) Close() {
	close(b.ch)
}
