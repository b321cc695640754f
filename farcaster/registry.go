package farcaster

import (
	"context"
	"sync"

	"github.com/farcasterd/swapd/bus"
)

// childHandler is the shape every spawned service exposes to the registry:
// the single entry point its event loop dispatches inbound Envelopes to.
type childHandler func(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error

// registry owns the lifecycle of every child service Farcaster has spawned:
// it registers each on the Router, runs its read loop on a dedicated
// goroutine standing in for the teacher's one-thread-per-service model, and
// tracks enough state to answer ListPeers/ListSwaps and to drive the
// Terminate cascade.
type registry struct {
	router *bus.Router

	mu       sync.Mutex
	children map[bus.ServiceId]struct{}
	cancels  map[bus.ServiceId]context.CancelFunc
	wg       sync.WaitGroup
}

func newRegistry(router *bus.Router) *registry {
	return &registry{
		router:   router,
		children: make(map[bus.ServiceId]struct{}),
		cancels:  make(map[bus.ServiceId]context.CancelFunc),
	}
}

// track records cancel as the function that stops id's background worker
// goroutines (a Syncer's Synclet and bridge-drain loop), invoked alongside
// the normal Terminate/Pedicide handling so those goroutines don't outlive
// the child's bus registration.
func (r *registry) track(id bus.ServiceId, cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()
}

func (r *registry) cancelOf(id bus.ServiceId) context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancels[id]
}

// register binds id to a fresh inbox without starting its read loop yet,
// for the rare child (Syncer) whose handler needs its own bound Endpoints
// before it can be constructed. Callers must follow up with run.
func (r *registry) register(id bus.ServiceId) (bus.Endpoints, <-chan bus.Envelope) {
	endpoints, inbox := r.router.Register(id)
	r.mu.Lock()
	r.children[id] = struct{}{}
	r.mu.Unlock()
	return endpoints, inbox
}

// run starts id's read loop over inbox, dispatching every Envelope to
// handle until a Terminate message is processed or the inbox is closed out
// from under it.
func (r *registry) run(id bus.ServiceId, inbox <-chan bus.Envelope, handle childHandler) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.forget(id)
		for env := range inbox {
			if err := handle(env.Lane, env.Source, env.Msg); err != nil {
				log.Warnf("%s: handling %T from %s: %v", id, env.Msg, env.Source, err)
			}
			if _, ok := env.Msg.(bus.Terminate); ok {
				return
			}
		}
	}()
}

// spawn registers id and immediately starts its read loop running handle,
// for the common case where the child's handler closes over nothing but
// itself and can be built before Endpoints exist.
func (r *registry) spawn(id bus.ServiceId, handle childHandler) bus.Endpoints {
	endpoints, inbox := r.register(id)
	r.run(id, inbox, handle)
	return endpoints
}

func (r *registry) forget(id bus.ServiceId) {
	r.router.Unregister(id)
	r.mu.Lock()
	delete(r.children, id)
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()
}

// ids snapshots every currently registered child identity.
func (r *registry) ids() []bus.ServiceId {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bus.ServiceId, 0, len(r.children))
	for id := range r.children {
		out = append(out, id)
	}
	return out
}

// has reports whether id is currently a registered child.
func (r *registry) has(id bus.ServiceId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.children[id]
	return ok
}

// killAll force-closes every child's inbox immediately, without sending
// Terminate or waiting for its read loop to notice -- the SIGKILL-equivalent
// Pedicide needs, as opposed to terminateAll's graceful wait.
func (r *registry) killAll() {
	for _, id := range r.ids() {
		r.router.Unregister(id)
	}
	r.mu.Lock()
	r.children = make(map[bus.ServiceId]struct{})
	r.mu.Unlock()
}

// terminateAll broadcasts Terminate to every child and blocks until each
// one's read loop has exited, giving the "every child exits before
// Farcaster" ordering Terminate requires.
func (r *registry) terminateAll(endpoints bus.Endpoints) {
	for _, id := range r.ids() {
		if err := endpoints.SendTo(bus.Ctl, id, bus.Terminate{}); err != nil {
			log.Warnf("terminating %s: %v", id, err)
		}
	}
	r.wg.Wait()
}
