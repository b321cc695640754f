package farcaster

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farcasterd/swapd/bus"
)

func TestRegistryRegisterThenRunDispatchesToHandler(t *testing.T) {
	router := bus.NewRouter()
	parentEndpoints, parentInbox := router.Register(bus.FarcasterId())

	reg := newRegistry(router)
	childID := bus.PeerId("127.0.0.1:1")

	childEndpoints, inbox := reg.register(childID)
	require.True(t, reg.has(childID))
	require.Contains(t, reg.ids(), childID)

	reached := make(chan struct{}, 1)
	reg.run(childID, inbox, func(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
		reached <- struct{}{}
		if _, ok := msg.(bus.Terminate); ok {
			return nil
		}
		return childEndpoints.SendTo(bus.Info, source, bus.Success{Details: bus.NoDetail()})
	})

	require.NoError(t, parentEndpoints.SendTo(bus.Ctl, childID, bus.Hello{}))

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("handler was never reached")
	}

	select {
	case env := <-parentInbox:
		_, ok := env.Msg.(bus.Success)
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("never received reply from registered child")
	}
}

func TestRegistryRunExitsOnTerminate(t *testing.T) {
	router := bus.NewRouter()
	reg := newRegistry(router)
	childID := bus.WalletId()

	_, inbox := reg.register(childID)

	var once sync.Once
	done := make(chan struct{})
	reg.run(childID, inbox, func(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
		if _, ok := msg.(bus.Terminate); ok {
			once.Do(func() { close(done) })
		}
		return nil
	})

	parentEndpoints, _ := router.Register(bus.FarcasterId())
	require.NoError(t, parentEndpoints.SendTo(bus.Ctl, childID, bus.Terminate{}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop never processed Terminate")
	}
}

func TestRegistrySpawnRegistersAndRuns(t *testing.T) {
	router := bus.NewRouter()
	reg := newRegistry(router)
	childID := bus.PeerId("127.0.0.1:2")

	reg.spawn(childID, func(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error { return nil })

	require.True(t, reg.has(childID))
	require.Contains(t, reg.ids(), childID)
}

func TestRegistryTerminateAllWaitsForChildren(t *testing.T) {
	router := bus.NewRouter()
	parentEndpoints, _ := router.Register(bus.FarcasterId())
	reg := newRegistry(router)

	ids := []bus.ServiceId{bus.WalletId(), bus.PeerId("127.0.0.1:3")}
	for _, id := range ids {
		reg.spawn(id, func(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
			return nil
		})
	}

	reg.terminateAll(parentEndpoints)

	for _, id := range ids {
		require.False(t, reg.has(id))
	}
}

func TestRegistryKillAllIsImmediate(t *testing.T) {
	router := bus.NewRouter()
	reg := newRegistry(router)

	id := bus.PeerId("127.0.0.1:4")
	reg.spawn(id, func(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error { return nil })
	require.True(t, reg.has(id))

	reg.killAll()
	require.False(t, reg.has(id))
	require.Empty(t, reg.ids())
}

func TestRegistryTrackInvokesCancelOnForget(t *testing.T) {
	router := bus.NewRouter()
	reg := newRegistry(router)
	childID := bus.PeerId("127.0.0.1:5")

	_, inbox := reg.register(childID)

	cancelled := make(chan struct{})
	reg.track(childID, func() { close(cancelled) })

	reg.run(childID, inbox, func(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
		return nil
	})

	parentEndpoints, _ := router.Register(bus.FarcasterId())
	require.NoError(t, parentEndpoints.SendTo(bus.Ctl, childID, bus.Terminate{}))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("cancel func was never invoked on forget")
	}
}
