package rpc

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farcasterd/swapd/bus"
)

func TestClientServerRoundTrip(t *testing.T) {
	router := bus.NewRouter()
	server := NewServer(router)
	ts := httptest.NewServer(server)
	defer ts.Close()

	addr := strings.TrimPrefix(ts.URL, "http://")
	client, err := Dial(addr)
	require.NoError(t, err)
	defer client.Close()

	// Drain whatever bus.ClientId Farcaster's side would normally be, acting
	// as the daemon half that replies to GetInfo.
	var farcasterSource bus.ServiceId
	go func() {
		endpoints, inbox := router.Register(bus.FarcasterId())
		for env := range inbox {
			farcasterSource = env.Source
			_ = endpoints.SendTo(bus.Info, farcasterSource, bus.Success{Details: bus.NoDetail()})
		}
	}()

	reply, err := client.Call(bus.GetInfo{}, 2*time.Second)
	require.NoError(t, err)
	_, ok := reply.(bus.Success)
	require.True(t, ok)
}

func TestLaneOfRoutesByFamily(t *testing.T) {
	require.Equal(t, bus.Info, laneOf(bus.GetInfo{}))
	require.Equal(t, bus.Ctl, laneOf(bus.Listen{}))
	require.Equal(t, bus.Sync, laneOf(bus.TaskMsg{}))
}
