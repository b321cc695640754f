package peer

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farcasterd/swapd/bus"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	dest := bus.SwapServiceId(bus.SwapId{1, 2, 3})
	payload := []byte("hello swap")

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, dest, payload))

	gotDest, gotPayload, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, dest, gotDest)
	require.Equal(t, payload, gotPayload)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	lenPrefix[3] = 0xff // trivially exceeds maxFrameLen
	buf.Write(lenPrefix[:])

	_, _, err := readFrame(&buf)
	require.Error(t, err)
}

func TestRuntimeRoutesInboundFrameToEndpoints(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	router := bus.NewRouter()
	endpoints, _ := router.Register(bus.PeerId("127.0.0.1:1"))
	dest := bus.SwapServiceId(bus.SwapId{9})
	destEndpoints, destInbox := router.Register(dest)
	_ = destEndpoints

	rt := New(serverConn, "127.0.0.1:1", endpoints)
	go rt.Run()
	defer rt.Close()

	require.NoError(t, writeFrame(clientConn, dest, []byte("payload")))

	select {
	case env := <-destInbox:
		msg, ok := env.Msg.(bus.PeerMessage)
		require.True(t, ok)
		require.Equal(t, []byte("payload"), msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("inbound frame never routed to destination")
	}
}

func TestRuntimeHandleWritesOutboundFrame(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	router := bus.NewRouter()
	endpoints, _ := router.Register(bus.PeerId("127.0.0.1:2"))
	rt := New(serverConn, "127.0.0.1:2", endpoints)

	source := bus.SwapServiceId(bus.SwapId{5})
	done := make(chan error, 1)
	go func() {
		done <- rt.Handle(bus.Ctl, source, bus.PeerMessage{Payload: []byte("outbound")})
	}()

	gotDest, payload, err := readFrame(clientConn)
	require.NoError(t, err)
	require.Equal(t, source, gotDest)
	require.Equal(t, []byte("outbound"), payload)
	require.NoError(t, <-done)
}

func TestRuntimeHandleRejectsNonCtlLane(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	router := bus.NewRouter()
	endpoints, _ := router.Register(bus.PeerId("127.0.0.1:3"))
	rt := New(serverConn, "127.0.0.1:3", endpoints)

	err := rt.Handle(bus.Info, bus.FarcasterId(), bus.PeerMessage{})
	require.ErrorIs(t, err, bus.ErrLaneMismatch)
}

func TestRuntimeCloseIsIdempotent(t *testing.T) {
	_, serverConn := net.Pipe()
	router := bus.NewRouter()
	endpoints, _ := router.Register(bus.PeerId("127.0.0.1:4"))
	rt := New(serverConn, "127.0.0.1:4", endpoints)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}
