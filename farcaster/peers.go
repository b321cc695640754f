package farcaster

import (
	"net"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/peer"
)

// adoptConnection spawns a Peer service for a freshly dialed or accepted
// connection, registering it under bus.PeerId(remoteAddr) the same way
// every other child service is registered, then lets its read loop run the
// connection until Terminate or a network error closes it.
func (f *Supervisor) adoptConnection(conn net.Conn, remoteAddr string) {
	id := bus.PeerId(remoteAddr)
	endpoints, inbox := f.registry.register(id)
	rt := peer.New(conn, remoteAddr, endpoints)
	f.registry.run(id, inbox, rt.Handle)
	go rt.Run()
	f.addrs.markConnected(remoteAddr)
	f.metrics.setPeerCount(len(f.addrs.connectedAddrs()))
}

func (f *Supervisor) handleListen(addr string) error {
	ln, err := peer.Listen(addr, f.adoptConnection)
	if err != nil {
		return err
	}
	f.listeners[addr] = ln
	if f.nat != nil {
		if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
			if err := f.nat.Map(uint16(tcpAddr.Port)); err != nil {
				log.Debugf("farcaster: upnp port mapping failed: %v", err)
			}
		}
	}
	return nil
}

func (f *Supervisor) handleConnectPeer(addr string) error {
	mgr, err := peer.NewManager(f.adoptConnection)
	if err != nil {
		return err
	}
	mgr.Start()
	return mgr.ConnectPeer(addr)
}

func (f *Supervisor) listenAddrs() []string {
	out := make([]string, 0, len(f.listeners))
	for addr := range f.listeners {
		out = append(out, addr)
	}
	return out
}
