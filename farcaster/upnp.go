package farcaster

import (
	"fmt"
	"net"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
)

// natTraversal opens an inbound port on the local gateway so Listen can
// accept connections from outside the node's own network, trying NAT-PMP
// first (most home routers answer it instantly) and falling back to UPnP's
// WANIPConnection service.
type natTraversal struct {
	externalIP net.IP
	pmp        *natpmp.Client
	upnp       *internetgateway1.WANIPConnection1
	mappedPort uint16
}

// discoverGateway probes the LAN gateway for either NAT-PMP or UPnP
// support, returning an error if neither responds -- callers should treat
// that as "no traversal available" and fall back to requiring a manually
// forwarded port, not as fatal to Listen itself.
func discoverGateway() (*natTraversal, error) {
	t := &natTraversal{}
	if gw, err := gateway.DiscoverGateway(); err == nil {
		client := natpmp.NewClient(gw)
		if res, err := client.GetExternalAddress(); err == nil {
			t.pmp = client
			ip := res.ExternalIPAddress
			t.externalIP = net.IPv4(ip[0], ip[1], ip[2], ip[3])
		}
	}
	if t.externalIP == nil {
		if clients, _, err := internetgateway1.NewWANIPConnection1Clients(); err == nil && len(clients) > 0 {
			t.upnp = clients[0]
			if ipStr, err := t.upnp.GetExternalIPAddress(); err == nil {
				t.externalIP = net.ParseIP(ipStr)
			}
		}
	}
	if t.externalIP == nil {
		return nil, fmt.Errorf("farcaster: no NAT-PMP or UPnP gateway found")
	}
	return t, nil
}

// ExternalIP is the node's address as seen from outside the local network.
func (t *natTraversal) ExternalIP() net.IP { return t.externalIP }

// Map forwards port on the gateway to this host, preferring NAT-PMP.
func (t *natTraversal) Map(port uint16) error {
	if t.pmp != nil {
		if _, err := t.pmp.AddPortMapping("tcp", int(port), int(port), 3600); err == nil {
			t.mappedPort = port
			return nil
		}
	}
	if t.upnp != nil {
		if err := t.upnp.AddPortMapping("", port, "TCP", port, t.externalIP.String(), true, "swapd", 3600); err == nil {
			t.mappedPort = port
			return nil
		}
	}
	return fmt.Errorf("farcaster: mapping port %d failed", port)
}

// Unmap removes a previously mapped port, if any.
func (t *natTraversal) Unmap() error {
	if t.mappedPort == 0 {
		return nil
	}
	port := t.mappedPort
	t.mappedPort = 0
	if t.pmp != nil {
		_, err := t.pmp.AddPortMapping("tcp", int(port), int(port), 0)
		return err
	}
	if t.upnp != nil {
		return t.upnp.DeletePortMapping("", port, "TCP")
	}
	return nil
}
