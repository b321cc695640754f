package peer

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
)

// resolveAddr turns a host:port peer address into a dialable net.Addr.
// An address net.ResolveTCPAddr resolves to an IP is returned as is;
// otherwise the host is looked up with a direct DNS A-record query, with a
// 5-second timeout, against the first nameserver in /etc/resolv.conf.
func resolveAddr(addr string) (*net.TCPAddr, error) {
	if tcpAddr, err := net.ResolveTCPAddr("tcp", addr); err == nil {
		if tcpAddr.IP != nil {
			return tcpAddr, nil
		}
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("peer: invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("peer: invalid port in %q: %w", addr, err)
	}

	ip, err := lookupA(host)
	if err != nil {
		return nil, err
	}
	return &net.TCPAddr{IP: ip, Port: port}, nil
}

func lookupA(host string) (net.IP, error) {
	client := new(dns.Client)
	client.Timeout = 5 * time.Second

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	resolvConf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(resolvConf.Servers) == 0 {
		return nil, fmt.Errorf("peer: resolving %s: no DNS servers configured", host)
	}

	server := net.JoinHostPort(resolvConf.Servers[0], resolvConf.Port)
	resp, _, err := client.Exchange(msg, server)
	if err != nil {
		return nil, fmt.Errorf("peer: resolving %s: %w", host, err)
	}
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A, nil
		}
	}
	return nil, fmt.Errorf("peer: no A record for %s", host)
}
