package driver

import (
	"net"
	"os"
)

// localIP resolves the host's reachable IP address, the address peers are
// told to dial. Hostname resolution first (matching how deployments name
// their nodes), then the first non-loopback interface address, then loopback.
func localIP() string {
	if host, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupHost(host); err == nil {
			for _, a := range addrs {
				ip := net.ParseIP(a)
				if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
					return a
				}
			}
		}
	}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
				return ipn.IP.String()
			}
		}
	}
	return "127.0.0.1"
}
