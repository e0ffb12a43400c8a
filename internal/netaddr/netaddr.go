// Package netaddr guesses an address other machines on the local network
// can use to reach this host.
package netaddr

import (
	"net"
	"strings"
)

// Fallback is returned when no candidate address is available.
const Fallback = "127.0.0.1"

// preferredPrefixes are tried in order; the empty prefix matches anything.
var preferredPrefixes = []string{"192.", "10.", "172.", ""}

// PreferredLocalAddress picks the first candidate in a private 192., 10.
// or 172. range, in that order, then any candidate, then Fallback.
func PreferredLocalAddress(candidates []string) string {
	for _, prefix := range preferredPrefixes {
		for _, c := range candidates {
			if strings.HasPrefix(c, prefix) {
				return c
			}
		}
	}
	return Fallback
}

// Candidates lists the non-loopback IPv4 addresses of the host's interfaces.
func Candidates() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, ipv4Addresses(addrs)...)
	}
	return out, nil
}

func ipv4Addresses(addrs []net.Addr) []string {
	var out []string
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			out = append(out, v4.String())
		}
	}
	return out
}

// Default returns PreferredLocalAddress over the host's interfaces.
func Default() string {
	candidates, err := Candidates()
	if err != nil {
		return Fallback
	}
	return PreferredLocalAddress(candidates)
}
