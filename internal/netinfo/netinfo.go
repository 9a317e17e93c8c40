// Package netinfo reports the addresses other LAN devices can use to reach this host.
package netinfo

import (
	"net"
	"strconv"
)

// LocalIPv4s returns every non-loopback IPv4 address on the host's interfaces,
// in interface enumeration order. An interface listing failure yields an empty list.
func LocalIPv4s() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return []string{}
	}
	return FilterIPv4(addrs)
}

// FilterIPv4 keeps the non-loopback IPv4 addresses, without duplicates.
func FilterIPv4(addrs []net.Addr) []string {
	result := make([]string, 0, len(addrs))
	seen := make(map[string]struct{})

	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}

		ipv4 := ip.To4()
		if ipv4 == nil {
			continue
		}

		s := ipv4.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result
}

// URLs formats http://ip:port for each address.
func URLs(ips []string, port int) []string {
	urls := make([]string, 0, len(ips))
	for _, ip := range ips {
		urls = append(urls, "http://"+net.JoinHostPort(ip, strconv.Itoa(port)))
	}
	return urls
}
