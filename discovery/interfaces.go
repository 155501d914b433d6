// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package discovery

import (
	"net"
)

// InterfaceInfo holds the IPv4 unicast address and subnet mask of one
// active, non-loopback network interface. Recomputed on every discovery
// run; nothing here is cached between runs.
type InterfaceInfo struct {
	IP   net.IP
	Mask net.IPMask
}

// localInterfaces returns every up, non-loopback interface carrying an IPv4
// address. An empty result means "cannot discover" and is not an error;
// callers degrade to no-ops.
func localInterfaces() ([]InterfaceInfo, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var infos []InterfaceInfo
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			infos = append(infos, InterfaceInfo{IP: ip4, Mask: ipnet.Mask})
		}
	}

	return infos, nil
}

// directedBroadcast computes the highest address of the interface's subnet,
// ip | ^mask. Returns nil for non-IPv4 input.
func directedBroadcast(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	m4 := net.IP(mask).To4()
	if ip4 == nil || m4 == nil {
		return nil
	}
	bcast := ipToUint32(ip4) | ^ipToUint32(m4)
	return uint32ToIP(bcast)
}

// broadcastTargets builds the deduplicated candidate set for the broadcast
// phase: the limited broadcast address first, then each interface's directed
// broadcast in enumeration order. Order is stable so the sequential send
// loop is reproducible.
func broadcastTargets(infos []InterfaceInfo) []net.IP {
	targets := []net.IP{net.IPv4bcast.To4()}
	seen := map[string]bool{net.IPv4bcast.To4().String(): true}

	for _, info := range infos {
		bcast := directedBroadcast(info.IP, info.Mask)
		if bcast == nil || seen[bcast.String()] {
			continue
		}
		seen[bcast.String()] = true
		targets = append(targets, bcast)
	}

	return targets
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(u uint32) net.IP {
	return net.IPv4(byte(u>>24), byte(u>>16), byte(u>>8), byte(u)).To4()
}
