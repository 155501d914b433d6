// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package discovery resolves a Tapo device's current IPv4 address on the
// local network given only its MAC address.
//
// The device's IP is assigned by DHCP and is not known in advance, so the
// resolver reconciles three independent, unreliable mechanisms into a
// single resolved-or-failed outcome within bounded time:
//
//  1. Subnet prescan: a concurrent ICMP echo sweep across the local /24.
//     The replies are discarded; the sweep exists to populate the OS
//     neighbor (ARP) cache as a side effect.
//  2. Broadcast discovery: a vendor query datagram sent by UDP to each
//     candidate broadcast address in turn. The first reply whose payload
//     mentions the target MAC resolves the search; the reply's source
//     address is the answer.
//  3. Neighbor table: a fallback that shells out to the OS ARP/neighbor
//     utility and scans its output for the MAC.
//
// The phases run strictly in sequence. Phase 2 short-circuits phase 3 on
// success; phase 3's result, found or not, is terminal. Every MAC
// comparison anywhere in the chain uses the normalized form (lowercase hex,
// no separators) because the cloud API, the discovery protocol, and the OS
// utilities each use different separator conventions.
//
// Network unreliability is expected and absorbed: individual probe
// timeouts, socket errors, and subprocess failures are swallowed inside
// their phase. The only failure Resolve surfaces is errors.ErrDeviceNotFound,
// and that is a normal outcome, not an exception.
//
// # Example Usage
//
//	resolver := discovery.NewResolver(discovery.Options{})
//
//	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
//	defer cancel()
//
//	ip, err := resolver.Resolve(ctx, "AA:BB:CC:DD:EE:FF")
//	if errors.Is(err, errs.ErrDeviceNotFound) {
//	    // device is not on this network right now
//	}
package discovery

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ckempo/TapoToggle/pkg/logger"
	"github.com/ckempo/TapoToggle/pkg/macaddr"
	"github.com/ckempo/TapoToggle/pkg/metrics"

	errs "github.com/ckempo/TapoToggle/pkg/errors"
)

// prescanner primes the network environment; it reports nothing.
type prescanner interface {
	Prescan(ctx context.Context)
}

// broadcaster runs the broadcast discovery phase.
type broadcaster interface {
	Discover(ctx context.Context, mac string) (net.IP, error)
}

// neighborLookup runs the neighbor-table fallback phase.
type neighborLookup interface {
	Resolve(ctx context.Context, mac string) (net.IP, error)
}

// Options tunes the discovery phases. Zero values select the defaults.
type Options struct {
	// BroadcastPort is the UDP port discovery queries are sent to.
	BroadcastPort int
	// BroadcastTimeout bounds the receive wait per broadcast address.
	BroadcastTimeout time.Duration
	// PingTimeout bounds each individual ICMP probe.
	PingTimeout time.Duration
	// ProbesPerSecond paces ICMP probe launches during the prescan.
	ProbesPerSecond int
	// NeighborTimeout bounds the neighbor-table subprocess.
	NeighborTimeout time.Duration
}

// Resolver chains the three discovery phases. It holds no state between
// calls; every entity created during a Resolve is discarded when it returns.
type Resolver struct {
	prescan   prescanner
	broadcast broadcaster
	neighbor  neighborLookup
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts Options) *Resolver {
	return &Resolver{
		prescan:   newSubnetPrescanner(opts.PingTimeout, opts.ProbesPerSecond),
		broadcast: newBroadcastClient(opts.BroadcastPort, opts.BroadcastTimeout),
		neighbor:  newNeighborResolver(opts.NeighborTimeout),
	}
}

// Resolve locates the device with the given MAC address. The MAC may use
// any separator convention. It returns the device's IPv4 address, or
// errs.ErrDeviceNotFound when all three phases come up empty, or the
// context's error when cancelled between phases.
func (r *Resolver) Resolve(ctx context.Context, mac string) (net.IP, error) {
	target := macaddr.Normalize(mac)
	start := time.Now()
	defer func() {
		metrics.DiscoveryDuration.Observe(time.Since(start).Seconds())
	}()

	logger.Debug().Str("target_mac", target).Msg("Starting local discovery")

	// Phase 1: warm the neighbor cache. Result deliberately ignored.
	r.prescan.Prescan(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 2: broadcast discovery; success short-circuits the fallback.
	ip, err := r.broadcast.Discover(ctx, target)
	if err == nil {
		metrics.DiscoveryResults.WithLabelValues("resolved", "broadcast").Inc()
		logger.Info().Str("target_mac", target).Str("ip", ip.String()).
			Str("phase", "broadcast").Msg("Device resolved")
		return ip, nil
	}
	if !errors.Is(err, errs.ErrDeviceNotFound) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 3: neighbor table. Whatever it says is final.
	ip, err = r.neighbor.Resolve(ctx, target)
	if err != nil {
		if errors.Is(err, errs.ErrDeviceNotFound) {
			metrics.DiscoveryResults.WithLabelValues("not_found", "neighbor").Inc()
			logger.Info().Str("target_mac", target).Msg("Device not found on local network")
		}
		return nil, err
	}

	metrics.DiscoveryResults.WithLabelValues("resolved", "neighbor").Inc()
	logger.Info().Str("target_mac", target).Str("ip", ip.String()).
		Str("phase", "neighbor").Msg("Device resolved")
	return ip, nil
}
