// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package discovery

import (
	"context"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/ckempo/TapoToggle/pkg/logger"
	"github.com/ckempo/TapoToggle/pkg/macaddr"
	"github.com/ckempo/TapoToggle/pkg/metrics"

	errs "github.com/ckempo/TapoToggle/pkg/errors"
)

const defaultNeighborTimeout = 5 * time.Second

var ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// commandRunner abstracts subprocess execution so tests can feed canned
// neighbor-table output without an external process.
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// neighborResolver is the last-resort phase: it reads the OS neighbor/ARP
// table through the platform utility and scans its output for the target
// MAC. The prescan phase exists to make this table worth reading.
type neighborResolver struct {
	timeout time.Duration
	runner  commandRunner
}

func newNeighborResolver(timeout time.Duration) *neighborResolver {
	if timeout <= 0 {
		timeout = defaultNeighborTimeout
	}
	return &neighborResolver{timeout: timeout, runner: execRunner{}}
}

// neighborCommand picks the platform utility: iproute2 on Linux, arp
// everywhere else (BSD, macOS, Windows all speak "arp -a").
func neighborCommand() (string, []string) {
	if runtime.GOOS == "linux" {
		return "ip", []string{"neigh", "show"}
	}
	return "arp", []string{"-a"}
}

// Resolve scans neighbor-table output for a line mentioning the target MAC
// and extracts the first IPv4 literal on that line. A missing utility,
// subprocess failure, deadline expiry, or unparseable output all collapse
// to ErrDeviceNotFound; the caller cannot distinguish them and has no
// reason to.
func (r *neighborResolver) Resolve(ctx context.Context, mac string) (net.IP, error) {
	target := macaddr.Normalize(mac)
	if target == "" {
		return nil, errs.ErrDeviceNotFound
	}

	name, args := neighborCommand()
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metrics.NeighborLookups.Inc()
	out, err := r.runner.Output(runCtx, name, args...)
	if err != nil {
		logger.Debug().Err(err).Str("command", name).Msg("Neighbor-table lookup failed")
		return nil, errs.ErrDeviceNotFound
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !containsNormalized(line, target) {
			continue
		}
		match := ipv4Pattern.FindString(line)
		if match == "" {
			continue
		}
		ip := net.ParseIP(match)
		if ip == nil {
			continue
		}
		return ip.To4(), nil
	}

	return nil, errs.ErrDeviceNotFound
}

// containsNormalized reports whether the normalized target MAC appears as a
// substring of the text after the text itself is normalized. Used on both
// broadcast reply payloads and neighbor-table lines so separator and case
// conventions never matter.
func containsNormalized(text, normalizedMac string) bool {
	return strings.Contains(macaddr.Normalize(text), normalizedMac)
}
