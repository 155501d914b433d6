// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"golang.org/x/time/rate"

	"github.com/ckempo/TapoToggle/pkg/logger"
	"github.com/ckempo/TapoToggle/pkg/metrics"
)

const (
	defaultPingTimeout = 150 * time.Millisecond
	defaultProbeRate   = 128 // probe launches per second
	probeBurst         = 32
)

// subnetPrescanner sweeps the first interface's /24 with ICMP echoes. The
// replies themselves are irrelevant: any host that answers ends up in the
// OS neighbor cache, which is what the neighbor-table phase reads. Every
// probe failure is swallowed; the sweep reports nothing.
type subnetPrescanner struct {
	timeout    time.Duration
	limiter    *rate.Limiter
	interfaces func() ([]InterfaceInfo, error)
}

func newSubnetPrescanner(timeout time.Duration, probesPerSecond int) *subnetPrescanner {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	if probesPerSecond <= 0 {
		probesPerSecond = defaultProbeRate
	}
	return &subnetPrescanner{
		timeout:    timeout,
		limiter:    rate.NewLimiter(rate.Limit(probesPerSecond), probeBurst),
		interfaces: localInterfaces,
	}
}

// Prescan probes all 254 host addresses of the first interface's /24
// concurrently and returns once every probe has finished or timed out.
// A no-op when no IPv4 interface exists.
func (p *subnetPrescanner) Prescan(ctx context.Context) {
	infos, err := p.interfaces()
	if err != nil || len(infos) == 0 {
		logger.Debug().Err(err).Msg("Prescan skipped: no usable IPv4 interface")
		return
	}

	base := infos[0].IP.To4()
	if base == nil {
		return
	}

	start := time.Now()
	var wg sync.WaitGroup
	for host := 1; host <= 254; host++ {
		if err := p.limiter.Wait(ctx); err != nil {
			break
		}
		addr := fmt.Sprintf("%d.%d.%d.%d", base[0], base[1], base[2], host)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.probe(ctx, addr)
		}()
	}
	wg.Wait()

	logger.Debug().
		Str("subnet", fmt.Sprintf("%d.%d.%d.0/24", base[0], base[1], base[2])).
		Dur("elapsed", time.Since(start)).
		Msg("Subnet prescan complete")
}

// probe sends a single ICMP echo. Timeouts, unreachable hosts, and
// permission errors all land here and go nowhere else.
func (p *subnetPrescanner) probe(ctx context.Context, addr string) {
	pr := probing.New(addr)
	pr.Count = 1
	pr.Timeout = p.timeout
	pr.RecordRtts = false
	pr.SetPrivileged(false)
	pr.SetLogger(nil)

	metrics.PingProbesSent.Inc()
	_ = pr.RunWithContext(ctx)
}
