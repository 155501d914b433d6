// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

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

const (
	// DiscoveryPort is the UDP port Tapo devices answer discovery queries on.
	DiscoveryPort = 20002

	defaultBroadcastTimeout = 1500 * time.Millisecond

	replyBufferSize = 2048
)

// discoveryPayload is the fixed query datagram. Devices answer with a
// vendor-specific text blob that embeds, among other things, their MAC.
var discoveryPayload = []byte(`{"system":{"get_sysinfo":{}}}`)

// attemptOutcome classifies one broadcast iteration. Making the swallowed
// failure modes explicit keeps them visible to tests even though the loop
// treats noReply and transportError identically.
type attemptOutcome int

const (
	outcomeMatched attemptOutcome = iota
	outcomeNoMatch
	outcomeNoReply
	outcomeTransportError
)

type attemptResult struct {
	outcome attemptOutcome
	ip      net.IP
	err     error
}

// broadcastClient sends the discovery query to each candidate broadcast
// address in turn and returns the source IP of the first reply that
// mentions the target MAC.
type broadcastClient struct {
	port    int
	timeout time.Duration
	targets func() ([]net.IP, error)
}

func newBroadcastClient(port int, timeout time.Duration) *broadcastClient {
	if port <= 0 {
		port = DiscoveryPort
	}
	if timeout <= 0 {
		timeout = defaultBroadcastTimeout
	}
	return &broadcastClient{
		port:    port,
		timeout: timeout,
		targets: func() ([]net.IP, error) {
			infos, err := localInterfaces()
			if err != nil {
				return nil, err
			}
			return broadcastTargets(infos), nil
		},
	}
}

// Discover runs the broadcast phase for the given MAC (any separator
// format). Candidates are tried strictly in order; a match short-circuits
// the rest. Transport failures on one candidate never abort the loop; only
// context cancellation does.
func (c *broadcastClient) Discover(ctx context.Context, mac string) (net.IP, error) {
	target := macaddr.Normalize(mac)
	if target == "" {
		return nil, errs.ErrDeviceNotFound
	}

	candidates, err := c.targets()
	if err != nil {
		logger.Debug().Err(err).Msg("Broadcast discovery skipped: interface enumeration failed")
		return nil, errs.ErrDeviceNotFound
	}

	for _, bcast := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := c.attempt(bcast, target)
		switch res.outcome {
		case outcomeMatched:
			logger.Debug().
				Str("broadcast", bcast.String()).
				Str("resolved_ip", res.ip.String()).
				Msg("Broadcast reply matched target MAC")
			return res.ip, nil
		case outcomeTransportError:
			logger.Debug().Err(res.err).
				Str("broadcast", bcast.String()).
				Msg("Broadcast attempt failed, trying next candidate")
		case outcomeNoMatch:
			logger.Debug().
				Str("broadcast", bcast.String()).
				Msg("Broadcast reply did not mention target MAC")
		case outcomeNoReply:
			// Expected on quiet segments; nothing to log.
		}
	}

	return nil, errs.ErrDeviceNotFound
}

// attempt runs one full iteration against a single broadcast address: open
// a fresh socket, send the query, wait for at most one datagram. The socket
// never outlives the iteration, so stale replies cannot leak into the next
// candidate's receive window.
func (c *broadcastClient) attempt(bcast net.IP, target string) attemptResult {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return attemptResult{outcome: outcomeTransportError, err: err}
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: bcast, Port: c.port}
	if _, err := conn.WriteToUDP(discoveryPayload, dst); err != nil {
		return attemptResult{outcome: outcomeTransportError, err: err}
	}
	metrics.BroadcastAttempts.Inc()

	if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return attemptResult{outcome: outcomeTransportError, err: err}
	}

	buf := make([]byte, replyBufferSize)
	n, src, err := conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return attemptResult{outcome: outcomeNoReply}
		}
		return attemptResult{outcome: outcomeTransportError, err: err}
	}
	metrics.BroadcastReplies.Inc()

	if !payloadMentionsMac(buf[:n], target) {
		return attemptResult{outcome: outcomeNoMatch}
	}

	// The datagram's source address is authoritative; anything the payload
	// claims about its own IP is ignored.
	return attemptResult{outcome: outcomeMatched, ip: src.IP.To4()}
}

// payloadMentionsMac reports whether the normalized target MAC appears in
// the reply text. The payload is normalized the same way as the MAC, so
// replies embedding "AA-BB-CC-DD-EE-FF" match a target "aa:bb:cc:dd:ee:ff".
func payloadMentionsMac(payload []byte, normalizedMac string) bool {
	return containsNormalized(string(payload), normalizedMac)
}
