// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPingProbesSentCounter(t *testing.T) {
	initial := testutil.ToFloat64(PingProbesSent)
	PingProbesSent.Inc()
	final := testutil.ToFloat64(PingProbesSent)

	if final <= initial {
		t.Errorf("PingProbesSent should have increased, got %v -> %v", initial, final)
	}
}

func TestBroadcastAttemptsCounter(t *testing.T) {
	initial := testutil.ToFloat64(BroadcastAttempts)
	BroadcastAttempts.Inc()
	final := testutil.ToFloat64(BroadcastAttempts)

	if final != initial+1 {
		t.Errorf("BroadcastAttempts = %v, want %v", final, initial+1)
	}
}

func TestDiscoveryResultsVec(t *testing.T) {
	c := DiscoveryResults.WithLabelValues("resolved", "broadcast")
	initial := testutil.ToFloat64(c)
	c.Inc()

	if got := testutil.ToFloat64(c); got != initial+1 {
		t.Errorf("DiscoveryResults{resolved,broadcast} = %v, want %v", got, initial+1)
	}
}

func TestCloudRequestsVec(t *testing.T) {
	c := CloudRequests.WithLabelValues("login", "success")
	initial := testutil.ToFloat64(c)
	c.Inc()

	if got := testutil.ToFloat64(c); got != initial+1 {
		t.Errorf("CloudRequests{login,success} = %v, want %v", got, initial+1)
	}
}

func TestTogglesTotalVec(t *testing.T) {
	c := TogglesTotal.WithLabelValues("on")
	initial := testutil.ToFloat64(c)
	c.Inc()

	if got := testutil.ToFloat64(c); got != initial+1 {
		t.Errorf("TogglesTotal{on} = %v, want %v", got, initial+1)
	}
}
