// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for TapoToggle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PingProbesSent tracks the total number of ICMP echo probes sent by the prescanner
	PingProbesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapo_ping_probes_sent_total",
		Help: "Total number of ICMP echo probes sent during subnet prescans",
	})

	// BroadcastAttempts tracks discovery datagrams sent per broadcast target
	BroadcastAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapo_broadcast_attempts_total",
		Help: "Total number of discovery datagrams sent to broadcast addresses",
	})

	// BroadcastReplies tracks inbound discovery replies, matching or not
	BroadcastReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapo_broadcast_replies_total",
		Help: "Total number of datagrams received in reply to discovery broadcasts",
	})

	// NeighborLookups tracks invocations of the OS neighbor-table fallback
	NeighborLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapo_neighbor_lookups_total",
		Help: "Total number of neighbor-table fallback lookups",
	})

	// DiscoveryDuration tracks how long the full discovery chain takes
	DiscoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tapo_discovery_duration_seconds",
		Help:    "Duration of the prescan/broadcast/neighbor discovery chain in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DiscoveryResults tracks terminal discovery outcomes by result
	DiscoveryResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapo_discovery_results_total",
		Help: "Terminal discovery outcomes",
	}, []string{"result", "phase"})

	// CloudRequests tracks cloud API calls by operation and outcome
	CloudRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapo_cloud_requests_total",
		Help: "Cloud API requests by operation and outcome",
	}, []string{"op", "outcome"})

	// TogglesTotal tracks power state changes driven against devices
	TogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapo_toggles_total",
		Help: "Power state changes by requested state",
	}, []string{"state"})

	// EventWriteErrors tracks failed toggle-event writes to InfluxDB
	EventWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapo_event_write_errors_total",
		Help: "Total number of failed toggle-event writes to InfluxDB",
	})
)
