// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package interfaces

import (
	"context"
	"time"
)

// ToggleEvent records one completed power-state change.
// This is declared here rather than in storage to avoid circular dependencies.
type ToggleEvent struct {
	Mac               string        // Normalized device MAC
	IP                string        // Resolved IPv4 address
	Alias             string        // Cloud-reported device alias
	Model             string        // Cloud-reported device model
	PreviousOn        bool          // Relay state before the change
	NewOn             bool          // Relay state after the change
	DiscoveryDuration time.Duration // How long local discovery took
	Timestamp         time.Time
}

// EventRecorder persists toggle events. Recording is best-effort: a failed
// write must not fail the toggle that produced it.
type EventRecorder interface {
	// RecordToggle writes a single toggle event
	RecordToggle(ctx context.Context, event *ToggleEvent) error

	// Health checks if the backend is reachable
	Health(ctx context.Context) error

	// Close gracefully shuts down the recorder
	Close()
}
