// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package interfaces defines abstract interfaces for core system components.
// This package promotes loose coupling and testability by allowing
// dependency injection and easy mocking in tests.
package interfaces

import (
	"context"
	"net"
)

// DeviceResolver resolves a device's current IPv4 address on the local
// network given its MAC address. Implementations return
// errors.ErrDeviceNotFound when the device cannot be located; that is a
// normal terminal outcome, not an exceptional one.
type DeviceResolver interface {
	// Resolve locates the device with the given MAC address.
	// The MAC may use any separator convention.
	Resolve(ctx context.Context, mac string) (net.IP, error)
}
