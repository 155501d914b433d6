// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package errors provides structured error types for TapoToggle.
//
// The discovery engine never propagates transport failures past a phase
// boundary, so the types here mostly serve the collaborators around it:
// cloud authentication, the local device protocol, configuration, and the
// optional event recorder. Sentinels cover the terminal outcomes the
// orchestrator itself reports.
//
// # Example Usage
//
//	err := errors.NewAuthError("login", fmt.Errorf("status 403"))
//	if errors.IsAuthError(err) {
//	    log.Printf("cloud authentication failed: %v", err)
//	}
package errors

import (
	"errors"
	"fmt"
)

// DiscoveryError represents an error during local device discovery.
// These stay internal to the discovery package's diagnostics; the only
// discovery failure callers see is ErrDeviceNotFound.
type DiscoveryError struct {
	Op  string // Operation being performed (e.g., "broadcast send", "neighbor scan")
	Err error  // Underlying error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("discovery %s failed", e.Op)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(op string, err error) *DiscoveryError {
	return &DiscoveryError{Op: op, Err: err}
}

// IsDiscoveryError checks if an error is a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// AuthError represents a cloud account authentication or listing failure.
type AuthError struct {
	Op  string // Operation being performed (e.g., "login", "list devices")
	Err error  // Underlying error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cloud %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cloud %s failed", e.Op)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new cloud authentication error.
func NewAuthError(op string, err error) *AuthError {
	return &AuthError{Op: op, Err: err}
}

// IsAuthError checks if an error is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// LoginError represents a local device protocol failure.
type LoginError struct {
	Op   string // Operation being performed (e.g., "handshake", "set power")
	Addr string // Device address (if known)
	Err  error  // Underlying error
}

func (e *LoginError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("device %s (%s): %v", e.Op, e.Addr, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("device %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("device %s failed", e.Op)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// NewLoginError creates a new local device protocol error.
func NewLoginError(op string, addr string, err error) *LoginError {
	return &LoginError{Op: op, Addr: addr, Err: err}
}

// IsLoginError checks if an error is a LoginError.
func IsLoginError(err error) bool {
	var le *LoginError
	return errors.As(err, &le)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field string // Configuration field that caused the error
	Value string // Invalid value (optional, may be redacted for sensitive fields)
	Err   error  // Underlying error or description
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error in field %q (value=%q): %v", e.Field, e.Value, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error in field %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StorageError represents a toggle-event recorder failure.
type StorageError struct {
	Op  string // Operation being performed (e.g., "write event", "health")
	Err error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s failed", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage error.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError checks if an error is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// NetworkError represents a network-level failure outside discovery.
type NetworkError struct {
	Op   string // Operation being performed (e.g., "connect", "send")
	Addr string // Network address (if applicable)
	Err  error  // Underlying error
}

func (e *NetworkError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("network %s (%s): %v", e.Op, e.Addr, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("network %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("network %s failed", e.Op)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new network error.
func NewNetworkError(op string, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// IsNetworkError checks if an error is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Sentinel errors for common conditions
var (
	// ErrDeviceNotFound indicates the target device could not be resolved
	// on the local network. This is the discovery engine's only terminal
	// failure and it is a normal outcome, not an exceptional one.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNoInterfaces indicates no usable IPv4 interface exists; discovery
	// phases that need one become no-ops.
	ErrNoInterfaces = errors.New("no usable IPv4 interface")

	// ErrDeviceNotListed indicates the cloud account has no device with
	// the requested MAC or alias.
	ErrDeviceNotListed = errors.New("device not in cloud device list")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timeout")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
