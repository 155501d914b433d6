// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package discovery

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ckempo/TapoToggle/pkg/errors"
)

type fakePrescan struct {
	calls int
}

func (f *fakePrescan) Prescan(_ context.Context) {
	f.calls++
}

type fakeBroadcast struct {
	ip    net.IP
	err   error
	calls int
}

func (f *fakeBroadcast) Discover(_ context.Context, _ string) (net.IP, error) {
	f.calls++
	return f.ip, f.err
}

type fakeNeighbor struct {
	ip    net.IP
	err   error
	calls int
}

func (f *fakeNeighbor) Resolve(_ context.Context, _ string) (net.IP, error) {
	f.calls++
	return f.ip, f.err
}

func TestResolveBroadcastShortCircuitsNeighbor(t *testing.T) {
	pre := &fakePrescan{}
	bc := &fakeBroadcast{ip: net.ParseIP("192.168.1.80").To4()}
	nb := &fakeNeighbor{ip: net.ParseIP("10.0.0.1").To4()}

	r := &Resolver{prescan: pre, broadcast: bc, neighbor: nb}

	ip, err := r.Resolve(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.80", ip.String())

	assert.Equal(t, 1, pre.calls, "prescan always runs first")
	assert.Equal(t, 1, bc.calls)
	assert.Zero(t, nb.calls, "neighbor phase must not run after a broadcast match")
}

func TestResolveFallsBackToNeighbor(t *testing.T) {
	pre := &fakePrescan{}
	bc := &fakeBroadcast{err: errs.ErrDeviceNotFound}
	nb := &fakeNeighbor{ip: net.ParseIP("192.168.1.50").To4()}

	r := &Resolver{prescan: pre, broadcast: bc, neighbor: nb}

	ip, err := r.Resolve(context.Background(), "aa-bb-cc-dd-ee-ff")
	require.NoError(t, err)

	// The orchestrator's result is exactly the neighbor resolver's result.
	assert.Equal(t, "192.168.1.50", ip.String())
	assert.Equal(t, 1, nb.calls)
}

func TestResolveNotFoundEverywhere(t *testing.T) {
	r := &Resolver{
		prescan:   &fakePrescan{},
		broadcast: &fakeBroadcast{err: errs.ErrDeviceNotFound},
		neighbor:  &fakeNeighbor{err: errs.ErrDeviceNotFound},
	}

	_, err := r.Resolve(context.Background(), "aa:bb:cc:dd:ee:ff")
	assert.ErrorIs(t, err, errs.ErrDeviceNotFound)
}

func TestResolvePhaseOrdering(t *testing.T) {
	var order []string

	pre := prescanFunc(func(context.Context) { order = append(order, "prescan") })
	bc := broadcastFunc(func(context.Context, string) (net.IP, error) {
		order = append(order, "broadcast")
		return nil, errs.ErrDeviceNotFound
	})
	nb := neighborFunc(func(context.Context, string) (net.IP, error) {
		order = append(order, "neighbor")
		return nil, errs.ErrDeviceNotFound
	})

	r := &Resolver{prescan: pre, broadcast: bc, neighbor: nb}
	_, _ = r.Resolve(context.Background(), "aa:bb:cc:dd:ee:ff")

	assert.Equal(t, []string{"prescan", "broadcast", "neighbor"}, order)
}

func TestResolveCancelledBetweenPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	pre := prescanFunc(func(context.Context) { cancel() })
	bc := &fakeBroadcast{ip: net.ParseIP("192.168.1.80").To4()}

	r := &Resolver{prescan: pre, broadcast: bc, neighbor: &fakeNeighbor{}}

	_, err := r.Resolve(ctx, "aa:bb:cc:dd:ee:ff")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, bc.calls, "broadcast must not run after cancellation")
}

func TestNewResolverWiresDefaults(t *testing.T) {
	r := NewResolver(Options{})
	require.NotNil(t, r.prescan)
	require.NotNil(t, r.broadcast)
	require.NotNil(t, r.neighbor)
}

// Function adapters for the phase interfaces.

type prescanFunc func(context.Context)

func (f prescanFunc) Prescan(ctx context.Context) { f(ctx) }

type broadcastFunc func(context.Context, string) (net.IP, error)

func (f broadcastFunc) Discover(ctx context.Context, mac string) (net.IP, error) {
	return f(ctx, mac)
}

type neighborFunc func(context.Context, string) (net.IP, error)

func (f neighborFunc) Resolve(ctx context.Context, mac string) (net.IP, error) {
	return f(ctx, mac)
}
