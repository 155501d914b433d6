// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ckempo/TapoToggle/cloud"
	"github.com/ckempo/TapoToggle/config"
	"github.com/ckempo/TapoToggle/discovery"
	errs "github.com/ckempo/TapoToggle/pkg/errors"
	"github.com/ckempo/TapoToggle/pkg/interfaces"
	"github.com/ckempo/TapoToggle/pkg/logger"
	"github.com/ckempo/TapoToggle/pkg/macaddr"
	"github.com/ckempo/TapoToggle/pkg/metrics"
	"github.com/ckempo/TapoToggle/storage"
	"github.com/ckempo/TapoToggle/tapo"
)

const (
	runTimeout     = 2 * time.Minute
	recordTimeout  = 5 * time.Second
	metricsTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	mac := flag.String("mac", "", "Target device MAC address (overrides config)")
	alias := flag.String("alias", "", "Target device alias (overrides config)")
	state := flag.String("state", "toggle", "Desired power state: on, off, or toggle")
	metricsPort := flag.String("metrics-port", "", "Port for Prometheus metrics endpoint (disabled when empty)")
	validateConfig := flag.Bool("validate-config", false, "Validate configuration file and exit")
	flag.Parse()

	if *validateConfig {
		os.Exit(performConfigValidation(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Initialize("error")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(cfg.Logging.Level)

	if *mac != "" {
		cfg.Device.Mac = *mac
	}
	if *alias != "" {
		cfg.Device.Alias = *alias
	}
	if cfg.Device.Mac == "" && cfg.Device.Alias == "" {
		logger.Fatal().Msg("No target device: set device.mac or device.alias in config, or pass -mac/-alias")
	}

	if _, err := parseTargetState(*state); err != nil {
		logger.Fatal().Err(err).Msg("Invalid -state flag")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	shutdownMetrics := startMetricsServer(*metricsPort)
	defer shutdownMetrics()

	if err := run(ctx, cfg, *state); err != nil {
		logger.Fatal().Err(err).Msg("Toggle failed")
	}
}

// parseTargetState validates the -state flag. The toggle case needs the
// current relay state, so it is resolved later by decideTargetState.
func parseTargetState(state string) (string, error) {
	switch state {
	case "on", "off", "toggle":
		return state, nil
	}
	return "", fmt.Errorf("unknown state %q, want on, off, or toggle", state)
}

// decideTargetState maps the requested state and the device's current relay
// state to the state to drive.
func decideTargetState(state string, currentOn bool) bool {
	switch state {
	case "on":
		return true
	case "off":
		return false
	default:
		return !currentOn
	}
}

// run executes the full flow: cloud lookup, local discovery, device toggle,
// and optional event recording.
func run(ctx context.Context, cfg *config.Config, state string) error {
	logger.Info().Str("mac", cfg.Device.Mac).Str("alias", cfg.Device.Alias).
		Str("state", state).Msg("Starting TapoToggle")

	// Cloud: authenticate and find the target device.
	cloudClient := cloud.New(cfg.Cloud.Endpoint)
	token, err := cloudClient.Login(ctx, cfg.Cloud.Email, cfg.Cloud.Password)
	if err != nil {
		return err
	}

	devices, err := cloudClient.ListDevices(ctx, token)
	if err != nil {
		return err
	}
	logger.Info().Int("devices", len(devices)).Msg("Cloud device list fetched")

	device, err := cloud.FindDevice(devices, cfg.Device.Mac, cfg.Device.Alias)
	if err != nil {
		return err
	}
	targetMac := macaddr.Normalize(device.DeviceMac)
	logger.Info().Str("mac", targetMac).Str("alias", device.Alias).
		Str("model", device.DeviceModel).Msg("Target device selected")

	// Local discovery: MAC to IP.
	resolver := discovery.NewResolver(discovery.Options{
		BroadcastPort:    cfg.Discovery.BroadcastPort,
		BroadcastTimeout: cfg.Discovery.BroadcastTimeout,
		PingTimeout:      cfg.Discovery.PingTimeout,
		ProbesPerSecond:  cfg.Discovery.ProbesPerSecond,
		NeighborTimeout:  cfg.Discovery.NeighborTimeout,
	})

	discoveryStart := time.Now()
	ip, err := resolver.Resolve(ctx, targetMac)
	if err != nil {
		if errs.IsDiscoveryError(err) {
			logger.Error().Str("mac", targetMac).
				Msg("Device not found on the local network; is it powered and on this subnet?")
		}
		return err
	}
	discoveryDuration := time.Since(discoveryStart)
	logger.Info().Str("ip", ip.String()).Dur("took", discoveryDuration).Msg("Device located")

	// Local protocol: handshake, login, read, set.
	plug := tapo.NewClient(ip)
	if err := plug.Handshake(ctx); err != nil {
		return err
	}
	if err := plug.Login(ctx, cfg.Cloud.Email, cfg.Cloud.Password); err != nil {
		return err
	}

	info, err := plug.GetDeviceInfo(ctx)
	if err != nil {
		return err
	}

	target := decideTargetState(state, info.DeviceOn)
	if err := plug.SetPower(ctx, target); err != nil {
		return err
	}
	metrics.TogglesTotal.WithLabelValues(stateLabel(target)).Inc()

	fmt.Printf("%s (%s) at %s: %s -> %s\n",
		displayName(device, info), targetMac, ip,
		stateLabel(info.DeviceOn), stateLabel(target))

	recordEvent(cfg, &interfaces.ToggleEvent{
		Mac:               targetMac,
		IP:                ip.String(),
		Alias:             device.Alias,
		Model:             device.DeviceModel,
		PreviousOn:        info.DeviceOn,
		NewOn:             target,
		DiscoveryDuration: discoveryDuration,
		Timestamp:         time.Now(),
	})

	return nil
}

// recordEvent writes a toggle event to InfluxDB when recording is
// configured. Failures are logged, never fatal; the toggle already happened.
func recordEvent(cfg *config.Config, event *interfaces.ToggleEvent) {
	if !cfg.InfluxDB.Enabled() {
		return
	}

	recorder, err := storage.NewRecorder(
		cfg.InfluxDB.URL,
		cfg.InfluxDB.Token,
		cfg.InfluxDB.Organization,
		cfg.InfluxDB.Bucket,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to InfluxDB; toggle event not recorded")
		return
	}
	defer recorder.Close()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := recorder.RecordToggle(ctx, event); err != nil {
		logger.Error().Err(err).Msg("Failed to record toggle event")
	}
}

func displayName(device *cloud.Device, info *tapo.DeviceInfo) string {
	if info.Nickname != "" {
		return info.Nickname
	}
	if device.Alias != "" {
		return device.Alias
	}
	return device.DeviceModel
}

func stateLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// startMetricsServer serves Prometheus metrics and a health endpoint on
// localhost when a port is configured. Returns a shutdown func.
func startMetricsServer(port string) func() {
	if port == "" {
		return func() {}
	}

	healthLimiter := rate.NewLimiter(10, 20)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", rateLimitMiddleware(healthLimiter, healthCheckHandler))

	server := &http.Server{
		Addr:    "localhost:" + port,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Starting metrics server (localhost only)")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Metrics server shutdown error")
		}
	}
}

// rateLimitMiddleware wraps an HTTP handler with rate limiting
func rateLimitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rate limit exceeded for health endpoint")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// healthCheckHandler handles health check requests
func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("OK")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write health check response")
	}
}

// performConfigValidation validates the configuration file and returns exit code
func performConfigValidation(configPath string) int {
	logger.Initialize("info")
	logger.Info().Str("path", configPath).Msg("Validating configuration file")

	if err := config.ValidateWithSchema(configPath); err != nil {
		logger.Error().Err(err).Msg("Configuration schema validation failed")
		fmt.Fprintf(os.Stderr, "\nConfiguration validation FAILED\n")
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Configuration validation failed")
		fmt.Fprintf(os.Stderr, "\nConfiguration validation FAILED\nError: %v\n\n", err)
		return 1
	}

	fmt.Println("\nConfiguration validation PASSED")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Cloud Email: %s\n", cfg.Cloud.Email)
	fmt.Printf("  Device MAC: %s\n", cfg.Device.Mac)
	fmt.Printf("  Device Alias: %s\n", cfg.Device.Alias)
	fmt.Printf("  Broadcast Port: %d\n", cfg.Discovery.BroadcastPort)
	fmt.Printf("  Broadcast Timeout: %s\n", cfg.Discovery.BroadcastTimeout)
	fmt.Printf("  Ping Timeout: %s\n", cfg.Discovery.PingTimeout)
	fmt.Printf("  Probes Per Second: %d\n", cfg.Discovery.ProbesPerSecond)
	fmt.Printf("  Neighbor Timeout: %s\n", cfg.Discovery.NeighborTimeout)
	fmt.Printf("  Log Level: %s\n", cfg.Logging.Level)

	if cfg.InfluxDB.Enabled() {
		fmt.Printf("  Event Recording: Enabled (%s)\n", cfg.InfluxDB.URL)
	} else {
		fmt.Println("  Event Recording: Disabled")
	}

	fmt.Println("\nAll validation checks passed. Configuration is ready for use.")
	return 0
}
