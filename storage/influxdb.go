// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package storage provides InfluxDB persistence for toggle events.
package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	errs "github.com/ckempo/TapoToggle/pkg/errors"
	"github.com/ckempo/TapoToggle/pkg/interfaces"
	"github.com/ckempo/TapoToggle/pkg/logger"
	"github.com/ckempo/TapoToggle/pkg/metrics"
)

const healthCheckTimeout = 5 * time.Second

// Recorder writes toggle events to InfluxDB. It satisfies
// interfaces.EventRecorder.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

// NewRecorder creates a recorder and verifies the server is reachable.
func NewRecorder(url, token, org, bucket string) (*Recorder, error) {
	client := influxdb2.NewClient(url, token)

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, errs.NewStorageError("connect", fmt.Errorf("failed to connect to InfluxDB: %w", err))
	}

	if health.Status != "pass" {
		client.Close()
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return nil, errs.NewStorageError("connect", fmt.Errorf("InfluxDB health check failed: %s", message))
	}

	logger.Info().Str("url", url).Str("status", string(health.Status)).Msg("Connected to InfluxDB")

	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		bucket:   bucket,
		org:      org,
	}, nil
}

// RecordToggle writes a single toggle event.
func (r *Recorder) RecordToggle(ctx context.Context, event *interfaces.ToggleEvent) error {
	// Validate input
	if event == nil {
		return errs.NewStorageError("write", fmt.Errorf("event cannot be nil"))
	}
	if event.Mac == "" {
		return errs.NewStorageError("write", fmt.Errorf("event MAC cannot be empty"))
	}
	if event.Timestamp.IsZero() {
		return errs.NewStorageError("write", fmt.Errorf("event timestamp cannot be zero"))
	}

	p := influxdb2.NewPoint(
		"power_toggle",
		map[string]string{
			"mac":   event.Mac,
			"model": event.Model,
		},
		map[string]interface{}{
			"ip":           event.IP,
			"alias":        event.Alias,
			"previous_on":  event.PreviousOn,
			"new_on":       event.NewOn,
			"discovery_ms": event.DiscoveryDuration.Milliseconds(),
		},
		event.Timestamp,
	)

	if err := r.writeAPI.WritePoint(ctx, p); err != nil {
		metrics.EventWriteErrors.Inc()
		return errs.NewStorageError("write", err)
	}
	return nil
}

// Health checks that the server still reports healthy.
func (r *Recorder) Health(ctx context.Context) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return errs.NewStorageError("health", err)
	}
	if health.Status != "pass" {
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return errs.NewStorageError("health", fmt.Errorf("InfluxDB health check failed: %s", message))
	}
	return nil
}

// Close flushes pending writes and closes the client.
func (r *Recorder) Close() {
	logger.Info().Msg("Closing InfluxDB connection")
	r.client.Close()
}

// QueryLastToggle retrieves the most recent toggle event for a device.
func (r *Recorder) QueryLastToggle(ctx context.Context, mac string) (*interfaces.ToggleEvent, error) {
	if mac == "" {
		return nil, errs.NewStorageError("query", fmt.Errorf("MAC cannot be empty"))
	}

	queryAPI := r.client.QueryAPI(r.org)

	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -24h)
			|> filter(fn: (r) => r._measurement == "power_toggle")
			|> filter(fn: (r) => r.mac == "%s")
			|> last()
	`, r.bucket, mac)

	result, err := queryAPI.Query(ctx, query)
	if err != nil {
		return nil, errs.NewStorageError("query", err)
	}
	defer func() {
		_ = result.Close()
	}()

	event := &interfaces.ToggleEvent{Mac: mac}

	for result.Next() {
		record := result.Record()

		if model, ok := record.ValueByKey("model").(string); ok {
			event.Model = model
		}

		event.Timestamp = record.Time()

		switch record.Field() {
		case "ip":
			if val, ok := record.Value().(string); ok {
				event.IP = val
			}
		case "alias":
			if val, ok := record.Value().(string); ok {
				event.Alias = val
			}
		case "previous_on":
			if val, ok := record.Value().(bool); ok {
				event.PreviousOn = val
			}
		case "new_on":
			if val, ok := record.Value().(bool); ok {
				event.NewOn = val
			}
		case "discovery_ms":
			if val, ok := record.Value().(int64); ok {
				event.DiscoveryDuration = time.Duration(val) * time.Millisecond
			}
		}
	}

	if result.Err() != nil {
		return nil, errs.NewStorageError("query", result.Err())
	}

	return event, nil
}
