// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package cloud implements the TP-Link cloud account client.
//
// The cloud API is a single JSON-over-HTTPS endpoint: login exchanges
// account credentials for a bearer token, getDeviceList returns the
// account's registered devices. The device records carry the MAC address
// that local discovery then resolves to an IP.
//
// All requests run behind a circuit breaker so a flapping WAN link fails
// fast instead of stacking up HTTP timeouts.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/ckempo/TapoToggle/pkg/logger"
	"github.com/ckempo/TapoToggle/pkg/macaddr"
	"github.com/ckempo/TapoToggle/pkg/metrics"

	errs "github.com/ckempo/TapoToggle/pkg/errors"
)

// DefaultEndpoint is the production TP-Link cloud API endpoint.
const DefaultEndpoint = "https://wap.tplinkcloud.com"

const requestTimeout = 10 * time.Second

// Device is one record from the account's device list.
type Device struct {
	Alias       string `json:"alias"`
	DeviceMac   string `json:"deviceMac"`
	DeviceModel string `json:"deviceModel"`
	Nickname    string `json:"nickname"`
}

// Client talks to the TP-Link cloud API.
type Client struct {
	endpoint     string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	terminalUUID string
}

// New creates a cloud client. An empty endpoint selects the production API.
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: requestTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "tplink-cloud",
			Timeout: 30 * time.Second,
		}),
		terminalUUID: uuid.NewString(),
	}
}

type apiRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type apiResponse struct {
	ErrorCode int             `json:"error_code"`
	Msg       string          `json:"msg,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Login authenticates the account and returns a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	params := map[string]string{
		"appType":       "Tapo_Android",
		"cloudUserName": email,
		"cloudPassword": password,
		"terminalUUID":  c.terminalUUID,
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, "", apiRequest{Method: "login", Params: params}, &result); err != nil {
		metrics.CloudRequests.WithLabelValues("login", "error").Inc()
		return "", errs.NewAuthError("login", err)
	}
	if result.Token == "" {
		metrics.CloudRequests.WithLabelValues("login", "error").Inc()
		return "", errs.NewAuthError("login", fmt.Errorf("response carried no token"))
	}

	metrics.CloudRequests.WithLabelValues("login", "success").Inc()
	logger.Debug().Str("email", email).Msg("Cloud login succeeded")
	return result.Token, nil
}

// ListDevices returns the account's registered devices.
func (c *Client) ListDevices(ctx context.Context, token string) ([]Device, error) {
	var result struct {
		DeviceList []Device `json:"deviceList"`
	}
	if err := c.call(ctx, token, apiRequest{Method: "getDeviceList"}, &result); err != nil {
		metrics.CloudRequests.WithLabelValues("list_devices", "error").Inc()
		return nil, errs.NewAuthError("list devices", err)
	}

	metrics.CloudRequests.WithLabelValues("list_devices", "success").Inc()
	logger.Debug().Int("devices", len(result.DeviceList)).Msg("Cloud device list fetched")
	return result.DeviceList, nil
}

// call performs one API request through the circuit breaker.
func (c *Client) call(ctx context.Context, token string, req apiRequest, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	target := c.endpoint
	if token != "" {
		target += "?token=" + url.QueryEscape(token)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var apiResp apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if apiResp.ErrorCode != 0 {
			return nil, fmt.Errorf("api error %d (%s)", apiResp.ErrorCode, apiResp.Msg)
		}
		if out != nil && apiResp.Result != nil {
			if err := json.Unmarshal(apiResp.Result, out); err != nil {
				return nil, fmt.Errorf("failed to decode result: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

// FindDevice selects the device matching the given MAC (any separator
// format) or, when the MAC is empty, the given alias. Alias matching is
// case-insensitive and also consults the nickname field.
func FindDevice(devices []Device, mac, alias string) (*Device, error) {
	if mac != "" {
		target := macaddr.Normalize(mac)
		for i := range devices {
			if macaddr.Normalize(devices[i].DeviceMac) == target {
				return &devices[i], nil
			}
		}
		return nil, errs.ErrDeviceNotListed
	}

	for i := range devices {
		if strings.EqualFold(devices[i].Alias, alias) || strings.EqualFold(devices[i].Nickname, alias) {
			return &devices[i], nil
		}
	}
	return nil, errs.ErrDeviceNotListed
}
