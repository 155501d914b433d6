// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package tapo implements the local Tapo device protocol.
//
// Once discovery has produced an IP address, the device is driven over its
// local HTTP endpoint in two phases: a handshake that negotiates an AES
// session from an ephemeral RSA keypair, then authenticated JSON commands
// tunnelled through the securePassthrough envelope. The caller sequence is
// Handshake, Login, then any number of GetDeviceInfo/SetPower calls.
package tapo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ckempo/TapoToggle/pkg/logger"

	errs "github.com/ckempo/TapoToggle/pkg/errors"
)

const requestTimeout = 10 * time.Second

// DeviceInfo is the subset of get_device_info the toggle flow needs.
type DeviceInfo struct {
	DeviceOn bool   `json:"device_on"`
	Nickname string `json:"nickname"`
}

// Client drives one device at a resolved IP address. Not safe for
// concurrent use; the toggle flow is strictly sequential anyway.
type Client struct {
	addr       string
	httpClient *http.Client
	cipher     *sessionCipher
	sessionID  string
	token      string
}

// NewClient creates a client for the device at the given IP.
func NewClient(ip net.IP) *Client {
	return &Client{
		addr:       ip.String(),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type rpcRequest struct {
	Method          string      `json:"method"`
	Params          interface{} `json:"params,omitempty"`
	RequestTimeMils int64       `json:"requestTimeMils,omitempty"`
}

type rpcResponse struct {
	ErrorCode int             `json:"error_code"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Handshake negotiates the AES session. It must complete before Login.
func (c *Client) Handshake(ctx context.Context) error {
	priv, pubPEM, err := generateKeyPair()
	if err != nil {
		return errs.NewLoginError("handshake", c.addr, err)
	}

	req := rpcRequest{
		Method: "handshake",
		Params: map[string]string{"key": pubPEM},
	}

	var result struct {
		Key string `json:"key"`
	}
	cookies, err := c.post(ctx, "", req, &result)
	if err != nil {
		return errs.NewLoginError("handshake", c.addr, err)
	}

	key, iv, err := decryptHandshakeKey(result.Key, priv)
	if err != nil {
		return errs.NewLoginError("handshake", c.addr, err)
	}

	c.cipher, err = newSessionCipher(key, iv)
	if err != nil {
		return errs.NewLoginError("handshake", c.addr, err)
	}

	for _, cookie := range cookies {
		if cookie.Name == "TP_SESSIONID" {
			c.sessionID = cookie.Value
		}
	}
	if c.sessionID == "" {
		return errs.NewLoginError("handshake", c.addr, fmt.Errorf("device set no session cookie"))
	}

	logger.Debug().Str("addr", c.addr).Msg("Device handshake complete")
	return nil
}

// Login authenticates the negotiated session with the cloud account
// credentials and stores the request token for subsequent commands.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if c.cipher == nil {
		return errs.NewLoginError("login", c.addr, fmt.Errorf("handshake not performed"))
	}

	inner := rpcRequest{
		Method: "login_device",
		Params: map[string]string{
			"username": base64.StdEncoding.EncodeToString([]byte(hashUsername(email))),
			"password": base64.StdEncoding.EncodeToString([]byte(password)),
		},
		RequestTimeMils: time.Now().UnixMilli(),
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := c.passthrough(ctx, inner, &result); err != nil {
		return errs.NewLoginError("login", c.addr, err)
	}
	if result.Token == "" {
		return errs.NewLoginError("login", c.addr, fmt.Errorf("device returned no token"))
	}

	c.token = result.Token
	logger.Debug().Str("addr", c.addr).Msg("Device login complete")
	return nil
}

// GetDeviceInfo reads the relay state and nickname.
func (c *Client) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	inner := rpcRequest{
		Method:          "get_device_info",
		RequestTimeMils: time.Now().UnixMilli(),
	}

	var info DeviceInfo
	if err := c.passthrough(ctx, inner, &info); err != nil {
		return nil, errs.NewLoginError("get device info", c.addr, err)
	}

	// The firmware base64-encodes the nickname; leave it alone if it isn't.
	if decoded, err := base64.StdEncoding.DecodeString(info.Nickname); err == nil {
		info.Nickname = string(decoded)
	}

	return &info, nil
}

// SetPower sets the relay state.
func (c *Client) SetPower(ctx context.Context, on bool) error {
	inner := rpcRequest{
		Method:          "set_device_info",
		Params:          map[string]bool{"device_on": on},
		RequestTimeMils: time.Now().UnixMilli(),
	}

	if err := c.passthrough(ctx, inner, nil); err != nil {
		return errs.NewLoginError("set power", c.addr, err)
	}

	logger.Debug().Str("addr", c.addr).Bool("on", on).Msg("Device power state set")
	return nil
}

// passthrough encrypts one inner command into a securePassthrough envelope,
// sends it, and decrypts the inner response into out.
func (c *Client) passthrough(ctx context.Context, inner rpcRequest, out interface{}) error {
	if c.cipher == nil {
		return fmt.Errorf("handshake not performed")
	}

	plain, err := json.Marshal(inner)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	envelope := rpcRequest{
		Method: "securePassthrough",
		Params: map[string]string{
			"request": base64.StdEncoding.EncodeToString(c.cipher.encrypt(plain)),
		},
	}

	var result struct {
		Response string `json:"response"`
	}
	if _, err := c.post(ctx, c.token, envelope, &result); err != nil {
		return err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(result.Response)
	if err != nil {
		return fmt.Errorf("inner response is not valid base64: %w", err)
	}
	decrypted, err := c.cipher.decrypt(ciphertext)
	if err != nil {
		return fmt.Errorf("failed to decrypt inner response: %w", err)
	}

	var innerResp rpcResponse
	if err := json.Unmarshal(decrypted, &innerResp); err != nil {
		return fmt.Errorf("failed to decode inner response: %w", err)
	}
	if innerResp.ErrorCode != 0 {
		return fmt.Errorf("device error %d", innerResp.ErrorCode)
	}
	if out != nil && innerResp.Result != nil {
		if err := json.Unmarshal(innerResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode inner result: %w", err)
		}
	}
	return nil
}

// post performs one HTTP exchange against the device's /app endpoint and
// returns any cookies the device set.
func (c *Client) post(ctx context.Context, token string, req rpcRequest, out interface{}) ([]*http.Cookie, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	target := fmt.Sprintf("http://%s/app", c.addr)
	if token != "" {
		target += "?token=" + url.QueryEscape(token)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		httpReq.AddCookie(&http.Cookie{Name: "TP_SESSIONID", Value: c.sessionID})
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.ErrorCode != 0 {
		return nil, fmt.Errorf("device error %d", rpcResp.ErrorCode)
	}
	if out != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return resp.Cookies(), nil
}
