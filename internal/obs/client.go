/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package obs is a minimal obs-websocket v5 request client.
package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	// ErrNotConnected is returned when no session could be established.
	ErrNotConnected = errors.New("obs websocket not connected")

	// ErrAuthFailed is returned when OBS rejects the password.
	ErrAuthFailed = errors.New("obs websocket authentication failed")
)

// Client holds one obs-websocket session and issues requests over it.
// A broken session is dropped and re-dialled on the next request.
type Client struct {
	addr     string
	password string
	cfg      *Config
	logger   zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// Config holds client configuration.
type Config struct {
	Address           string
	Password          string
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig(address, password string) *Config {
	return &Config{
		Address:           address,
		Password:          password,
		ConnectionTimeout: 10 * time.Second,
		RequestTimeout:    10 * time.Second,
	}
}

// New creates an OBS client. It does not dial until Connect or the first request.
func New(cfg *Config, logger zerolog.Logger) *Client {
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		addr:     cfg.Address,
		password: cfg.Password,
		cfg:      cfg,
		logger:   logger.With().Str("component", "obs_client").Str("address", cfg.Address).Logger(),
	}
}

// Connect establishes and identifies a session if none is open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.connected {
		return nil
	}

	c.logger.Debug().Msg("connecting to obs websocket")

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+c.addr, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrNotConnected, c.addr, err)
	}
	conn.SetReadLimit(1 << 20)

	if err := c.identify(ctx, conn); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info().Msg("connected to obs websocket")
	return nil
}

func (c *Client) identify(ctx context.Context, conn *websocket.Conn) error {
	var msg envelope
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		return fmt.Errorf("%w: read hello: %v", ErrNotConnected, err)
	}
	if msg.Op != OpHello {
		return fmt.Errorf("%w: expected hello, got op %d", ErrNotConnected, msg.Op)
	}

	var hello helloData
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		return fmt.Errorf("%w: decode hello: %v", ErrNotConnected, err)
	}

	ident := identifyData{RPCVersion: RPCVersion}
	if hello.Authentication != nil {
		if c.password == "" {
			return fmt.Errorf("%w: server requires a password", ErrAuthFailed)
		}
		ident.Authentication = AuthResponse(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}

	if err := wsjson.Write(ctx, conn, outgoing{Op: OpIdentify, D: ident}); err != nil {
		return fmt.Errorf("%w: write identify: %v", ErrNotConnected, err)
	}

	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		switch websocket.CloseStatus(err) {
		case CloseAuthenticationFailed:
			return ErrAuthFailed
		case CloseUnsupportedRPC:
			return fmt.Errorf("%w: rpc version %d not supported by server", ErrNotConnected, RPCVersion)
		}
		return fmt.Errorf("%w: read identified: %v", ErrNotConnected, err)
	}
	if msg.Op != OpIdentified {
		return fmt.Errorf("%w: expected identified, got op %d", ErrNotConnected, msg.Op)
	}

	var identified identifiedData
	_ = json.Unmarshal(msg.D, &identified)
	c.logger.Debug().
		Str("obs_websocket_version", hello.OBSWebSocketVersion).
		Int("rpc_version", identified.NegotiatedRPCVersion).
		Msg("obs websocket identified")
	return nil
}

// Close closes the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.logger.Info().Msg("closing obs websocket connection")
		err := c.conn.Close(websocket.StatusNormalClosure, "")
		c.conn = nil
		c.connected = false
		return err
	}
	return nil
}

// IsConnected returns whether a session is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close(websocket.StatusGoingAway, "")
	}
	c.conn = nil
	c.connected = false
}

// Request sends one request and waits for its response. When out is
// non-nil the response data is decoded into it.
func (c *Client) Request(ctx context.Context, requestType string, data any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	id := uuid.NewString()
	req := outgoing{Op: OpRequest, D: requestData{RequestType: requestType, RequestID: id, RequestData: data}}
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		c.dropLocked()
		return fmt.Errorf("%w: write %s: %v", ErrNotConnected, requestType, err)
	}

	for {
		var msg envelope
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			c.dropLocked()
			return fmt.Errorf("%w: read %s response: %v", ErrNotConnected, requestType, err)
		}
		if msg.Op != OpRequestResponse {
			continue
		}

		var resp requestResponseData
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			return fmt.Errorf("decode %s response: %w", requestType, err)
		}
		if resp.RequestID != id {
			continue
		}

		if !resp.RequestStatus.Result {
			return &RequestError{
				RequestType: requestType,
				Code:        resp.RequestStatus.Code,
				Comment:     resp.RequestStatus.Comment,
			}
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("decode %s response data: %w", requestType, err)
			}
		}
		return nil
	}
}

// StartRecord starts the record output.
func (c *Client) StartRecord(ctx context.Context) error {
	return c.Request(ctx, RequestStartRecord, nil, nil)
}

// StopRecord stops the record output and returns the written file path.
func (c *Client) StopRecord(ctx context.Context) (string, error) {
	var resp struct {
		OutputPath string `json:"outputPath"`
	}
	if err := c.Request(ctx, RequestStopRecord, nil, &resp); err != nil {
		return "", err
	}
	return resp.OutputPath, nil
}

// GetRecordStatus reports whether the record output is active.
func (c *Client) GetRecordStatus(ctx context.Context) (RecordStatus, error) {
	var status RecordStatus
	err := c.Request(ctx, RequestGetRecordStatus, nil, &status)
	return status, err
}

// SetCurrentProgramScene switches the program scene.
func (c *Client) SetCurrentProgramScene(ctx context.Context, sceneName string) error {
	return c.Request(ctx, RequestSetCurrentProgramScene, map[string]string{"sceneName": sceneName}, nil)
}
