/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package epgstation reads pending reservations from an EPGStation
// compatible recording scheduler.
package epgstation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/obsrec/internal/models"
	"github.com/friendsincode/obsrec/internal/version"
)

// ErrSourceUnavailable wraps every failure to obtain a reservation list.
var ErrSourceUnavailable = errors.New("reservation source unavailable")

const maxResponseBytes = 8 << 20

// Config holds client configuration.
type Config struct {
	BaseURL string
	Limit   int
	Timeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL: baseURL,
		Limit:   100,
		Timeout: 10 * time.Second,
	}
}

// Client queries the reservation API.
type Client struct {
	baseURL string
	limit   int
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a reservation client.
func New(cfg *Config, logger zerolog.Logger) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		limit:   limit,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "epgstation").Logger(),
	}
}

type reserveItem struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ChannelID  int64  `json:"channelId"`
	StartAt    int64  `json:"startAt"`
	EndAt      int64  `json:"endAt"`
	IsSkip     bool   `json:"isSkip"`
	IsConflict bool   `json:"isConflict"`
}

type reservesResponse struct {
	Reserves []reserveItem `json:"reserves"`
	Total    int           `json:"total"`
}

// FetchReservations returns the pending reservations on channelID in the
// order the service delivered them.
func (c *Client) FetchReservations(ctx context.Context, channelID int64) ([]models.Reservation, error) {
	endpoint, err := c.reservesURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSourceUnavailable, resp.StatusCode, string(snippet))
	}

	var payload reservesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode reserves: %v", ErrSourceUnavailable, err)
	}

	return c.filter(payload.Reserves, channelID), nil
}

func (c *Client) filter(items []reserveItem, channelID int64) []models.Reservation {
	out := make([]models.Reservation, 0, len(items))
	for _, item := range items {
		if item.ChannelID != channelID || item.IsSkip {
			continue
		}
		r := models.Reservation{
			ID:        item.ID,
			Name:      item.Name,
			ChannelID: item.ChannelID,
			StartAt:   time.UnixMilli(item.StartAt),
			EndAt:     time.UnixMilli(item.EndAt),
		}
		if err := r.Validate(); err != nil {
			c.logger.Warn().Err(err).Int64("reservation_id", r.ID).Msg("dropping malformed reservation")
			continue
		}
		out = append(out, r)
	}

	c.logger.Debug().
		Int("received", len(items)).
		Int("kept", len(out)).
		Int64("channel_id", channelID).
		Msg("reservations fetched")
	return out
}

func (c *Client) reservesURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u = u.JoinPath("api", "reserves")
	q := u.Query()
	q.Set("isHalfWidth", "true")
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
