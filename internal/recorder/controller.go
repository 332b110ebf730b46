/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/obsrec/internal/obs"
)

// ErrControlUnavailable wraps every failed recording control command.
var ErrControlUnavailable = errors.New("recording control unavailable")

// Controller starts and stops the remote recorder.
type Controller interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	SetScene(ctx context.Context, name string) error
}

// OBS is the subset of the obs-websocket client the controller drives.
type OBS interface {
	StartRecord(ctx context.Context) error
	StopRecord(ctx context.Context) (string, error)
	GetRecordStatus(ctx context.Context) (obs.RecordStatus, error)
	SetCurrentProgramScene(ctx context.Context, sceneName string) error
}

// OBSController drives OBS Studio recording.
type OBSController struct {
	client OBS
	logger zerolog.Logger
}

// NewOBSController creates a controller around an OBS client.
func NewOBSController(client OBS, logger zerolog.Logger) *OBSController {
	return &OBSController{
		client: client,
		logger: logger.With().Str("component", "recording_controller").Logger(),
	}
}

// StartRecording starts the record output.
func (c *OBSController) StartRecording(ctx context.Context) error {
	if err := c.client.StartRecord(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to start recording")
		return fmt.Errorf("start recording: %w: %w", ErrControlUnavailable, err)
	}

	c.logger.Debug().Msg("record output started")
	return nil
}

// StopRecording stops the record output.
func (c *OBSController) StopRecording(ctx context.Context) error {
	path, err := c.client.StopRecord(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to stop recording")
		return fmt.Errorf("stop recording: %w: %w", ErrControlUnavailable, err)
	}

	c.logger.Debug().Str("output_path", path).Msg("record output stopped")
	return nil
}

// SetScene switches the program scene.
func (c *OBSController) SetScene(ctx context.Context, name string) error {
	if err := c.client.SetCurrentProgramScene(ctx, name); err != nil {
		c.logger.Error().Err(err).Str("scene", name).Msg("failed to set scene")
		return fmt.Errorf("set scene %q: %w: %w", name, ErrControlUnavailable, err)
	}

	c.logger.Info().Str("scene", name).Msg("program scene set")
	return nil
}

// Recording reports whether the record output is active.
func (c *OBSController) Recording(ctx context.Context) (bool, error) {
	status, err := c.client.GetRecordStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("record status: %w: %w", ErrControlUnavailable, err)
	}
	return status.OutputActive, nil
}
