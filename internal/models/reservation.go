/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidReservation marks a reservation whose end is not after its start.
var ErrInvalidReservation = errors.New("invalid reservation")

// Reservation is one scheduled recording slot read from the recording
// scheduler. Values are immutable once read.
type Reservation struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ChannelID int64     `json:"channel_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
}

// Validate enforces EndAt > StartAt.
func (r Reservation) Validate() error {
	if !r.EndAt.After(r.StartAt) {
		return fmt.Errorf("%w: reservation %d ends at %s, not after start %s",
			ErrInvalidReservation, r.ID, r.EndAt.Format(time.RFC3339), r.StartAt.Format(time.RFC3339))
	}
	return nil
}

// Duration is the announced program length.
func (r Reservation) Duration() time.Duration {
	return r.EndAt.Sub(r.StartAt)
}

// LoopState is the phase the schedule loop is in.
type LoopState string

const (
	LoopStateStarting  LoopState = "starting"
	LoopStateIdle      LoopState = "idle"
	LoopStateWaiting   LoopState = "waiting"
	LoopStateRecording LoopState = "recording"
	LoopStateStopped   LoopState = "stopped"
)
