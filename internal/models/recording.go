/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// RecordingAction identifies what happened to a recording.
type RecordingAction string

const (
	RecordingActionStarted     RecordingAction = "recording.started"
	RecordingActionStopped     RecordingAction = "recording.stopped"
	RecordingActionStartFailed RecordingAction = "recording.start_failed"
	RecordingActionStopFailed  RecordingAction = "recording.stop_failed"
)

// RecordingEvent is one row of the recording journal. The journal is
// history only; the schedule loop never reads it back.
type RecordingEvent struct {
	ID             string          `gorm:"type:varchar(36);primaryKey"`
	OccurredAt     time.Time       `gorm:"index:idx_recording_occurred;not null"`
	Action         RecordingAction `gorm:"type:varchar(64);index:idx_recording_action;not null"`
	ReservationID  int64           `gorm:"index:idx_recording_reservation"`
	ChannelID      int64
	ProgramName    string         `gorm:"type:varchar(512)"`
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Error          string         `gorm:"type:text"`
	Details        map[string]any `gorm:"serializer:json"`
	CreatedAt      time.Time
}

// TableName returns the table name for GORM.
func (RecordingEvent) TableName() string {
	return "recording_events"
}
