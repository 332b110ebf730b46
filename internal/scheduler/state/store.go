/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"sync"
	"time"

	"github.com/friendsincode/obsrec/internal/models"
)

const defaultMaxRecent = 32

// Status is a read-only snapshot of the schedule loop.
type Status struct {
	State          models.LoopState    `json:"state"`
	ChannelID      int64               `json:"channel_id"`
	Next           *models.Reservation `json:"next,omitempty"`
	Current        *models.Reservation `json:"current,omitempty"`
	WakeAt         *time.Time          `json:"wake_at,omitempty"`
	LastFetchAt    *time.Time          `json:"last_fetch_at,omitempty"`
	LastFetchError string              `json:"last_fetch_error,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// RecentRecording is one recording handled by this process.
type RecentRecording struct {
	ReservationID int64      `json:"reservation_id"`
	Name          string     `json:"name"`
	StartedAt     time.Time  `json:"started_at"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Store keeps in-memory loop state for the status server.
type Store struct {
	mu        sync.RWMutex
	status    Status
	recent    []RecentRecording
	maxRecent int
}

// NewStore creates a scheduler state store.
func NewStore() *Store {
	return &Store{
		status:    Status{State: models.LoopStateStarting},
		recent:    make([]RecentRecording, 0, defaultMaxRecent),
		maxRecent: defaultMaxRecent,
	}
}

// Update mutates the status under the lock.
func (s *Store) Update(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}

// Snapshot returns a deep copy of the status.
func (s *Store) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.status
	if s.status.Next != nil {
		next := *s.status.Next
		out.Next = &next
	}
	if s.status.Current != nil {
		cur := *s.status.Current
		out.Current = &cur
	}
	if s.status.WakeAt != nil {
		wake := *s.status.WakeAt
		out.WakeAt = &wake
	}
	if s.status.LastFetchAt != nil {
		fetched := *s.status.LastFetchAt
		out.LastFetchAt = &fetched
	}
	return out
}

// AddRecording registers a started recording, evicting the oldest entry
// once the store is full.
func (s *Store) AddRecording(rec RecentRecording) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recent) >= s.maxRecent {
		s.recent = append(s.recent[:0], s.recent[1:]...)
	}
	s.recent = append(s.recent, rec)
}

// FinishRecording marks the latest recording of reservationID stopped.
func (s *Store) FinishRecording(reservationID int64, stoppedAt time.Time, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.recent) - 1; i >= 0; i-- {
		if s.recent[i].ReservationID == reservationID && s.recent[i].StoppedAt == nil {
			s.recent[i].StoppedAt = &stoppedAt
			s.recent[i].Error = errMsg
			return
		}
	}
}

// Recent returns a snapshot of tracked recordings, oldest first.
func (s *Store) Recent() []RecentRecording {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecentRecording, len(s.recent))
	for i, rec := range s.recent {
		if rec.StoppedAt != nil {
			stopped := *rec.StoppedAt
			rec.StoppedAt = &stopped
		}
		out[i] = rec
	}
	return out
}

// Prune removes recordings started before cutoff.
func (s *Store) Prune(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.recent[:0]
	for _, rec := range s.recent {
		if rec.StartedAt.After(cutoff) {
			filtered = append(filtered, rec)
		}
	}
	s.recent = filtered
}
