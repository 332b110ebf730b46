/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"fmt"
	"time"

	"github.com/friendsincode/obsrec/internal/models"
)

// Margins are the timing constants of the schedule loop.
type Margins struct {
	// LeadIn is how long before StartAt recording is triggered.
	LeadIn time.Duration
	// EarlyStop is how long before EndAt recording is stopped.
	EarlyStop time.Duration
	// EndGuard skips reservations ending sooner than this.
	EndGuard time.Duration
	// Cooldown follows every stop and every failed start.
	Cooldown time.Duration
	// IdleInterval is the sleep when nothing is scheduled, and the bounded
	// sleep for far-away reservations.
	IdleInterval time.Duration
	// DeferThreshold is the wait above which the loop sleeps IdleInterval
	// instead of committing to the reservation.
	DeferThreshold time.Duration
}

// DefaultMargins returns the reference margins.
func DefaultMargins() Margins {
	return Margins{
		LeadIn:         10 * time.Second,
		EarlyStop:      10 * time.Second,
		EndGuard:       10 * time.Second,
		Cooldown:       5 * time.Second,
		IdleInterval:   3600 * time.Second,
		DeferThreshold: 3610 * time.Second,
	}
}

// withDefaults fills unset margins from DefaultMargins.
func (m Margins) withDefaults() Margins {
	d := DefaultMargins()
	if m.LeadIn <= 0 {
		m.LeadIn = d.LeadIn
	}
	if m.EarlyStop <= 0 {
		m.EarlyStop = d.EarlyStop
	}
	if m.EndGuard <= 0 {
		m.EndGuard = d.EndGuard
	}
	if m.Cooldown <= 0 {
		m.Cooldown = d.Cooldown
	}
	if m.IdleInterval <= 0 {
		m.IdleInterval = d.IdleInterval
	}
	if m.DeferThreshold <= 0 {
		m.DeferThreshold = d.DeferThreshold
	}
	return m
}

// Action is what the loop does after a decision.
type Action int

const (
	// ActionIdle sleeps IdleInterval; nothing is scheduled.
	ActionIdle Action = iota
	// ActionDefer sleeps IdleInterval without committing to the reservation.
	ActionDefer
	// ActionWait sleeps until LeadIn before the start, then re-evaluates.
	ActionWait
	// ActionRecord starts recording now.
	ActionRecord
)

func (a Action) String() string {
	switch a {
	case ActionIdle:
		return "idle"
	case ActionDefer:
		return "defer"
	case ActionWait:
		return "wait"
	case ActionRecord:
		return "record"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Action Action
	// Sleep is the duration to sleep before the next fetch. Zero for ActionRecord.
	Sleep time.Duration
	// Next is the selected reservation; valid unless Action is ActionIdle.
	Next models.Reservation
	// Wait is Next.StartAt - now, clamped at zero.
	Wait time.Duration
}

// HasNext reports whether a reservation was selected.
func (d Decision) HasNext() bool {
	return d.Action != ActionIdle
}

// Select returns the earliest-starting reservation that does not end within
// EndGuard of now. Equal start times keep delivery order. The input slice
// is not modified.
func Select(now time.Time, reservations []models.Reservation, m Margins) (models.Reservation, bool) {
	m = m.withDefaults()

	var (
		best  models.Reservation
		found bool
	)
	for _, r := range reservations {
		if r.EndAt.Sub(now) < m.EndGuard {
			continue
		}
		if !found || r.StartAt.Before(best.StartAt) {
			best = r
			found = true
		}
	}
	return best, found
}

// Decide evaluates the reservation list at now. It has no side effects.
func Decide(now time.Time, reservations []models.Reservation, m Margins) Decision {
	m = m.withDefaults()

	next, ok := Select(now, reservations, m)
	if !ok {
		return Decision{Action: ActionIdle, Sleep: m.IdleInterval}
	}

	wait := next.StartAt.Sub(now)
	switch {
	case wait > m.DeferThreshold:
		return Decision{Action: ActionDefer, Sleep: m.IdleInterval, Next: next, Wait: wait}
	case wait > m.LeadIn:
		return Decision{Action: ActionWait, Sleep: wait - m.LeadIn, Next: next, Wait: wait}
	default:
		return Decision{Action: ActionRecord, Next: next, Wait: clamp(wait)}
	}
}

// StopDelay is how long to keep recording r when measured at now.
func StopDelay(now time.Time, r models.Reservation, m Margins) time.Duration {
	m = m.withDefaults()
	return clamp(r.EndAt.Sub(now) - m.EarlyStop)
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
