/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/obsrec/internal/events"
	"github.com/friendsincode/obsrec/internal/models"
)

// Service stores recording outcomes published on the event bus.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new journal service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "journal").Logger(),
	}
}

type incoming struct {
	action  models.RecordingAction
	payload events.Payload
}

type subscription struct {
	eventType events.EventType
	ch        events.Subscriber
}

// Start subscribes to recording events before returning and writes them in
// the background until ctx is done. Events buffered at cancellation are still
// written. The returned channel closes once the last one is stored.
func (s *Service) Start(ctx context.Context) <-chan struct{} {
	subs := s.subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.consume(ctx, subs)
	}()
	return done
}

func (s *Service) subscribe() []subscription {
	subs := make([]subscription, 0, len(events.RecordingEventTypes))
	for _, et := range events.RecordingEventTypes {
		subs = append(subs, subscription{eventType: et, ch: s.bus.Subscribe(et)})
	}
	return subs
}

func (s *Service) consume(ctx context.Context, subs []subscription) {
	// Fan the per-type channels into one so the loop stays a single select.
	// merged closes after every subscription channel is closed and emptied.
	merged := make(chan incoming, 16)
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub subscription) {
			defer wg.Done()
			for payload := range sub.ch {
				merged <- incoming{models.RecordingAction(sub.eventType), payload}
			}
		}(sub)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	s.logger.Info().Msg("journal service started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("journal service stopping")
			for _, sub := range subs {
				s.bus.Unsubscribe(sub.eventType, sub.ch)
			}
			for m := range merged {
				s.logEntry(ctx, m.action, m.payload)
			}
			return
		case m := <-merged:
			s.logEntry(ctx, m.action, m.payload)
		}
	}
}

// logEntry creates a journal row from an event payload.
func (s *Service) logEntry(ctx context.Context, action models.RecordingAction, payload events.Payload) {
	entry := &models.RecordingEvent{
		Action:  action,
		Details: make(map[string]any),
	}

	for k, v := range payload {
		switch k {
		case "reservation_id":
			entry.ReservationID, _ = v.(int64)
		case "channel_id":
			entry.ChannelID, _ = v.(int64)
		case "name":
			entry.ProgramName, _ = v.(string)
		case "start_at":
			entry.ScheduledStart, _ = v.(time.Time)
		case "end_at":
			entry.ScheduledEnd, _ = v.(time.Time)
		case "occurred_at":
			entry.OccurredAt, _ = v.(time.Time)
		case "error":
			entry.Error, _ = v.(string)
		default:
			entry.Details[k] = v
		}
	}

	// Context may already be cancelled when the final stop event arrives.
	if err := s.Log(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to write journal entry")
	}
}

// Log writes a journal entry directly.
func (s *Service) Log(ctx context.Context, entry *models.RecordingEvent) error {
	now := time.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Int64("reservation_id", entry.ReservationID).
		Msg("journal entry written")
	return nil
}

// QueryFilters narrows a journal query.
type QueryFilters struct {
	Action        *models.RecordingAction
	ReservationID *int64
	Since         *time.Time
	Limit         int
	Offset        int
}

// Query returns journal entries, most recent first, and the unpaginated total.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.RecordingEvent, int64, error) {
	var rows []models.RecordingEvent
	var total int64

	query := s.db.WithContext(ctx).Model(&models.RecordingEvent{})
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.ReservationID != nil {
		query = query.Where("reservation_id = ?", *filters.ReservationID)
	}
	if filters.Since != nil {
		query = query.Where("occurred_at >= ?", *filters.Since)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("occurred_at DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
