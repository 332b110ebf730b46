/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/obsrec/internal/clock"
	"github.com/friendsincode/obsrec/internal/events"
	"github.com/friendsincode/obsrec/internal/models"
	"github.com/friendsincode/obsrec/internal/recorder"
	"github.com/friendsincode/obsrec/internal/scheduler/state"
	"github.com/friendsincode/obsrec/internal/telemetry"
)

// Source yields the pending reservations of one channel.
type Source interface {
	FetchReservations(ctx context.Context, channelID int64) ([]models.Reservation, error)
}

// Config holds the loop settings.
type Config struct {
	ChannelID int64
	Margins   Margins
	// Scene, when set, is selected before every recording starts.
	Scene string
	// ShutdownStopTimeout bounds the stop issued after cancellation.
	ShutdownStopTimeout time.Duration
}

var loopStates = []string{
	string(models.LoopStateStarting),
	string(models.LoopStateIdle),
	string(models.LoopStateWaiting),
	string(models.LoopStateRecording),
	string(models.LoopStateStopped),
}

// Service runs the reservation driven recording loop. It is a single actor:
// fetch, decide, control and sleep happen strictly in sequence.
type Service struct {
	source  Source
	ctrl    recorder.Controller
	clock   clock.Clock
	bus     events.Publisher
	store   *state.Store
	cfg     Config
	margins Margins
	logger  zerolog.Logger

	nextID int64

	// recordedID is the last reservation started successfully. It is never
	// selected again, so a stop followed by the cooldown cannot re-trigger it.
	recordedID  int64
	hasRecorded bool
}

// New constructs the scheduler service. A nil clock uses the wall clock, a
// nil bus discards events and a nil store keeps a private one.
func New(source Source, ctrl recorder.Controller, clk clock.Clock, bus events.Publisher, store *state.Store, cfg Config, logger zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if store == nil {
		store = state.NewStore()
	}
	if cfg.ShutdownStopTimeout <= 0 {
		cfg.ShutdownStopTimeout = 10 * time.Second
	}
	store.Update(func(st *state.Status) { st.ChannelID = cfg.ChannelID })

	return &Service{
		source:  source,
		ctrl:    ctrl,
		clock:   clk,
		bus:     bus,
		store:   store,
		cfg:     cfg,
		margins: cfg.Margins.withDefaults(),
		logger:  logger.With().Str("component", "scheduler").Int64("channel_id", cfg.ChannelID).Logger(),
	}
}

// Store returns the status store the loop writes to.
func (s *Service) Store() *state.Store {
	return s.store
}

// Run executes the loop until ctx is cancelled. Cancellation is not an
// error: Run returns nil once the loop has unwound.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("lead_in", s.margins.LeadIn).
		Dur("early_stop", s.margins.EarlyStop).
		Dur("idle_interval", s.margins.IdleInterval).
		Msg("scheduler loop started")

	for {
		if err := s.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			// A clock that fails for any other reason degrades to an idle sleep.
			s.logger.Error().Err(err).Msg("scheduler cycle failed")
			if err := s.sleep(ctx, s.margins.IdleInterval, "error"); err != nil {
				break
			}
		}
	}

	s.setState(models.LoopStateStopped, nil, nil)
	s.logger.Info().Msg("scheduler loop stopped")
	return nil
}

// cycle runs steps 1-5 once. It returns a non-nil error only when ctx is done.
func (s *Service) cycle(ctx context.Context) error {
	telemetry.SchedulerCyclesTotal.Inc()

	reservations := s.fetch(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.clock.Now()
	d := Decide(now, s.withoutRecorded(reservations), s.margins)
	s.noteNext(d)

	switch d.Action {
	case ActionIdle:
		s.setState(models.LoopStateIdle, nil, nil)
		s.logger.Info().Dur("sleep", d.Sleep).Msg("no upcoming reservation")
		return s.sleep(ctx, d.Sleep, "idle")

	case ActionDefer, ActionWait:
		next := d.Next
		s.setState(models.LoopStateWaiting, &next, nil)
		s.logger.Info().
			Str("program", next.Name).
			Time("start_at", next.StartAt).
			Time("end_at", next.EndAt).
			Dur("wait", d.Wait).
			Dur("sleep", d.Sleep).
			Msg("waiting for reservation")
		reason := "lead_in"
		if d.Action == ActionDefer {
			reason = "defer"
		}
		return s.sleep(ctx, d.Sleep, reason)

	default:
		return s.record(ctx, d.Next)
	}
}

func (s *Service) fetch(ctx context.Context) []models.Reservation {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.fetch")
	defer span.End()

	reservations, err := s.source.FetchReservations(ctx, s.cfg.ChannelID)
	fetchedAt := s.clock.Now()
	if err != nil {
		telemetry.RecordError(span, err)
		if ctx.Err() != nil {
			return nil
		}
		telemetry.ReservationFetchesTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("reservation fetch failed; treating as no reservation")
		s.store.Update(func(st *state.Status) {
			st.LastFetchAt = &fetchedAt
			st.LastFetchError = err.Error()
		})
		s.publish(events.EventSourceUnavailable, events.Payload{
			"error":       err.Error(),
			"occurred_at": fetchedAt,
		})
		return nil
	}

	telemetry.ReservationFetchesTotal.WithLabelValues("ok").Inc()
	s.store.Update(func(st *state.Status) {
		st.LastFetchAt = &fetchedAt
		st.LastFetchError = ""
	})
	return reservations
}

// record runs the RECORDING phase for r.
func (s *Service) record(ctx context.Context, r models.Reservation) error {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.record", telemetry.ReservationAttributes(r)...)
	defer span.End()

	log := s.logger.With().Int64("reservation_id", r.ID).Str("program", r.Name).Logger()

	if s.cfg.Scene != "" {
		if err := s.ctrl.SetScene(ctx, s.cfg.Scene); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("scene", s.cfg.Scene).Msg("scene selection failed; recording current scene")
		}
	}

	if err := s.ctrl.StartRecording(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		telemetry.RecordError(span, err)
		telemetry.RecordingsTotal.WithLabelValues("start_failed").Inc()
		log.Error().Err(err).Dur("backoff", s.margins.Cooldown).Msg("start recording failed")
		s.publish(events.EventRecordingStartFailed, recordingPayload(r, s.clock.Now(), err))
		return s.sleep(ctx, s.margins.Cooldown, "start_backoff")
	}

	startedAt := s.clock.Now()
	s.recordedID, s.hasRecorded = r.ID, true
	telemetry.RecordingsTotal.WithLabelValues("started").Inc()
	s.setState(models.LoopStateRecording, nil, &r)
	s.store.AddRecording(state.RecentRecording{ReservationID: r.ID, Name: r.Name, StartedAt: startedAt})
	s.publish(events.EventRecordingStarted, recordingPayload(r, startedAt, nil))
	log.Info().
		Time("start_at", r.StartAt).
		Time("end_at", r.EndAt).
		Msg("start recording")

	if err := s.sleep(ctx, StopDelay(s.clock.Now(), r, s.margins), "recording"); err != nil {
		// Best-effort stop on a context that outlives the cancelled one.
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownStopTimeout)
		defer cancel()
		log.Info().Msg("cancelled while recording; stopping")
		s.stop(stopCtx, r, log)
		return err
	}

	s.stop(ctx, r, log)
	return s.sleep(ctx, s.margins.Cooldown, "cooldown")
}

// withoutRecorded drops the reservation that was already recorded.
func (s *Service) withoutRecorded(reservations []models.Reservation) []models.Reservation {
	if !s.hasRecorded {
		return reservations
	}
	out := make([]models.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.ID != s.recordedID {
			out = append(out, r)
		}
	}
	return out
}

// stop issues stop-record, retrying once.
func (s *Service) stop(ctx context.Context, r models.Reservation, log zerolog.Logger) {
	err := s.ctrl.StopRecording(ctx)
	if err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("stop recording failed; retrying")
		err = s.ctrl.StopRecording(ctx)
	}

	stoppedAt := s.clock.Now()
	if err != nil {
		telemetry.RecordingsTotal.WithLabelValues("stop_failed").Inc()
		log.Error().Err(err).Msg("stop recording failed; OBS may still be recording")
		s.store.FinishRecording(r.ID, stoppedAt, err.Error())
		s.publish(events.EventRecordingStopFailed, recordingPayload(r, stoppedAt, err))
		return
	}

	telemetry.RecordingsTotal.WithLabelValues("stopped").Inc()
	s.store.FinishRecording(r.ID, stoppedAt, "")
	s.publish(events.EventRecordingStopped, recordingPayload(r, stoppedAt, nil))
	log.Info().Time("end_at", r.EndAt).Msg("end recording")
}

// sleep clamps d at zero and blocks on the clock.
func (s *Service) sleep(ctx context.Context, d time.Duration, reason string) error {
	d = clamp(d)
	wake := s.clock.Now().Add(d)
	s.store.Update(func(st *state.Status) {
		st.WakeAt = &wake
		st.UpdatedAt = s.clock.Now()
	})
	telemetry.SleepSecondsTotal.WithLabelValues(reason).Add(d.Seconds())
	s.logger.Debug().Str("reason", reason).Dur("duration", d).Time("wake_at", wake).Msg("sleeping")

	err := s.clock.Sleep(ctx, d)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn().Err(err).Msg("sleep interrupted")
	}
	return err
}

func (s *Service) setState(loopState models.LoopState, next, current *models.Reservation) {
	now := s.clock.Now()
	s.store.Update(func(st *state.Status) {
		st.State = loopState
		st.Next = next
		st.Current = current
		st.UpdatedAt = now
		if loopState == models.LoopStateStopped {
			st.WakeAt = nil
		}
	})
	telemetry.SetLoopState(string(loopState), loopStates)
}

// noteNext publishes schedule.next when the selected reservation changes.
func (s *Service) noteNext(d Decision) {
	if !d.HasNext() {
		telemetry.NextReservationStart.Set(0)
		s.nextID = 0
		return
	}
	telemetry.NextReservationStart.Set(float64(d.Next.StartAt.Unix()))
	if d.Next.ID == s.nextID {
		return
	}
	s.nextID = d.Next.ID
	s.publish(events.EventScheduleNext, recordingPayload(d.Next, s.clock.Now(), nil))
}

func (s *Service) publish(eventType events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, payload)
}

func recordingPayload(r models.Reservation, at time.Time, err error) events.Payload {
	p := events.Payload{
		"reservation_id": r.ID,
		"name":           r.Name,
		"channel_id":     r.ChannelID,
		"start_at":       r.StartAt,
		"end_at":         r.EndAt,
		"occurred_at":    at,
	}
	if err != nil {
		p["error"] = err.Error()
	}
	return p
}
