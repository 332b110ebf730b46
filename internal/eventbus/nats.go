/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/obsrec/internal/events"
	"github.com/friendsincode/obsrec/internal/telemetry"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL     string
	Token   string
	Subject string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "obsrec.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Conn is the subset of *nats.Conn the forwarder publishes through.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Forwarder mirrors in-process bus events onto NATS subjects
// "<subject>.<event type>". Delivery is fire-and-forget.
type Forwarder struct {
	bus     *events.Bus
	conn    Conn
	subject string
	nodeID  string
	logger  zerolog.Logger
}

// Dial connects to NATS with cfg.
func Dial(cfg NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("obsrec"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NewForwarder creates a forwarder publishing through conn.
func NewForwarder(bus *events.Bus, conn Conn, subject string, logger zerolog.Logger) *Forwarder {
	if subject == "" {
		subject = DefaultNATSConfig().Subject
	}
	return &Forwarder{
		bus:     bus,
		conn:    conn,
		subject: subject,
		nodeID:  generateNodeID(),
		logger:  logger.With().Str("component", "nats_forwarder").Logger(),
	}
}

// Start subscribes to every event type before returning and forwards events
// in the background until ctx is done. Events buffered at cancellation are
// still forwarded before the returned channel closes.
func (f *Forwarder) Start(ctx context.Context) <-chan struct{} {
	subs := f.subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.run(ctx, subs)
	}()
	return done
}

type forwardSub struct {
	eventType events.EventType
	ch        events.Subscriber
}

func (f *Forwarder) subscribe() []forwardSub {
	subs := make([]forwardSub, 0, len(events.AllEventTypes))
	for _, et := range events.AllEventTypes {
		subs = append(subs, forwardSub{eventType: et, ch: f.bus.Subscribe(et)})
	}
	return subs
}

func (f *Forwarder) run(ctx context.Context, subs []forwardSub) {
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub forwardSub) {
			defer wg.Done()
			for payload := range sub.ch {
				f.forward(sub.eventType, payload)
			}
		}(sub)
	}

	f.logger.Info().Str("subject", f.subject).Msg("nats forwarder started")
	<-ctx.Done()
	f.logger.Info().Msg("nats forwarder stopping")
	// Unsubscribe closes each channel; the workers exit once it is empty.
	for _, sub := range subs {
		f.bus.Unsubscribe(sub.eventType, sub.ch)
	}
	wg.Wait()
}

func (f *Forwarder) forward(eventType events.EventType, payload events.Payload) {
	data, err := marshalNATSMessage(eventType, payload, f.nodeID)
	if err != nil {
		telemetry.NATSPublishedTotal.WithLabelValues("error").Inc()
		f.logger.Error().Err(err).Str("event", string(eventType)).Msg("marshal event")
		return
	}
	subject := SubjectFor(f.subject, eventType)
	if err := f.conn.Publish(subject, data); err != nil {
		telemetry.NATSPublishedTotal.WithLabelValues("error").Inc()
		f.logger.Warn().Err(err).Str("subject", subject).Msg("publish event to nats")
		return
	}
	telemetry.NATSPublishedTotal.WithLabelValues("ok").Inc()
}

// SubjectFor builds the NATS subject for an event type.
func SubjectFor(prefix string, eventType events.EventType) string {
	return prefix + "." + string(eventType)
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "obsrec"
	}
	return host + "-" + uuid.NewString()[:8]
}
