/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventRecordingStarted     EventType = "recording.started"
	EventRecordingStopped     EventType = "recording.stopped"
	EventRecordingStartFailed EventType = "recording.start_failed"
	EventRecordingStopFailed  EventType = "recording.stop_failed"

	// EventScheduleNext fires when the selected next reservation changes.
	EventScheduleNext EventType = "schedule.next"

	EventSourceUnavailable EventType = "source.unavailable"
)

// RecordingEventTypes lists the events describing a recording outcome.
var RecordingEventTypes = []EventType{
	EventRecordingStarted,
	EventRecordingStopped,
	EventRecordingStartFailed,
	EventRecordingStopFailed,
}

// AllEventTypes lists every event type published by obsrec.
var AllEventTypes = append(append([]EventType(nil), RecordingEventTypes...), EventScheduleNext, EventSourceUnavailable)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is the write side of a bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events
// rather than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
