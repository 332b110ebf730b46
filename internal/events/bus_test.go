/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRecordingStarted)
	other := bus.Subscribe(EventRecordingStopped)

	bus.Publish(EventRecordingStarted, Payload{"reservation_id": int64(5)})

	select {
	case p := <-sub:
		if p["reservation_id"] != int64(5) {
			t.Fatalf("unexpected payload: %v", p)
		}
	default:
		t.Fatal("expected payload on subscriber")
	}

	select {
	case p := <-other:
		t.Fatalf("unexpected delivery to other event type: %v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventScheduleNext)

	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventScheduleNext, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected full buffer of %d, got %d", cap(sub), len(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRecordingStopped)
	bus.Unsubscribe(EventRecordingStopped, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed subscriber channel")
	}
	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventRecordingStopped, Payload{})
}
