/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/obsrec/internal/events"
)

type capturedMsg struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []capturedMsg
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, capturedMsg{subject: subject, data: data})
	return nil
}

func (c *fakeConn) snapshot() []capturedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedMsg(nil), c.msgs...)
}

func TestMarshalRoundTripKeepsEnvelope(t *testing.T) {
	data, err := marshalNATSMessage(events.EventRecordingStarted, events.Payload{"name": "News"}, "node-a")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := unmarshalNATSMessage(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventRecordingStarted || msg.NodeID != "node-a" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	if msg.MessageID == "" || msg.Timestamp.IsZero() {
		t.Fatalf("expected message id and timestamp: %+v", msg)
	}
	if msg.Payload["name"] != "News" {
		t.Fatalf("payload = %v", msg.Payload)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := unmarshalNATSMessage([]byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubjectFor(t *testing.T) {
	if got := SubjectFor("obsrec.events", events.EventSourceUnavailable); got != "obsrec.events.source.unavailable" {
		t.Fatalf("subject = %q", got)
	}
}

func TestForwarderPublishesBusEvents(t *testing.T) {
	bus := events.NewBus()
	conn := &fakeConn{}
	fwd := NewForwarder(bus, conn, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := fwd.Start(ctx)

	bus.Publish(events.EventRecordingStopped, events.Payload{"reservation_id": int64(9)})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(conn.snapshot()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	msgs := conn.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].subject != "obsrec.events.recording.stopped" {
		t.Fatalf("subject = %q", msgs[0].subject)
	}
	msg, err := unmarshalNATSMessage(msgs[0].data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Payload["reservation_id"] != float64(9) {
		t.Fatalf("payload = %v", msg.Payload)
	}
}

func TestForwarderFlushesEventsBufferedAtCancel(t *testing.T) {
	bus := events.NewBus()
	conn := &fakeConn{}
	fwd := NewForwarder(bus, conn, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := fwd.Start(ctx)
	bus.Publish(events.EventRecordingStarted, events.Payload{"reservation_id": int64(3)})
	bus.Publish(events.EventRecordingStopped, events.Payload{"reservation_id": int64(3)})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}

	got := map[string]bool{}
	for _, m := range conn.snapshot() {
		got[m.subject] = true
	}
	for _, subject := range []string{"obsrec.events.recording.started", "obsrec.events.recording.stopped"} {
		if !got[subject] {
			t.Fatalf("missing %s in %v", subject, got)
		}
	}
}

func TestForwardSwallowsPublishError(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	fwd := NewForwarder(events.NewBus(), conn, "x", zerolog.Nop())
	fwd.forward(events.EventScheduleNext, events.Payload{})
	if len(conn.snapshot()) != 0 {
		t.Fatal("expected no captured messages")
	}
}
