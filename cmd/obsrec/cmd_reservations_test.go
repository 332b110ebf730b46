/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/obsrec/internal/models"
	"github.com/friendsincode/obsrec/internal/scheduler"
)

func TestPrintReservations(t *testing.T) {
	now := time.Date(2026, 10, 14, 20, 0, 0, 0, time.Local)
	list := []models.Reservation{
		{ID: 1, Name: "Late Movie", StartAt: now.Add(3 * time.Hour), EndAt: now.Add(5 * time.Hour)},
		{ID: 2, Name: "Evening News", StartAt: now.Add(30 * time.Minute), EndAt: now.Add(time.Hour)},
	}
	d := scheduler.Decide(now, list, scheduler.DefaultMargins())

	var out bytes.Buffer
	printReservations(&out, list, d)
	got := out.String()

	for _, want := range []string{
		"ID", "Late Movie", "Evening News",
		"2026-10-14 20:30:00",
		`next: "Evening News" in 30m0s`,
		"decision: wait, sleep 29m50s",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintReservationsEmpty(t *testing.T) {
	now := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printReservations(&out, nil, scheduler.Decide(now, nil, scheduler.DefaultMargins()))
	got := out.String()
	if strings.Contains(got, "next:") {
		t.Fatalf("unexpected next line:\n%s", got)
	}
	if !strings.Contains(got, "decision: idle, sleep 1h0m0s") {
		t.Fatalf("unexpected decision line:\n%s", got)
	}
}
