/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/friendsincode/obsrec/internal/config"
	"github.com/friendsincode/obsrec/internal/models"
	"github.com/friendsincode/obsrec/internal/telemetry"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	database, err := Connect(config.DatabaseSQLite, ":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = Close(database) })

	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !database.Migrator().HasTable(&models.RecordingEvent{}) {
		t.Fatal("expected recording_events table")
	}

	row := models.RecordingEvent{
		ID:         uuid.NewString(),
		OccurredAt: time.Now(),
		Action:     models.RecordingActionStarted,
		Details:    map[string]any{"scene": "Capture"},
	}
	if err := database.Create(&row).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	var got models.RecordingEvent
	if err := database.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("first: %v", err)
	}
	if got.Details["scene"] != "Capture" {
		t.Fatalf("details = %v", got.Details)
	}
	if n := testutil.CollectAndCount(telemetry.DatabaseQueryDuration); n < 2 {
		t.Fatalf("expected create and query duration series, got %d", n)
	}
}

func TestConnectUnknownBackend(t *testing.T) {
	if _, err := Connect(config.DatabaseBackend("oracle"), "dsn"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
