/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/obsrec/internal/logbuffer"
	"github.com/friendsincode/obsrec/internal/models"
	"github.com/friendsincode/obsrec/internal/scheduler/state"
	"github.com/friendsincode/obsrec/internal/version"
)

func newTestServer(t *testing.T) (*Server, *state.Store) {
	t.Helper()
	store := state.NewStore()
	return New("127.0.0.1:0", store, nil, zerolog.Nop()), store
}

func TestHealthz(t *testing.T) {
	srv, store := newTestServer(t)
	store.Update(func(st *state.Status) { st.State = models.LoopStateIdle })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["state"] != string(models.LoopStateIdle) {
		t.Fatalf("body = %v", body)
	}
}

func TestStatusReportsNextAndRecent(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2026, 10, 14, 21, 0, 0, 0, time.UTC)
	next := models.Reservation{ID: 5, Name: "Anime", ChannelID: 1, StartAt: start, EndAt: start.Add(30 * time.Minute)}
	store.Update(func(st *state.Status) {
		st.State = models.LoopStateWaiting
		st.ChannelID = 1
		st.Next = &next
	})
	store.AddRecording(state.RecentRecording{ReservationID: 4, Name: "News", StartedAt: start.Add(-time.Hour)})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != version.Version {
		t.Fatalf("version = %q", resp.Version)
	}
	if resp.Status.State != models.LoopStateWaiting || resp.Status.Next == nil || resp.Status.Next.ID != 5 {
		t.Fatalf("unexpected status: %+v", resp.Status)
	}
	if len(resp.Recent) != 1 || resp.Recent[0].Name != "News" {
		t.Fatalf("recent = %+v", resp.Recent)
	}
}

func TestStatusEmptyRecentIsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), `"recent":[]`) {
		t.Fatalf("expected empty recent array, got %s", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// One request first so the http metrics have a sample.
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "obsrec_http_requests_total") {
		t.Fatal("expected obsrec_http_requests_total in metrics output")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	logs := logbuffer.New(10)
	logs.Add(logbuffer.LogEntry{Level: "info", Component: "scheduler", Message: "waiting for reservation"})
	logs.Add(logbuffer.LogEntry{Level: "error", Component: "recording_controller", Message: "start recording failed"})
	srv := New("127.0.0.1:0", state.NewStore(), logs, zerolog.Nop())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/logs?level=error", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Entries []logbuffer.LogEntry `json:"entries"`
		Stats   logbuffer.Stats      `json:"stats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Message != "start recording failed" {
		t.Fatalf("entries = %+v", body.Entries)
	}
	if body.Stats.Count != 2 {
		t.Fatalf("stats = %+v", body.Stats)
	}

	tests := []string{"/api/v1/logs?limit=x", "/api/v1/logs?since=yesterday"}
	for _, target := range tests {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, rr.Code)
		}
	}
}

func TestLogsEndpointAbsentWithoutBuffer(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
