/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestSetLoopState(t *testing.T) {
	all := []string{"idle", "waiting", "recording"}
	SetLoopState("waiting", all)

	if got := testutil.ToFloat64(LoopState.WithLabelValues("waiting")); got != 1 {
		t.Errorf("waiting = %v, want 1", got)
	}
	for _, s := range []string{"idle", "recording"} {
		if got := testutil.ToFloat64(LoopState.WithLabelValues(s)); got != 0 {
			t.Errorf("%s = %v, want 0", s, got)
		}
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/items/{id}", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/items/{id}", "418"))

	if after-before != 1 {
		t.Fatalf("expected one request counted under the route pattern, got %v", after-before)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SchedulerCyclesTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "obsrec_scheduler_cycles_total") {
		t.Fatal("expected scheduler cycle counter in metrics output")
	}
}

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), TracerConfig{ServiceName: "obsrec"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("init tracer: %v", err)
	}
	ctx, span := StartSpan(context.Background(), "test")
	span.End()
	if ctx == nil {
		t.Fatal("expected context from StartSpan")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
