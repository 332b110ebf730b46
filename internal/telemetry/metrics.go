/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "obsrec"

var (
	// SchedulerCyclesTotal counts schedule loop iterations.
	SchedulerCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_cycles_total",
		Help:      "Schedule loop iterations.",
	})

	// ReservationFetchesTotal counts reservation list fetches by result (ok, error).
	ReservationFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_fetches_total",
		Help:      "Reservation list fetches by result.",
	}, []string{"result"})

	// RecordingsTotal counts recording control outcomes by action.
	RecordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recordings_total",
		Help:      "Recording control outcomes by action.",
	}, []string{"action"})

	// LoopState is 1 for the current loop state and 0 for the others.
	LoopState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "loop_state",
		Help:      "Current schedule loop state.",
	}, []string{"state"})

	// NextReservationStart is the unix start time of the selected reservation, 0 when none.
	NextReservationStart = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "next_reservation_start_timestamp_seconds",
		Help:      "Start time of the next selected reservation.",
	})

	// SleepSecondsTotal accumulates requested sleep time by reason.
	SleepSecondsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sleep_seconds_total",
		Help:      "Seconds the schedule loop asked to sleep, by reason.",
	}, []string{"reason"})

	// DatabaseQueryDuration observes journal database operations.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "journal_query_duration_seconds",
		Help:      "Recording journal database operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed journal database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_errors_total",
		Help:      "Failed recording journal database operations.",
	}, []string{"operation"})

	// NATSPublishedTotal counts events forwarded to NATS by result.
	NATSPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nats_published_total",
		Help:      "Events forwarded to NATS by result.",
	}, []string{"result"})

	// APIRequestsTotal counts status server requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Status server requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes status server latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Status server request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight status server requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_active_requests",
		Help:      "In-flight status server requests.",
	})
)

// SetLoopState marks state as current in the LoopState gauge.
func SetLoopState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		LoopState.WithLabelValues(s).Set(v)
	}
}

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
