// Package metrics holds the Prometheus collectors shared by the API and the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttendanceUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edupulse_attendance_upserts_total",
		Help: "Attendance upserts by marking source and result.",
	}, []string{"source", "result"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edupulse_gateway_requests_total",
		Help: "LLM gateway calls by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edupulse_gateway_request_seconds",
		Help:    "LLM gateway call latency.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"purpose"})

	RosterImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edupulse_roster_import_rows_total",
		Help: "CSV roster rows by result.",
	}, []string{"result"})

	PhotoJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edupulse_photo_jobs_total",
		Help: "Asynchronous photo-marking jobs by outcome.",
	}, []string{"outcome"})
)

// Result label helper.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
