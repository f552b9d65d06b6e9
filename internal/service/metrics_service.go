package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elim-assembly/attendance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the attendance domain.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	admissions      *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_admissions_total",
		Help: "Admission attempts by input channel and outcome",
	}, []string{"channel", "outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absentee_notifications_total",
		Help: "Absentee follow-up notification attempts by result",
	}, []string{"result"})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		admissions,
		notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		admissions:      admissions,
		notifications:   notifications,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one request's latency and status.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	s.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveAdmission counts one pass through the deduplication guard.
func (s *MetricsService) ObserveAdmission(channel models.CheckInChannel, outcome models.AdmissionOutcome) {
	s.admissions.WithLabelValues(string(channel), string(outcome)).Inc()
}

// ObserveNotification counts one notification attempt.
func (s *MetricsService) ObserveNotification(success bool) {
	result := "sent"
	if !success {
		result = "failed"
	}
	s.notifications.WithLabelValues(result).Inc()
}
