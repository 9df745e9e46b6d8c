// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/ballotline/middleware"
)

// Registry holds every Ballotline collector. A private registry keeps
// tests from colliding with the global default.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ballotline",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	EmailsSent = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "emails_sent_total",
		Help:      "Queued emails delivered.",
	})

	EmailsFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "emails_failed_total",
		Help:      "Queued emails given up on.",
	})

	EmailsRetried = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "emails_retried_total",
		Help:      "Delivery attempts rescheduled after a transient failure.",
	})

	EmailQueueDepth = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ballotline",
		Name:      "email_queue_depth",
		Help:      "Rows in the email queue by status.",
	}, []string{"status"})

	NotificationsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "notifications_created_total",
		Help:      "In-app notifications created by fan-out.",
	})

	EventsFannedOut = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "events_fanned_out_total",
		Help:      "Change events delivered to followers.",
	})

	Donations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "donations_total",
		Help:      "Donation state changes by resulting status.",
	}, []string{"status"})

	RateLimited = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"route"})

	CandidatesImported = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "ballotline",
		Name:      "candidates_imported_total",
		Help:      "Candidate rows created by bulk import.",
	})
)

// SetQueueDepth replaces the queue depth gauges with counts
func SetQueueDepth(counts map[string]int) {
	for _, status := range []string{"pending", "sending", "sent", "failed"} {
		EmailQueueDepth.WithLabelValues(status).Set(float64(counts[status]))
	}
}

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. The route label is the
// matched ServeMux pattern so path parameters don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &middleware.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.Status)).Inc()
		HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if rec.Status == http.StatusTooManyRequests {
			RateLimited.WithLabelValues(route).Inc()
		}
	})
}
