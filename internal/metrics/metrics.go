package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Admissions The total number of booking requests accepted into the queue (counter)
	Admissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "admissions_total",
			Help:      "The total number of booking requests admitted to the queue",
		},
	)

	// Outcomes Terminal results of admitted requests by status and error kind (counter)
	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "outcomes_total",
			Help:      "The total number of admitted requests by terminal status",
		},
		[]string{"status", "kind"},
	)

	// QueueDepth Requests waiting for the worker (gauge)
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "booking",
			Name:      "queue_depth",
			Help:      "The number of requests waiting in the admission queue",
		},
	)

	// ExecutionDuration Time spent executing one booking (summary with quantiles 0.5, 0.9, and 0.99)
	ExecutionDuration = promauto.NewSummary(
		prometheus.SummaryOpts{
			Namespace:  "booking",
			Name:       "execution_duration_seconds",
			Help:       "The time spent executing a single booking request",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
	)

	// Rollbacks Ticket reservations reverted after a failed booking attempt (counter)
	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "rollbacks_total",
			Help:      "The total number of booking attempts whose tickets were released",
		},
		[]string{"stage"},
	)

	// Transitions Booking status changes after creation (counter)
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "transitions_total",
			Help:      "The total number of booking status transitions",
		},
		[]string{"to", "reason"},
	)

	// EventsPublished Broker publications by queue and result (counter)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "published_total",
			Help:      "The total number of booking events published",
		},
		[]string{"queue", "result"},
	)

	// RateLimited Requests rejected by the admission rate limiter (counter)
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "rate_limited_total",
			Help:      "The total number of booking requests rejected by the rate limiter",
		},
	)
)
