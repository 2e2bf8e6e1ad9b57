package internal

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookstore_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_order_operations_total",
			Help: "Order operations by outcome",
		},
		[]string{"operation", "status"},
	)

	discountTiersApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_discount_tiers_applied_total",
			Help: "Discount tiers granted at order placement",
		},
		[]string{"tier"},
	)

	announcementsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookstore_announcements_published_total",
			Help: "Announcements flagged as published by the dispatcher",
		},
	)

	dispatcherCycleFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookstore_dispatcher_cycle_failures_total",
			Help: "Dispatcher cycles that ended with an error",
		},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_notification_failures_total",
			Help: "Best-effort notifications that could not be delivered",
		},
		[]string{"kind"},
	)
)

func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		path := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = strconv.Itoa(fe.Code)
			} else {
				status = strconv.Itoa(fiber.StatusInternalServerError)
			}
		}

		httpRequestsTotal.WithLabelValues(c.Method(), path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path, status).Observe(time.Since(start).Seconds())
		return err
	}
}

func recordOrderOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}
