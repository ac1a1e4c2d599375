// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification delivery results.
const (
	notifySent   = "sent"
	notifyFailed = "failed"
)

// Metrics for auth operations. They are package-level so every Service
// shares them; Collectors hands them to the observability registry.
var (
	// operationsTotal counts operations by name and outcome kind ("ok" on success).
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placy_auth_operations_total",
		Help: "Total number of auth operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// operationDuration tracks operation latency, dominated by password hashing.
	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "placy_auth_operation_duration_seconds",
		Help:    "Histogram of auth operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// notificationsTotal counts background reset code deliveries.
	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placy_auth_notifications_total",
		Help: "Total number of reset code notifications by result",
	}, []string{"result"})
)

// Collectors returns the auth metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{operationsTotal, operationDuration, notificationsTotal}
}

func recordOperation(op string, err error, elapsed time.Duration) {
	operationsTotal.WithLabelValues(op, outcomeLabel(err)).Inc()
	operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func recordNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}
