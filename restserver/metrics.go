// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts and times REST requests.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates an unregistered set of request metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datastore",
				Subsystem: "rest",
				Name:      "requests_total",
				Help:      "Number of REST requests handled",
			},
			[]string{
				"action",
				"status",
			},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "datastore",
				Subsystem: "rest",
				Name:      "request_duration_seconds",
				Help:      "Time taken to handle REST requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{
				"action",
			},
		),
	}
}

// Register registers every metric with a registry.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Requests, m.Duration} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observe records one request.  Does nothing on a nil *Metrics.
func (m *Metrics) observe(action string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.With(prometheus.Labels{
		"action": action,
		"status": strconv.Itoa(status),
	}).Inc()
	m.Duration.With(prometheus.Labels{
		"action": action,
	}).Observe(elapsed.Seconds())
}
