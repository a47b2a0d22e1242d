// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the Prometheus collectors shared by the
// bridge and the publisher. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event results, used as the "result" label of EventsTotal.
const (
	ResultAccepted     = "accepted"
	ResultIgnored      = "ignored"
	ResultDecodeError  = "decode_error"
	ResultPublishError = "publish_error"
)

// Metrics holds every collector the bridge exports.
type Metrics struct {
	EventsTotal    *prometheus.CounterVec
	UpdatesTotal   prometheus.Counter
	FramesEnqueued prometheus.Counter
	FramesShipped  prometheus.Counter
	FramesDropped  prometheus.Counter
	ShipFailures   prometheus.Counter
	BufferBytes    prometheus.Gauge
}

// New creates the collectors and registers them with registerer. A nil
// registerer leaves them unregistered, which tests use to read values
// without global state.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "someip2val_events_total",
			Help: "Inbound SOME/IP events by handling result.",
		}, []string{"result"}),
		UpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip2val_updates_total",
			Help: "Signal updates handed to the publisher.",
		}),
		FramesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip2val_frames_enqueued_total",
			Help: "Frames pushed onto the publisher buffer.",
		}),
		FramesShipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip2val_frames_shipped_total",
			Help: "Frames delivered to the bus.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip2val_frames_dropped_total",
			Help: "Frames evicted from a full buffer or abandoned at shutdown.",
		}),
		ShipFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip2val_ship_failures_total",
			Help: "Failed attempts to deliver a frame to the bus.",
		}),
		BufferBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip2val_buffer_bytes",
			Help: "Encoded bytes waiting in the publisher buffer.",
		}),
	}
	// Pre-create result series so dashboards see zeros.
	for _, result := range []string{ResultAccepted, ResultIgnored, ResultDecodeError, ResultPublishError} {
		m.EventsTotal.WithLabelValues(result)
	}

	if registerer != nil {
		collectors := []prometheus.Collector{
			m.EventsTotal, m.UpdatesTotal, m.FramesEnqueued, m.FramesShipped,
			m.FramesDropped, m.ShipFailures, m.BufferBytes,
		}
		for _, collector := range collectors {
			if err := registerer.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Event counts one inbound event with the given result.
func (m *Metrics) Event(result string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(result).Inc()
}

// Updates counts signal updates handed to the publisher.
func (m *Metrics) Updates(count int) {
	if m == nil {
		return
	}
	m.UpdatesTotal.Add(float64(count))
}

// Enqueued counts one frame entering the buffer, and the frames the
// push evicted.
func (m *Metrics) Enqueued(evicted int) {
	if m == nil {
		return
	}
	m.FramesEnqueued.Inc()
	m.FramesDropped.Add(float64(evicted))
}

// Shipped counts one delivered frame.
func (m *Metrics) Shipped() {
	if m == nil {
		return
	}
	m.FramesShipped.Inc()
}

// Abandoned counts frames left undelivered at shutdown.
func (m *Metrics) Abandoned(count int) {
	if m == nil {
		return
	}
	m.FramesDropped.Add(float64(count))
}

// ShipFailed counts one failed delivery attempt.
func (m *Metrics) ShipFailed() {
	if m == nil {
		return
	}
	m.ShipFailures.Inc()
}

// Buffered records the buffer's current byte size.
func (m *Metrics) Buffered(bytes int) {
	if m == nil {
		return
	}
	m.BufferBytes.Set(float64(bytes))
}

// Handler serves the text exposition of gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
