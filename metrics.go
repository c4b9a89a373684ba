// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logship

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "logship"

// Drop reasons reported on events_dropped_total.
const (
	reasonOverflow      = "overflow"
	reasonTransport     = "transport"
	reasonSerialization = "serialization"
	reasonInert         = "inert"
	reasonOther         = "other"
)

// metrics groups the logger's counters. Collectors are always created so
// sinks can update them unconditionally; they are only exposed when a
// registerer is configured.
type metrics struct {
	Dispatched  *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Flushes     *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	QueueLength *prometheus.GaugeVec
}

func newMetrics() *metrics {
	return &metrics{
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dispatched_total",
			Help:      "Number of events handed to a sink after level filtering.",
		}, []string{"sink", "level"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dropped_total",
			Help:      "Number of events a sink discarded.",
		}, []string{"sink", "reason"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "flushes_total",
			Help:      "Number of batch sends by result.",
		}, []string{"sink", "result"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sink_failures_total",
			Help:      "Number of failures reported by sinks.",
		}, []string{"sink", "op"}),
		QueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_length",
			Help:      "Events buffered and not yet sent.",
		}, []string{"sink"}),
	}
}

// collectors returns every collector for registration.
func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Dispatched, m.Dropped, m.Flushes, m.Failures, m.QueueLength}
}

// register exposes m through reg. When another logger already registered
// the same collectors, m adopts them so both loggers update the exported
// series.
func (m *metrics) register(reg prometheus.Registerer) error {
	counters := []**prometheus.CounterVec{&m.Dispatched, &m.Dropped, &m.Flushes, &m.Failures}
	for _, c := range counters {
		existing, err := registerOrExisting(reg, *c)
		if err != nil {
			return err
		}
		vec, ok := existing.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("collector registered with a different type: %T", existing)
		}
		*c = vec
	}

	existing, err := registerOrExisting(reg, m.QueueLength)
	if err != nil {
		return err
	}
	gauge, ok := existing.(*prometheus.GaugeVec)
	if !ok {
		return fmt.Errorf("collector registered with a different type: %T", existing)
	}
	m.QueueLength = gauge
	return nil
}

func registerOrExisting(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector, nil
	}
	return nil, err
}

func (m *metrics) dispatched(sink string, level Level) {
	m.Dispatched.WithLabelValues(sink, level.String()).Inc()
}

func (m *metrics) dropped(sink, reason string, n int) {
	m.Dropped.WithLabelValues(sink, reason).Add(float64(n))
}

func (m *metrics) flushed(sink string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Flushes.WithLabelValues(sink, result).Inc()
}

func (m *metrics) failure(sink, op string) {
	m.Failures.WithLabelValues(sink, op).Inc()
}

func (m *metrics) queue(sink string, n int) {
	m.QueueLength.WithLabelValues(sink).Set(float64(n))
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrSerialization):
		return reasonSerialization
	case errors.Is(err, ErrTransport):
		return reasonTransport
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrUnsupportedRuntime):
		return reasonInert
	case errors.Is(err, ErrQueueOverflow):
		return reasonOverflow
	}
	return reasonOther
}
