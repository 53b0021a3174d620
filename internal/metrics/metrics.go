// SPDX-License-Identifier: AGPL-3.0-or-later
// mesytec-mvlc-collator - Parse Mesytec MVLC readout streams into collated events
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package metrics exposes the buffer reader's counters as Prometheus
// metrics. It implements reader.Observer directly so the core package
// never imports Prometheus: cmd wires a *Metrics in wherever a
// reader.Observer is accepted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bumps one counter per reader.Observer callback, plus a
// per-module counter vector supplementing the original experimental_setup's
// per-module event counters (see SPEC_FULL.md §4).
type Metrics struct {
	EventsParsedTotal        prometheus.Counter
	EventsDroppedEmptyTotal  prometheus.Counter
	SinkBackpressureTotal    prometheus.Counter
	TgvNotReadyTotal         prometheus.Counter
	UnknownModuleIDTotal     *prometheus.CounterVec
	ModuleEventsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers every metric against the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsParsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesytec_events_parsed_total",
			Help: "Total number of complete events dispatched to the sink.",
		}),
		EventsDroppedEmptyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesytec_events_dropped_empty_total",
			Help: "Total number of readout cycles that completed with no module data.",
		}),
		SinkBackpressureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesytec_sink_backpressure_total",
			Help: "Total number of times the sink refused an event and asked for retry.",
		}),
		TgvNotReadyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesytec_tgv_not_ready_total",
			Help: "Total number of events delivered with a zeroed TGV timestamp because the ready bit was unset.",
		}),
		UnknownModuleIDTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesytec_unknown_module_id_total",
			Help: "Total number of module headers seen for an id absent from the crate map, by id.",
		}, []string{"module_id"}),
		ModuleEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesytec_module_events_total",
			Help: "Total number of times each module contributed data to a dispatched event.",
		}, []string{"module"}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(m.EventsParsedTotal)
	prometheus.MustRegister(m.EventsDroppedEmptyTotal)
	prometheus.MustRegister(m.SinkBackpressureTotal)
	prometheus.MustRegister(m.TgvNotReadyTotal)
	prometheus.MustRegister(m.UnknownModuleIDTotal)
	prometheus.MustRegister(m.ModuleEventsTotal)
}

// EventParsed implements reader.Observer.
func (m *Metrics) EventParsed() { m.EventsParsedTotal.Inc() }

// EventDroppedEmpty implements reader.Observer.
func (m *Metrics) EventDroppedEmpty() { m.EventsDroppedEmptyTotal.Inc() }

// SinkBackpressure implements reader.Observer.
func (m *Metrics) SinkBackpressure() { m.SinkBackpressureTotal.Inc() }

// TgvNotReady implements reader.Observer.
func (m *Metrics) TgvNotReady() { m.TgvNotReadyTotal.Inc() }

// UnknownModuleID implements reader.Observer.
func (m *Metrics) UnknownModuleID(id uint8) {
	m.UnknownModuleIDTotal.WithLabelValues(formatModuleID(id)).Inc()
}

// RecordModuleEvent supplements the original experimental_setup's
// per-module event counters (see SPEC_FULL.md §4): call once per module name
// that contributed data to a dispatched event.
func (m *Metrics) RecordModuleEvent(moduleName string) {
	m.ModuleEventsTotal.WithLabelValues(moduleName).Inc()
}

func formatModuleID(id uint8) string {
	const hexDigits = "0123456789abcdef"
	return "0x" + string([]byte{hexDigits[id>>4], hexDigits[id&0xF]})
}
