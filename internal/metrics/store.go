// Copyright (C) 2025 quiet-mesh project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsStored tracks rows written to the append-only event log.
	EventsStored = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_stored_total",
			Help:      "Total number of events written to the event log",
		},
		[]string{"event_type"},
	)

	// EventsPurged tracks tombstoned events by reason.
	EventsPurged = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_purged_total",
			Help:      "Total number of events purged (tombstoned)",
		},
		[]string{"event_type", "reason"},
	)

	// ProjectionsApplied tracks projector deltas applied to the derived view.
	ProjectionsApplied = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "projections_applied_total",
			Help:      "Total number of projected-view deltas applied",
		},
		[]string{"table", "op"},
	)

	// DependenciesBlocked tracks envelopes persisted into the dependency index.
	DependenciesBlocked = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "dependencies_blocked_total",
			Help:      "Total number of envelopes blocked on unmet dependencies",
		},
	)

	// DependenciesExhausted tracks blocked envelopes evicted at the retry cap.
	DependenciesExhausted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "dependencies_exhausted_total",
			Help:      "Total number of blocked envelopes dropped after exhausting retries",
		},
	)
)
