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
	// RunnerRequests tracks top-level requests run to quiescence.
	RunnerRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "requests_total",
			Help:      "Total number of top-level requests run to quiescence",
		},
		[]string{"source"}, // command, network, scheduler
	)

	// RunnerIterationsExceeded tracks seeds dropped for exceeding MaxIterations.
	RunnerIterationsExceeded = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "iterations_exceeded_total",
			Help:      "Total number of envelope chains dropped for exceeding the iteration bound",
		},
		[]string{"event_type"},
	)

	// RunnerRequestDuration tracks one top-level request's wall time.
	RunnerRequestDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "request_duration_seconds",
			Help:      "Duration of one top-level request run to quiescence",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
	)
)
