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
	// HandlerInvocations tracks handler Process calls by handler name.
	HandlerInvocations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "invocations_total",
			Help:      "Total number of handler Process invocations",
		},
		[]string{"handler"},
	)

	// HandlerErrors tracks handler Process calls that returned an error.
	HandlerErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "errors_total",
			Help:      "Total number of handler Process errors",
		},
		[]string{"handler"},
	)

	// HandlerEmitted tracks envelopes emitted per handler invocation.
	HandlerEmitted = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "emitted_envelopes",
			Help:      "Number of envelopes emitted by one handler invocation",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		},
		[]string{"handler"},
	)

	// HandlerDuration tracks handler Process duration.
	HandlerDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "duration_seconds",
			Help:      "Handler Process duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"handler"},
	)
)
