package handlers

import (
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/internal/metrics"
)

// MetricsRecorder implements envelope.Recorder by feeding the
// package-level Prometheus collectors in internal/metrics, and logging
// the same transitions (§10.1): Debug per handler invocation, Warn on
// handler errors, Error when an envelope exhausts its iteration
// budget and is dropped.
type MetricsRecorder struct {
	Log logger.Logger
}

func (r MetricsRecorder) HandlerInvoked(name string, emitted int, err error) {
	metrics.HandlerInvocations.WithLabelValues(name).Inc()
	metrics.HandlerEmitted.WithLabelValues(name).Observe(float64(emitted))
	if err != nil {
		metrics.HandlerErrors.WithLabelValues(name).Inc()
		r.logger().Warn("handler error",
			logger.String("handler", name), logger.Error(err))
		return
	}
	r.logger().Debug("handler fired",
		logger.String("handler", name), logger.Int("emitted", emitted))
}

func (r MetricsRecorder) IterationsExceeded(eventType string) {
	metrics.RunnerIterationsExceeded.WithLabelValues(eventType).Inc()
	r.logger().Error("runner dropped envelope: iteration budget exceeded",
		logger.String("event_type", eventType))
}

func (r MetricsRecorder) logger() logger.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.GetDefaultLogger()
}
