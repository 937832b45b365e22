// SPDX-License-Identifier: EPL-2.0

// Package metrics provides Prometheus metrics for audio streams.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values of the callback path.
const (
	PathOutput       = "output"
	PathInput        = "input"
	PathDuplexOutput = "duplex_output"
	PathDuplexInput  = "duplex_input"
)

// Label values of the frame direction.
const (
	DirectionPlayback = "playback"
	DirectionCapture  = "capture"
)

// StreamMetrics contains the stream counters and gauges. A nil *StreamMetrics
// is valid and records nothing.
type StreamMetrics struct {
	stateTransitions *prometheus.CounterVec
	callbackErrors   *prometheus.CounterVec
	framesTotal      *prometheus.CounterVec
	captureDropped   prometheus.Counter
	inputUnderruns   prometheus.Counter
	activeStreams    prometheus.Gauge
	handoffDepth     *prometheus.GaugeVec
}

// NewStreamMetrics creates the metrics and registers them with reg. When reg
// already holds stream metrics those are returned instead.
func NewStreamMetrics(reg prometheus.Registerer) (*StreamMetrics, error) {
	m := &StreamMetrics{
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slaudio_stream_state_transitions_total",
				Help: "Stream state notifications delivered to the application",
			},
			[]string{"state"},
		),
		callbackErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slaudio_callback_errors_total",
				Help: "Buffer queue callbacks that ended in an error",
			},
			[]string{"path"},
		),
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slaudio_frames_total",
				Help: "Device frames exchanged with the data callback",
			},
			[]string{"direction"},
		),
		captureDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slaudio_capture_buffers_dropped_total",
			Help: "Captured buffers dropped because the handoff queue was full",
		}),
		inputUnderruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slaudio_input_underruns_total",
			Help: "Duplex playback cycles that found no captured buffer",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slaudio_active_streams",
			Help: "Streams created and not yet destroyed",
		}),
		handoffDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slaudio_handoff_queue_depth",
				Help: "Captured buffers waiting for duplex playback",
			},
			[]string{"stream"},
		),
	}

	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*StreamMetrics); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return m, nil
}

func (m *StreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.stateTransitions.Describe(ch)
	m.callbackErrors.Describe(ch)
	m.framesTotal.Describe(ch)
	m.captureDropped.Describe(ch)
	m.inputUnderruns.Describe(ch)
	m.activeStreams.Describe(ch)
	m.handoffDepth.Describe(ch)
}

func (m *StreamMetrics) Collect(ch chan<- prometheus.Metric) {
	m.stateTransitions.Collect(ch)
	m.callbackErrors.Collect(ch)
	m.framesTotal.Collect(ch)
	m.captureDropped.Collect(ch)
	m.inputUnderruns.Collect(ch)
	m.activeStreams.Collect(ch)
	m.handoffDepth.Collect(ch)
}

func (m *StreamMetrics) RecordState(state string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(state).Inc()
}

func (m *StreamMetrics) RecordCallbackError(path string) {
	if m == nil {
		return
	}
	m.callbackErrors.WithLabelValues(path).Inc()
}

func (m *StreamMetrics) AddFrames(direction string, frames int) {
	if m == nil || frames <= 0 {
		return
	}
	m.framesTotal.WithLabelValues(direction).Add(float64(frames))
}

func (m *StreamMetrics) RecordCaptureDrop() {
	if m == nil {
		return
	}
	m.captureDropped.Inc()
}

func (m *StreamMetrics) RecordInputUnderrun() {
	if m == nil {
		return
	}
	m.inputUnderruns.Inc()
}

func (m *StreamMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

// StreamClosed decrements the active gauge and forgets the stream's depth.
func (m *StreamMetrics) StreamClosed(stream string) {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
	m.handoffDepth.DeleteLabelValues(stream)
}

func (m *StreamMetrics) SetHandoffDepth(stream string, depth int) {
	if m == nil {
		return
	}
	m.handoffDepth.WithLabelValues(stream).Set(float64(depth))
}
