// Package export publishes ingestion and rendering metrics to Prometheus
package export

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yourorg/liveview/internal/buffer"
	"github.com/yourorg/liveview/internal/render"
)

// PrometheusExporter exports metrics to Prometheus. It observes the
// coordinator and is drawn as a render surface.
type PrometheusExporter struct {
	// Counter metrics
	samplesIngested *prometheus.CounterVec
	samplesDropped  *prometheus.CounterVec
	redrawSignals   prometheus.Counter
	framesDrawn     prometheus.Counter

	// Gauge metrics
	bufferOccupancy *prometheus.GaugeVec
	latestValue     *prometheus.GaugeVec
	framePoints     prometheus.Gauge
	activeViewers   prometheus.Gauge
	sessionRunning  prometheus.Gauge
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter() *PrometheusExporter {
	return &PrometheusExporter{
		samplesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveview_samples_ingested_total",
				Help: "Total number of samples accepted into a channel store",
			},
			[]string{"channel"},
		),

		samplesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveview_samples_dropped_total",
				Help: "Total number of inbound units dropped before ingestion",
			},
			[]string{"reason"},
		),

		redrawSignals: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveview_redraw_signals_total",
				Help: "Number of times the redraw threshold was reached",
			},
		),

		framesDrawn: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveview_frames_drawn_total",
				Help: "Number of frames handed to render surfaces",
			},
		),

		bufferOccupancy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "liveview_buffer_occupancy",
				Help: "Samples held by a channel store at the last frame",
			},
			[]string{"channel"},
		),

		latestValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "liveview_channel_latest_value",
				Help: "Value of the newest plotted sample of a channel at the last frame",
			},
			[]string{"channel"},
		),

		framePoints: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "liveview_frame_points",
				Help: "Number of points in the last frame after subsampling",
			},
		),

		activeViewers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "liveview_active_viewers",
				Help: "Number of connected WebSocket viewers",
			},
		),

		sessionRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "liveview_session_running",
				Help: "1 while the ingestion session is running",
			},
		),
	}
}

// Register registers all metrics with reg
func (e *PrometheusExporter) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		e.samplesIngested,
		e.samplesDropped,
		e.redrawSignals,
		e.framesDrawn,
		e.bufferOccupancy,
		e.latestValue,
		e.framePoints,
		e.activeViewers,
		e.sessionRunning,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SampleIngested records an accepted sample
func (e *PrometheusExporter) SampleIngested(ch buffer.ChannelID) {
	e.samplesIngested.WithLabelValues(ch.String()).Inc()
}

// SampleDropped records a dropped unit
func (e *PrometheusExporter) SampleDropped(reason string) {
	e.samplesDropped.WithLabelValues(reason).Inc()
}

// RedrawSignalled records a threshold crossing
func (e *PrometheusExporter) RedrawSignalled() {
	e.redrawSignals.Inc()
}

// Draw updates the per-channel gauges from a frame
func (e *PrometheusExporter) Draw(frame render.Frame) {
	e.framesDrawn.Inc()
	e.framePoints.Set(float64(frame.Points()))
	for _, s := range frame.Series {
		label := s.Channel.String()
		e.bufferOccupancy.WithLabelValues(label).Set(float64(s.Stored))
		if n := len(s.Samples); n > 0 {
			e.latestValue.WithLabelValues(label).Set(s.Samples[n-1].Val)
		}
	}
}

// SetActiveViewers updates the active viewers gauge
func (e *PrometheusExporter) SetActiveViewers(count int) {
	e.activeViewers.Set(float64(count))
}

// SetSessionRunning updates the session gauge
func (e *PrometheusExporter) SetSessionRunning(running bool) {
	if running {
		e.sessionRunning.Set(1)
		return
	}
	e.sessionRunning.Set(0)
}

// Status reports state that is polled rather than pushed
type Status struct {
	Viewers func() int
	Running func() bool
}

// UpdateLoop refreshes the polled gauges every interval until ctx ends
func (e *PrometheusExporter) UpdateLoop(ctx context.Context, interval time.Duration, status Status) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		e.update(status)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (e *PrometheusExporter) update(status Status) {
	if status.Viewers != nil {
		e.SetActiveViewers(status.Viewers())
	}
	if status.Running != nil {
		e.SetSessionRunning(status.Running())
	}
}
