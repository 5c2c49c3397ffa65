package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/observability"
)

// metrics implements the observability hooks with Prometheus collectors on
// a private registry, written to --metrics-file when the command exits.
type metrics struct {
	registry *prometheus.Registry

	captures        *prometheus.CounterVec
	captureDuration prometheus.Histogram
	frames          *prometheus.CounterVec
	renderDuration  prometheus.Histogram
	artifactBytes   prometheus.Gauge
	invocations     *prometheus.CounterVec
	invokeDuration  prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deckreel_frames_captured_total",
			Help: "Frame captures by event kind and outcome",
		}, []string{"kind", "status"}),
		captureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deckreel_capture_duration_seconds",
			Help:    "Time to serialize and persist one frame",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deckreel_frames_rendered_total",
			Help: "Rasterized frames by source",
		}, []string{"source"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deckreel_render_duration_seconds",
			Help:    "Time to render a frame sequence into an animation",
			Buckets: prometheus.DefBuckets,
		}),
		artifactBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deckreel_artifact_bytes",
			Help: "Size of the last animation written",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deckreel_renderer_invocations_total",
			Help: "Renderer process invocations by exit code and error code",
		}, []string{"exit_code", "code"}),
		invokeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deckreel_renderer_duration_seconds",
			Help:    "Wall time of renderer process invocations",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.captures, m.captureDuration,
		m.frames, m.renderDuration, m.artifactBytes,
		m.invocations, m.invokeDuration,
	)
	return m
}

// install registers m as the process-wide observability hooks.
func (m *metrics) install() {
	observability.SetCaptureHooks(m)
	observability.SetRenderHooks(m)
	observability.SetInvocationHooks(m)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *metrics) OnCapture(_ context.Context, _ int, _, kind string, d time.Duration, err error) {
	m.captures.WithLabelValues(kind, status(err)).Inc()
	m.captureDuration.Observe(d.Seconds())
}

func (m *metrics) OnRenderStart(context.Context, int) {}

func (m *metrics) OnFrameRendered(_ context.Context, _ int, cached bool, _ time.Duration) {
	source := "drawn"
	if cached {
		source = "cache"
	}
	m.frames.WithLabelValues(source).Inc()
}

func (m *metrics) OnRenderComplete(_ context.Context, _ int, size int64, d time.Duration, err error) {
	m.renderDuration.Observe(d.Seconds())
	if err == nil {
		m.artifactBytes.Set(float64(size))
	}
}

func (m *metrics) OnInvoke(context.Context, []string) {}

func (m *metrics) OnInvokeComplete(_ context.Context, exitCode int, d time.Duration, err error) {
	code := "OK"
	if err != nil {
		code = string(errors.GetCode(err))
	}
	m.invocations.WithLabelValues(strconv.Itoa(exitCode), code).Inc()
	m.invokeDuration.Observe(d.Seconds())
}

// writeMetrics writes the collected metrics to --metrics-file, if set.
func (c *CLI) writeMetrics() error {
	if c.metrics == nil || c.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(c.metricsFile, c.metrics.registry); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write metrics %s", c.metricsFile)
	}
	c.Logger.Debug("metrics written", "path", c.metricsFile)
	return nil
}
