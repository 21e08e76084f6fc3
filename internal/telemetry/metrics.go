// Package telemetry exposes gesturecall metrics through OpenTelemetry with
// a Prometheus exporter.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/ayusman/gesturecall"

// Cycle outcomes recorded by the detection loop.
const (
	CycleNotReady   = "not_ready"
	CycleIdle       = "idle"
	CycleBusy       = "busy"
	CycleDispatched = "dispatched"
)

// Metrics records loop and call activity. The zero value is not usable;
// use NewMetrics or Noop.
type Metrics struct {
	cycles      metric.Int64Counter
	recognition metric.Float64Histogram
	recErrors   metric.Int64Counter
	gestures    metric.Int64Counter
	calls       metric.Int64Counter
	decisions   metric.Int64Counter
	pluginRuns  metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.cycles, err = meter.Int64Counter("gesturecall.loop.cycles",
		metric.WithDescription("Detection loop cycles by outcome")); err != nil {
		return nil, err
	}
	if m.recognition, err = meter.Float64Histogram("gesturecall.recognizer.duration",
		metric.WithDescription("Recognizer call latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.recErrors, err = meter.Int64Counter("gesturecall.recognizer.errors",
		metric.WithDescription("Failed recognizer calls")); err != nil {
		return nil, err
	}
	if m.gestures, err = meter.Int64Counter("gesturecall.gestures",
		metric.WithDescription("Gesture labels delivered to the call state machine")); err != nil {
		return nil, err
	}
	if m.calls, err = meter.Int64Counter("gesturecall.calls.started",
		metric.WithDescription("Ringing sessions started")); err != nil {
		return nil, err
	}
	if m.decisions, err = meter.Int64Counter("gesturecall.calls.decided",
		metric.WithDescription("Call decisions by outcome")); err != nil {
		return nil, err
	}
	if m.pluginRuns, err = meter.Int64Counter("gesturecall.plugin.runs",
		metric.WithDescription("Plugin action runs by result")); err != nil {
		return nil, err
	}
	return m, nil
}

// Noop returns Metrics that record nothing.
func Noop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

// Cycle counts one detection cycle with its outcome.
func (m *Metrics) Cycle(ctx context.Context, outcome string) {
	m.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Recognition records the duration of a recognizer call and counts failures.
func (m *Metrics) Recognition(ctx context.Context, seconds float64, err error) {
	m.recognition.Record(ctx, seconds)
	if err != nil {
		m.recErrors.Add(ctx, 1)
	}
}

// Gesture counts a recognized top gesture.
func (m *Metrics) Gesture(ctx context.Context, label string) {
	m.gestures.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// CallStarted counts a call that started ringing.
func (m *Metrics) CallStarted(ctx context.Context) {
	m.calls.Add(ctx, 1)
}

// CallDecided counts a decided call by decision.
func (m *Metrics) CallDecided(ctx context.Context, decision string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// PluginRun counts a plugin action run and whether it failed.
func (m *Metrics) PluginRun(ctx context.Context, plugin string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.pluginRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("result", result),
	))
}

// Provider bundles the meter provider and its scrape handler.
type Provider struct {
	Metrics  *Metrics
	Handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// Setup creates a meter provider exporting to a private Prometheus
// registry, so repeated setups in one process do not collide.
func Setup() (*Provider, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	metrics, err := NewMetrics(mp.Meter(meterName))
	if err != nil {
		mp.Shutdown(context.Background())
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	return &Provider{
		Metrics:  metrics,
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		provider: mp,
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
