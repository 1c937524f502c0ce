package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records diagnostic run metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records one probe invocation with its outcome status
	// and duration.
	RecordProbe(ctx context.Context, name, status string, duration time.Duration)

	// RecordAction records one executed remediation action and whether
	// it succeeded.
	RecordAction(ctx context.Context, kind string, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	probeCount   metric.Int64Counter
	probeHist    metric.Float64Histogram
	actionCount  metric.Int64Counter
	actionErrors metric.Int64Counter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	probeCount, err := meter.Int64Counter(
		"diag.probe.total",
		metric.WithDescription("Total number of probe invocations"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	probeHist, err := meter.Float64Histogram(
		"diag.probe.duration_ms",
		metric.WithDescription("Probe invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	actionCount, err := meter.Int64Counter(
		"diag.action.total",
		metric.WithDescription("Total number of executed remediation actions"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	actionErrors, err := meter.Int64Counter(
		"diag.action.errors",
		metric.WithDescription("Total number of failed remediation actions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		probeCount:   probeCount,
		probeHist:    probeHist,
		actionCount:  actionCount,
		actionErrors: actionErrors,
	}, nil
}

// RecordProbe records metrics for one probe invocation.
func (m *metricsImpl) RecordProbe(ctx context.Context, name, status string, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("probe.name", name),
		attribute.String("probe.status", status),
	)

	m.probeCount.Add(ctx, 1, opt)
	m.probeHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordAction records metrics for one remediation action.
func (m *metricsImpl) RecordAction(ctx context.Context, kind string, err error) {
	opt := metric.WithAttributes(attribute.String("action.kind", kind))

	m.actionCount.Add(ctx, 1, opt)
	if err != nil {
		m.actionErrors.Add(ctx, 1, opt)
	}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordProbe(ctx context.Context, name, status string, duration time.Duration) {
}

func (m *noopMetrics) RecordAction(ctx context.Context, kind string, err error) {}
