package sixstar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/hanko-field/fortune/internal/sixstar"

var tracer = otel.Tracer(instrumentationName)

type instruments struct {
	refreshLatency metric.Float64Histogram
	refreshes      metric.Int64Counter
	resolutions    metric.Int64Counter
	comparisons    metric.Int64Counter
}

// newInstruments registers the package instruments on meter. Registration
// failures are logged and leave the instrument nil.
func newInstruments(meter metric.Meter, logger *zap.Logger) *instruments {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ins := &instruments{}
	var err error
	if ins.refreshLatency, err = meter.Float64Histogram(
		"sixstar.dataset.refresh.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of destiny dataset refreshes"),
	); err != nil {
		logger.Warn("sixstar: unable to register refresh latency metric", zap.Error(err))
	}
	if ins.refreshes, err = meter.Int64Counter(
		"sixstar.dataset.refresh.count",
		metric.WithDescription("Count of destiny dataset refresh attempts by outcome"),
	); err != nil {
		logger.Warn("sixstar: unable to register refresh count metric", zap.Error(err))
	}
	if ins.resolutions, err = meter.Int64Counter(
		"sixstar.resolve.count",
		metric.WithDescription("Count of six-star resolutions by source"),
	); err != nil {
		logger.Warn("sixstar: unable to register resolve metric", zap.Error(err))
	}
	if ins.comparisons, err = meter.Int64Counter(
		"sixstar.compare.count",
		metric.WithDescription("Count of dataset/formula comparisons by outcome"),
	); err != nil {
		logger.Warn("sixstar: unable to register compare metric", zap.Error(err))
	}
	return ins
}

func (i *instruments) recordRefresh(ctx context.Context, source string, d time.Duration, err error) {
	if i == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("source", source), attribute.String("outcome", outcome))
	if i.refreshLatency != nil {
		i.refreshLatency.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
	}
	if i.refreshes != nil {
		i.refreshes.Add(ctx, 1, attrs)
	}
}

func (i *instruments) recordResolution(ctx context.Context, source string) {
	if i == nil || i.resolutions == nil {
		return
	}
	i.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (i *instruments) recordComparison(ctx context.Context, match bool) {
	if i == nil || i.comparisons == nil {
		return
	}
	i.comparisons.Add(ctx, 1, metric.WithAttributes(attribute.Bool("match", match)))
}
