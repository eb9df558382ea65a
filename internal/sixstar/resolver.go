package sixstar

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domain "github.com/hanko-field/fortune/internal/domain"
)

const (
	defaultCompareConcurrency = 8
	// maxCompareRangeDays caps a single CompareRange sweep at roughly two centuries.
	maxCompareRangeDays = 200 * 366
)

// ErrCompareRangeTooLarge indicates a CompareRange request spans too many days.
var ErrCompareRangeTooLarge = errors.New("sixstar: compare range too large")

// DatasetLookup finds authoritative destiny records.
type DatasetLookup interface {
	FindExact(ctx context.Context, year, month, day int) (domain.DestinyRecord, bool, error)
}

// DivergenceReporter receives comparisons where the dataset and the formula disagree.
type DivergenceReporter interface {
	ReportDivergence(ctx context.Context, comparison domain.SixStarComparison) error
}

// Resolver produces six-star readings, preferring the dataset over the formula.
type Resolver struct {
	dataset  DatasetLookup
	formula  FormulaCalculator
	reporter DivergenceReporter
	logger   *zap.Logger
	metrics  *instruments
}

type resolverConfig struct {
	reporter DivergenceReporter
	logger   *zap.Logger
	meter    metric.Meter
}

// ResolverOption customises a Resolver.
type ResolverOption func(*resolverConfig)

// WithDivergenceReporter publishes disagreeing comparisons.
func WithDivergenceReporter(reporter DivergenceReporter) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.reporter = reporter
	}
}

// WithResolverLogger sets the logger used for fallbacks and divergences.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.logger = logger
	}
}

// WithResolverMeter injects a custom OpenTelemetry meter.
func WithResolverMeter(m metric.Meter) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.meter = m
	}
}

// NewResolver constructs a Resolver. A nil dataset resolves every date by formula.
func NewResolver(dataset DatasetLookup, opts ...ResolverOption) *Resolver {
	var cfg resolverConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return &Resolver{
		dataset:  dataset,
		reporter: cfg.reporter,
		logger:   cfg.logger,
		metrics:  newInstruments(cfg.meter, cfg.logger),
	}
}

// Resolve returns the six-star reading for date. The only error is
// *domain.InvalidDateError; dataset failures fall back to the formula.
func (r *Resolver) Resolve(ctx context.Context, date domain.BirthDate) (domain.SixStarResult, error) {
	if err := date.Validate(); err != nil {
		return domain.SixStarResult{}, err
	}

	if record, ok := r.lookup(ctx, date); ok {
		r.metrics.recordResolution(ctx, string(domain.SixStarSourceDataset))
		return fromRecord(record), nil
	}

	result, err := r.formula.Calculate(date)
	if err != nil {
		return domain.SixStarResult{}, err
	}
	r.metrics.recordResolution(ctx, string(domain.SixStarSourceFormula))
	return result, nil
}

// Compare runs both the dataset and the formula for date and reports whether
// they agree on star, polarity and destiny number.
func (r *Resolver) Compare(ctx context.Context, date domain.BirthDate) (domain.SixStarComparison, error) {
	formula, err := r.formula.Calculate(date)
	if err != nil {
		return domain.SixStarComparison{}, err
	}

	comparison := domain.SixStarComparison{Date: date, Formula: formula}
	if record, ok := r.lookup(ctx, date); ok {
		fromDataset := fromRecord(record)
		comparison.Dataset = &fromDataset
		comparison.Differences = differences(fromDataset, formula)
		comparison.Match = len(comparison.Differences) == 0
	} else {
		comparison.Differences = []string{"dataset: no record"}
	}

	r.metrics.recordComparison(ctx, comparison.Match)
	if comparison.Dataset != nil && !comparison.Match {
		r.logger.Info("sixstar: dataset and formula disagree",
			zap.String("date", date.String()),
			zap.Strings("differences", comparison.Differences),
		)
		if r.reporter != nil {
			if err := r.reporter.ReportDivergence(ctx, comparison); err != nil {
				r.logger.Warn("sixstar: divergence report failed", zap.String("date", date.String()), zap.Error(err))
			}
		}
	}
	return comparison, nil
}

// CompareRange compares every date from from through to inclusive, running up
// to concurrency comparisons at once. Results are ordered by date.
func (r *Resolver) CompareRange(ctx context.Context, from, to domain.BirthDate, concurrency int) ([]domain.SixStarComparison, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("sixstar: range end %s precedes start %s", to, from)
	}
	days := int(to.Time().Sub(from.Time()).Hours()/24) + 1
	if days > maxCompareRangeDays {
		return nil, fmt.Errorf("%w: %d days", ErrCompareRangeTooLarge, days)
	}
	if concurrency <= 0 {
		concurrency = defaultCompareConcurrency
	}

	results := make([]domain.SixStarComparison, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < days; i++ {
		i := i
		date := from.AddDays(i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			comparison, err := r.Compare(gctx, date)
			if err != nil {
				return err
			}
			results[i] = comparison
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Resolver) lookup(ctx context.Context, date domain.BirthDate) (domain.DestinyRecord, bool) {
	if r.dataset == nil {
		return domain.DestinyRecord{}, false
	}
	record, ok, err := r.dataset.FindExact(ctx, date.Year, date.Month, date.Day)
	if err != nil {
		r.logger.Warn("sixstar: dataset lookup failed; using formula",
			zap.String("date", date.String()),
			zap.Error(err),
		)
		return domain.DestinyRecord{}, false
	}
	return record, ok
}

func fromRecord(record domain.DestinyRecord) domain.SixStarResult {
	return domain.SixStarResult{
		StarType:      record.StarType(),
		Star:          record.Star,
		Polarity:      record.Polarity,
		Confidence:    domain.DatasetConfidence,
		Source:        domain.SixStarSourceDataset,
		DestinyNumber: record.DestinyNumber,
		Zodiac:        record.Zodiac,
		Element:       record.Element,
	}
}

func differences(dataset, formula domain.SixStarResult) []string {
	var diffs []string
	if dataset.Star != formula.Star {
		diffs = append(diffs, fmt.Sprintf("star: dataset=%s formula=%s", dataset.Star, formula.Star))
	}
	if dataset.Polarity != formula.Polarity {
		diffs = append(diffs, fmt.Sprintf("polarity: dataset=%s formula=%s", dataset.Polarity, formula.Polarity))
	}
	if dataset.DestinyNumber != formula.DestinyNumber {
		diffs = append(diffs, fmt.Sprintf("destinyNumber: dataset=%d formula=%d", dataset.DestinyNumber, formula.DestinyNumber))
	}
	return diffs
}
