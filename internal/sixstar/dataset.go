// Package sixstar resolves six-star astrology readings from the destiny
// dataset, falling back to a closed-form calculation.
package sixstar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	domain "github.com/hanko-field/fortune/internal/domain"
)

const (
	defaultDatasetTTL   = 5 * time.Minute
	defaultFetchTimeout = 10 * time.Second
	defaultRetryBackoff = 30 * time.Second
	refreshFlightKey    = "refresh"
	shortYearModulus    = 100
)

type dayKey struct {
	year, month, day int
}

type snapshot struct {
	records   []domain.DestinyRecord
	index     map[dayKey]int
	report    ParseReport
	loadedAt  time.Time
	expiresAt time.Time
}

// DatasetStatus describes the cached dataset for readiness checks.
type DatasetStatus struct {
	Source    string    `json:"source"`
	Loaded    bool      `json:"loaded"`
	Records   int       `json:"records"`
	Discarded int       `json:"discarded"`
	LoadedAt  time.Time `json:"loadedAt,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

// Dataset lazily loads the destiny dataset and caches it for a TTL. Concurrent
// callers observing an expired cache share a single in-flight refresh.
type Dataset struct {
	source Source
	logger *zap.Logger
	now    func() time.Time

	ttl          time.Duration
	fetchTimeout time.Duration
	retryBackoff time.Duration

	metrics *instruments
	group   singleflight.Group

	mu          sync.RWMutex
	snap        *snapshot
	lastErr     error
	lastFailure time.Time
}

type datasetConfig struct {
	logger       *zap.Logger
	meter        metric.Meter
	now          func() time.Time
	ttl          time.Duration
	fetchTimeout time.Duration
	retryBackoff time.Duration
}

// DatasetOption customises Dataset construction.
type DatasetOption func(*datasetConfig)

// WithTTL sets how long a loaded snapshot is served before refreshing.
func WithTTL(d time.Duration) DatasetOption {
	return func(cfg *datasetConfig) {
		if d > 0 {
			cfg.ttl = d
		}
	}
}

// WithFetchTimeout bounds each refresh.
func WithFetchTimeout(d time.Duration) DatasetOption {
	return func(cfg *datasetConfig) {
		if d > 0 {
			cfg.fetchTimeout = d
		}
	}
}

// WithRetryBackoff sets how long refreshes are suppressed after a failure.
func WithRetryBackoff(d time.Duration) DatasetOption {
	return func(cfg *datasetConfig) {
		if d >= 0 {
			cfg.retryBackoff = d
		}
	}
}

// WithClock injects a custom time source (useful for tests).
func WithClock(now func() time.Time) DatasetOption {
	return func(cfg *datasetConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) DatasetOption {
	return func(cfg *datasetConfig) {
		cfg.logger = logger
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) DatasetOption {
	return func(cfg *datasetConfig) {
		cfg.meter = m
	}
}

// NewDataset constructs a Dataset reading from source.
func NewDataset(source Source, opts ...DatasetOption) (*Dataset, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	cfg := datasetConfig{
		now:          time.Now,
		ttl:          defaultDatasetTTL,
		fetchTimeout: defaultFetchTimeout,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	return &Dataset{
		source:       source,
		logger:       cfg.logger,
		now:          cfg.now,
		ttl:          cfg.ttl,
		fetchTimeout: cfg.fetchTimeout,
		retryBackoff: cfg.retryBackoff,
		metrics:      newInstruments(cfg.meter, cfg.logger),
	}, nil
}

// Load returns every record in the dataset, refreshing the cache when expired.
func (d *Dataset) Load(ctx context.Context) ([]domain.DestinyRecord, error) {
	snap, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DestinyRecord, len(snap.records))
	copy(out, snap.records)
	return out, nil
}

// FindExact returns the record for the given date. When no record carries the
// full year it retries with a two-digit year and remaps the match onto year.
func (d *Dataset) FindExact(ctx context.Context, year, month, day int) (domain.DestinyRecord, bool, error) {
	snap, err := d.current(ctx)
	if err != nil {
		return domain.DestinyRecord{}, false, err
	}
	if idx, ok := snap.index[dayKey{year, month, day}]; ok {
		return snap.records[idx], true, nil
	}
	if year >= shortYearModulus {
		if idx, ok := snap.index[dayKey{year % shortYearModulus, month, day}]; ok {
			record := snap.records[idx]
			record.Year = year
			return record, true, nil
		}
	}
	return domain.DestinyRecord{}, false, nil
}

// Status reports the cached snapshot without triggering a refresh.
func (d *Dataset) Status() DatasetStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := DatasetStatus{Source: d.source.Name()}
	if d.snap != nil {
		status.Loaded = true
		status.Records = len(d.snap.records)
		status.Discarded = d.snap.report.Discarded
		status.LoadedAt = d.snap.loadedAt
		status.ExpiresAt = d.snap.expiresAt
	}
	if d.lastErr != nil {
		status.LastError = d.lastErr.Error()
	}
	return status
}

// current returns a fresh snapshot, refreshing when needed. A stale snapshot
// keeps serving when a refresh fails or the caller's context ends first.
func (d *Dataset) current(ctx context.Context) (*snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	now := d.now()

	d.mu.RLock()
	snap := d.snap
	lastErr := d.lastErr
	lastFailure := d.lastFailure
	d.mu.RUnlock()

	if snap != nil && now.Before(snap.expiresAt) {
		return snap, nil
	}
	if lastErr != nil && d.retryBackoff > 0 && now.Before(lastFailure.Add(d.retryBackoff)) {
		if snap != nil {
			return snap, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, lastErr)
	}

	// The refresh outlives a cancelled leader so other waiters still get a result.
	flightCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan(refreshFlightKey, func() (any, error) {
		return d.refresh(flightCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if snap != nil {
				return snap, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, res.Err)
		}
		return res.Val.(*snapshot), nil
	case <-ctx.Done():
		if snap != nil {
			return snap, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, ctx.Err())
	}
}

func (d *Dataset) refresh(ctx context.Context) (*snapshot, error) {
	d.mu.RLock()
	existing := d.snap
	d.mu.RUnlock()
	if existing != nil && d.now().Before(existing.expiresAt) {
		return existing, nil
	}

	ctx, span := tracer.Start(ctx, "sixstar.dataset.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("sixstar.dataset.source", d.source.Name()))

	if d.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := d.fetch(ctx)
	d.metrics.recordRefresh(ctx, d.source.Name(), time.Since(start), err)

	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.lastErr = err
		d.lastFailure = now
		if d.snap != nil {
			d.logger.Warn("sixstar: dataset refresh failed; serving stale snapshot",
				zap.String("source", d.source.Name()),
				zap.Time("loaded_at", d.snap.loadedAt),
				zap.Error(err),
			)
			return d.snap, nil
		}
		d.logger.Warn("sixstar: dataset refresh failed", zap.String("source", d.source.Name()), zap.Error(err))
		return nil, err
	}

	snap.loadedAt = now
	snap.expiresAt = now.Add(d.ttl)
	d.snap = snap
	d.lastErr = nil
	d.lastFailure = time.Time{}

	span.SetAttributes(attribute.Int("sixstar.dataset.records", len(snap.records)))
	d.logger.Info("sixstar: dataset refreshed",
		zap.String("source", d.source.Name()),
		zap.Int("records", snap.report.Accepted),
		zap.Int("discarded", snap.report.Discarded),
		zap.Duration("ttl", d.ttl),
	)
	return snap, nil
}

func (d *Dataset) fetch(ctx context.Context) (*snapshot, error) {
	body, err := d.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	records, report, err := ParseDataset(body)
	if err != nil {
		return nil, err
	}

	index := make(map[dayKey]int, len(records))
	for i, r := range records {
		key := dayKey{r.Year, r.Month, r.Day}
		if _, dup := index[key]; dup {
			continue
		}
		index[key] = i
	}
	return &snapshot{records: records, index: index, report: report}, nil
}
