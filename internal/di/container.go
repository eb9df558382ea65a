// Package di assembles the fortune engine and its platform collaborators from configuration.
package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/fortune/internal/platform/config"
	"github.com/hanko-field/fortune/internal/platform/jobs"
	"github.com/hanko-field/fortune/internal/platform/storage"
	"github.com/hanko-field/fortune/internal/repositories"
	"github.com/hanko-field/fortune/internal/services"
	"github.com/hanko-field/fortune/internal/sixstar"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Fortune services.FortuneService
	System  services.SystemService
}

// Container wires the dataset, resolver, publishers and services for runtime use.
type Container struct {
	Config   config.Config
	Services Services
	Dataset  *sixstar.Dataset
	Resolver *sixstar.Resolver

	logger  *zap.Logger
	closers []func() error
}

type containerOptions struct {
	logger        *zap.Logger
	meter         metric.Meter
	build         services.BuildInfo
	source        sixstar.Source
	clientOptions []option.ClientOption
}

// Option customises container construction.
type Option func(*containerOptions)

// WithLogger sets the base logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithMeter injects the OpenTelemetry meter shared by all instruments.
func WithMeter(m metric.Meter) Option {
	return func(o *containerOptions) {
		o.meter = m
	}
}

// WithBuildInfo sets the build metadata reported by health endpoints.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = info
	}
}

// WithDatasetSource overrides the dataset source derived from configuration.
func WithDatasetSource(src sixstar.Source) Option {
	return func(o *containerOptions) {
		o.source = src
	}
}

// WithClientOptions appends options applied to every Google Cloud client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *containerOptions) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// NewContainer constructs the runtime dependencies described by cfg.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	o := containerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if path := strings.TrimSpace(cfg.GCP.CredentialsFile); path != "" {
		o.clientOptions = append([]option.ClientOption{option.WithCredentialsFile(path)}, o.clientOptions...)
	}

	c := &Container{Config: cfg, logger: o.logger}
	if err := c.build(ctx, o); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, o containerOptions) error {
	cfg := c.Config

	source := o.source
	if source == nil {
		var err error
		source, err = c.datasetSource(ctx, cfg.Dataset, o.clientOptions)
		if err != nil {
			return err
		}
	}

	var checks []repositories.DependencyCheck
	if source != nil {
		ds, err := sixstar.NewDataset(source,
			sixstar.WithTTL(cfg.Dataset.TTL),
			sixstar.WithFetchTimeout(cfg.Dataset.FetchTimeout),
			sixstar.WithRetryBackoff(cfg.Dataset.RetryBackoff),
			sixstar.WithLogger(c.logger.Named("dataset")),
			sixstar.WithMeter(o.meter),
		)
		if err != nil {
			return fmt.Errorf("build destiny dataset: %w", err)
		}
		c.Dataset = ds
		checks = append(checks, repositories.DependencyCheck{
			Name:    "destiny_dataset",
			Timeout: cfg.Dataset.FetchTimeout,
			Check: func(ctx context.Context) error {
				if _, err := ds.Load(ctx); err != nil {
					return err
				}
				// Load keeps serving a stale snapshot after a failed refresh.
				if st := ds.Status(); st.LastError != "" {
					return fmt.Errorf("dataset refresh failing: %s", st.LastError)
				}
				return nil
			},
		})
	}

	resolverOpts := []sixstar.ResolverOption{
		sixstar.WithResolverLogger(c.logger.Named("sixstar")),
		sixstar.WithResolverMeter(o.meter),
	}
	if topicID := strings.TrimSpace(cfg.Divergence.Topic); topicID != "" {
		topic, err := c.divergenceTopic(ctx, cfg.GCP.ProjectID, topicID, o.clientOptions)
		if err != nil {
			return err
		}
		publisher, err := jobs.NewPubSubDivergencePublisher(topic, jobs.WithEnvironment(cfg.Environment))
		if err != nil {
			return fmt.Errorf("build divergence publisher: %w", err)
		}
		resolverOpts = append(resolverOpts, sixstar.WithDivergenceReporter(publisher))
		checks = append(checks, repositories.DependencyCheck{
			Name: "divergence_topic",
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topicID)
				}
				return nil
			},
		})
	}

	var lookup sixstar.DatasetLookup
	if c.Dataset != nil {
		lookup = c.Dataset
	}
	c.Resolver = sixstar.NewResolver(lookup, resolverOpts...)

	c.Services.Fortune = services.NewFortuneService(services.FortuneServiceDeps{
		SixStar: c.Resolver,
		Logger:  EventLogger(c.logger.Named("fortune")),
	})

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return fmt.Errorf("build health repository: %w", err)
	}
	build := o.build
	if build.Environment == "" {
		build.Environment = cfg.Environment
	}
	c.Services.System, err = services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            time.Now,
		Build:            build,
	})
	if err != nil {
		return fmt.Errorf("build system service: %w", err)
	}
	return nil
}

func (c *Container) datasetSource(ctx context.Context, cfg config.DatasetConfig, clientOpts []option.ClientOption) (sixstar.Source, error) {
	switch cfg.Source() {
	case config.DatasetSourceHTTP:
		return sixstar.NewHTTPSource(cfg.URL, sixstar.WithBearerToken(cfg.AuthToken)), nil
	case config.DatasetSourceGCS:
		client, err := gcs.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("build storage client: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		src, err := storage.NewObjectSource(client, cfg.GCSBucket, cfg.GCSObject)
		if err != nil {
			return nil, fmt.Errorf("build storage dataset source: %w", err)
		}
		return src, nil
	case config.DatasetSourceFile:
		return sixstar.FileSource{Path: cfg.File}, nil
	default:
		c.logger.Info("no destiny dataset configured; six-star readings use the formula only")
		return nil, nil
	}
}

func (c *Container) divergenceTopic(ctx context.Context, projectID, topicID string, clientOpts []option.ClientOption) (*pubsub.Topic, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("divergence topic requires a GCP project id")
	}
	client, err := pubsub.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	c.closers = append(c.closers, client.Close)
	topic := client.Topic(topicID)
	c.closers = append(c.closers, func() error {
		topic.Stop()
		return nil
	})
	return topic, nil
}

// Close releases clients in reverse construction order.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// EventLogger adapts zap to the event logger signature used by services.
func EventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info(event, zFields...)
	}
}
