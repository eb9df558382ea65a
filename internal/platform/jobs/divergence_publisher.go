package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/fortune/internal/domain"
)

const divergenceIDPrefix = "div_"

// DivergenceMessage is the Pub/Sub payload describing a dataset/formula disagreement.
type DivergenceMessage struct {
	ReportID    string                `json:"reportId"`
	Date        domain.BirthDate      `json:"date"`
	Dataset     *domain.SixStarResult `json:"dataset,omitempty"`
	Formula     domain.SixStarResult  `json:"formula"`
	Differences []string              `json:"differences"`
	Environment string                `json:"environment,omitempty"`
	DetectedAt  time.Time             `json:"detectedAt"`
}

// PubSubDivergencePublisher publishes six-star divergence reports to a Pub/Sub topic.
type PubSubDivergencePublisher struct {
	topic       *pubsub.Topic
	environment string
	now         func() time.Time
	newID       func() string
	marshal     func(any) ([]byte, error)
}

// PublisherOption customises a PubSubDivergencePublisher.
type PublisherOption func(*PubSubDivergencePublisher)

// WithEnvironment tags each report with the deployment environment.
func WithEnvironment(env string) PublisherOption {
	return func(p *PubSubDivergencePublisher) {
		p.environment = strings.TrimSpace(env)
	}
}

// WithClock injects a custom time source.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *PubSubDivergencePublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator overrides report ID generation.
func WithIDGenerator(gen func() string) PublisherOption {
	return func(p *PubSubDivergencePublisher) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// NewPubSubDivergencePublisher constructs a Pub/Sub backed divergence publisher.
func NewPubSubDivergencePublisher(topic *pubsub.Topic, opts ...PublisherOption) (*PubSubDivergencePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub divergence publisher: topic is required")
	}
	p := &PubSubDivergencePublisher{
		topic:   topic,
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
		marshal: json.Marshal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// ReportDivergence publishes comparison and waits for the server acknowledgement.
func (p *PubSubDivergencePublisher) ReportDivergence(ctx context.Context, comparison domain.SixStarComparison) error {
	_, err := p.Publish(ctx, comparison)
	return err
}

// Publish enqueues a divergence report and returns the Pub/Sub message ID.
func (p *PubSubDivergencePublisher) Publish(ctx context.Context, comparison domain.SixStarComparison) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub divergence publisher: not initialised")
	}

	message := DivergenceMessage{
		ReportID:    divergenceIDPrefix + strings.ToLower(p.newID()),
		Date:        comparison.Date,
		Dataset:     comparison.Dataset,
		Formula:     comparison.Formula,
		Differences: comparison.Differences,
		Environment: p.environment,
		DetectedAt:  p.now().UTC(),
	}
	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal divergence report: %w", err)
	}

	attrs := map[string]string{
		"reportId": message.ReportID,
		"date":     comparison.Date.String(),
	}
	if p.environment != "" {
		attrs["environment"] = p.environment
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish divergence report: %w", err)
	}
	return id, nil
}
