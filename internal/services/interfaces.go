// Package services exposes the fortune engine's public operations.
package services

import (
	"context"

	domain "github.com/hanko-field/fortune/internal/domain"
	"github.com/hanko-field/fortune/internal/seimei"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	BirthDate          = domain.BirthDate
	FiveGradeResult    = domain.FiveGradeResult
	SixStarResult      = domain.SixStarResult
	SixStarComparison  = domain.SixStarComparison
	SystemHealthReport = domain.SystemHealthReport
	CharStrokes        = seimei.CharStrokes
)

// FortuneService bundles the name and birth-date readings.
type FortuneService interface {
	// ResolveNameStrokes returns the stroke total of text. It never fails.
	ResolveNameStrokes(text string) int
	NameStrokeBreakdown(text string) []CharStrokes
	CalculateFiveGrades(surname, givenName string) FiveGradeResult
	ResolveSixStar(ctx context.Context, date BirthDate) (SixStarResult, error)
	CompareSixStar(ctx context.Context, date BirthDate) (SixStarComparison, error)
	CompareSixStarRange(ctx context.Context, from, to BirthDate, concurrency int) ([]SixStarComparison, error)
}

// SixStarResolver is the six-star engine the fortune service delegates to.
type SixStarResolver interface {
	Resolve(ctx context.Context, date BirthDate) (SixStarResult, error)
	Compare(ctx context.Context, date BirthDate) (SixStarComparison, error)
	CompareRange(ctx context.Context, from, to BirthDate, concurrency int) ([]SixStarComparison, error)
}

// SystemService reports service health and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
