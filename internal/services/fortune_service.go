package services

import (
	"context"
	"errors"

	domain "github.com/hanko-field/fortune/internal/domain"
	"github.com/hanko-field/fortune/internal/seimei"
	"github.com/hanko-field/fortune/internal/sixstar"
)

// ErrFortuneUnavailable indicates the service was not constructed.
var ErrFortuneUnavailable = errors.New("fortune: service unavailable")

// FortuneServiceDeps bundles collaborators required to construct a fortune service.
// Nil collaborators default to the built-in tables and a formula-only resolver.
type FortuneServiceDeps struct {
	Calculator *seimei.Calculator
	SixStar    SixStarResolver
	Logger     func(context.Context, string, map[string]any)
}

type fortuneService struct {
	calculator *seimei.Calculator
	sixStar    SixStarResolver
	logger     func(context.Context, string, map[string]any)
}

var _ FortuneService = (*fortuneService)(nil)

// NewFortuneService assembles the fortune service.
func NewFortuneService(deps FortuneServiceDeps) FortuneService {
	calculator := deps.Calculator
	if calculator == nil {
		calculator = seimei.NewCalculator()
	}
	resolver := deps.SixStar
	if resolver == nil {
		resolver = sixstar.NewResolver(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &fortuneService{
		calculator: calculator,
		sixStar:    resolver,
		logger:     logger,
	}
}

func (s *fortuneService) ResolveNameStrokes(text string) int {
	return s.calculator.Resolver().Resolve(text)
}

func (s *fortuneService) NameStrokeBreakdown(text string) []CharStrokes {
	return s.calculator.Resolver().Breakdown(text)
}

func (s *fortuneService) CalculateFiveGrades(surname, givenName string) FiveGradeResult {
	return s.calculator.Calculate(surname, givenName)
}

func (s *fortuneService) ResolveSixStar(ctx context.Context, date BirthDate) (SixStarResult, error) {
	if s == nil || s.sixStar == nil {
		return SixStarResult{}, ErrFortuneUnavailable
	}
	result, err := s.sixStar.Resolve(ctx, date)
	if err != nil {
		return SixStarResult{}, err
	}
	s.logger(ctx, "fortune.six_star.resolved", map[string]any{
		"source":     string(result.Source),
		"confidence": result.Confidence,
	})
	return result, nil
}

func (s *fortuneService) CompareSixStar(ctx context.Context, date BirthDate) (SixStarComparison, error) {
	if s == nil || s.sixStar == nil {
		return SixStarComparison{}, ErrFortuneUnavailable
	}
	return s.sixStar.Compare(ctx, date)
}

func (s *fortuneService) CompareSixStarRange(ctx context.Context, from, to BirthDate, concurrency int) ([]SixStarComparison, error) {
	if s == nil || s.sixStar == nil {
		return nil, ErrFortuneUnavailable
	}
	results, err := s.sixStar.CompareRange(ctx, from, to, concurrency)
	if err != nil {
		return nil, err
	}

	var mismatches, missing int
	for _, c := range results {
		switch {
		case c.Dataset == nil:
			missing++
		case !c.Match:
			mismatches++
		}
	}
	s.logger(ctx, "fortune.six_star.range_compared", map[string]any{
		"from":       from.String(),
		"to":         to.String(),
		"days":       len(results),
		"mismatches": mismatches,
		"missing":    missing,
	})
	return results, nil
}

// IsInvalidDate reports whether err stems from a calendar-invalid birth date.
func IsInvalidDate(err error) bool {
	var invalid *domain.InvalidDateError
	return errors.As(err, &invalid)
}
