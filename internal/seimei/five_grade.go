package seimei

import (
	"math"

	domain "github.com/hanko-field/fortune/internal/domain"
)

// UnknownScore is assigned when a category has no score mapping.
const UnknownScore = 50

var categoryScores = map[domain.FortuneCategory]int{
	domain.FortuneGreatBlessing: 100,
	domain.FortuneMidBlessing:   80,
	domain.FortuneBlessing:      60,
	domain.FortuneCurse:         40,
	domain.FortuneMidCurse:      20,
	domain.FortuneGreatCurse:    0,
}

// Score maps a fortune category to its numeric score.
func Score(category domain.FortuneCategory) int {
	if score, ok := categoryScores[category]; ok {
		return score
	}
	return UnknownScore
}

var gradeNames = map[domain.GradeKey]string{
	domain.GradeHeaven:        "天格",
	domain.GradePersonality:   "人格",
	domain.GradeEarth:         "地格",
	domain.GradeOuterRelation: "外格",
	domain.GradeTotal:         "総格",
}

// gradeWeights doubles personality and total in the overall score.
var gradeWeights = map[domain.GradeKey]int{
	domain.GradeHeaven:        1,
	domain.GradePersonality:   2,
	domain.GradeEarth:         1,
	domain.GradeOuterRelation: 1,
	domain.GradeTotal:         2,
}

// Calculator derives the five grades for a name.
type Calculator struct {
	resolver *Resolver
	fortunes *FortuneTable
}

// CalculatorOption customises a Calculator.
type CalculatorOption func(*Calculator)

// WithResolver overrides the stroke resolver.
func WithResolver(resolver *Resolver) CalculatorOption {
	return func(c *Calculator) {
		if resolver != nil {
			c.resolver = resolver
		}
	}
}

// WithFortuneTable overrides the fortune table.
func WithFortuneTable(table *FortuneTable) CalculatorOption {
	return func(c *Calculator) {
		c.fortunes = table
	}
}

// NewCalculator constructs a Calculator over the built-in tables unless overridden.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		resolver: NewResolver(),
		fortunes: DefaultFortuneTable(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Resolver exposes the stroke resolver used by the calculator.
func (c *Calculator) Resolver() *Resolver {
	return c.resolver
}

// Calculate computes the five grades for surname and givenName.
//
// Personality is the sum of both name totals rather than the classical join of
// the surname's last and given name's first character.
func (c *Calculator) Calculate(surname, givenName string) domain.FiveGradeResult {
	surnameSum := c.resolver.Resolve(surname)
	givenSum := c.resolver.Resolve(givenName)

	heaven := surnameSum + 1
	earth := givenSum
	result := domain.FiveGradeResult{
		SurnameSum:    surnameSum,
		GivenNameSum:  givenSum,
		Heaven:        heaven,
		Personality:   surnameSum + givenSum,
		Earth:         earth,
		OuterRelation: heaven + earth - 1,
		Total:         surnameSum + givenSum,
	}

	grades := []struct {
		key   domain.GradeKey
		value int
	}{
		{domain.GradeHeaven, result.Heaven},
		{domain.GradePersonality, result.Personality},
		{domain.GradeEarth, result.Earth},
		{domain.GradeOuterRelation, result.OuterRelation},
		{domain.GradeTotal, result.Total},
	}

	result.Categories = make([]domain.GradeCategory, 0, len(grades))
	weighted, weights := 0, 0
	for _, g := range grades {
		category := c.grade(g.key, g.value)
		result.Categories = append(result.Categories, category)
		weighted += category.Score * gradeWeights[g.key]
		weights += gradeWeights[g.key]
	}
	result.OverallScore = int(math.Round(float64(weighted) / float64(weights)))
	return result
}

func (c *Calculator) grade(key domain.GradeKey, value int) domain.GradeCategory {
	category := domain.GradeCategory{
		Key:         key,
		Name:        gradeNames[key],
		StrokeCount: value,
		Reduced:     Reduce(value),
		Fortune:     domain.FortuneUnknown,
		Score:       UnknownScore,
	}
	entry, ok := c.fortunes.Lookup(value)
	if !ok {
		return category
	}
	category.Fortune = entry.Category
	category.Score = Score(entry.Category)
	category.Explanation = entry.Explanation
	return category
}
