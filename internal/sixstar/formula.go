package sixstar

import (
	domain "github.com/hanko-field/fortune/internal/domain"
)

const (
	// epochYear is year one of the sixty-term destiny cycle.
	epochYear = 1924
	cycleLen  = 60

	// Dates before February 4th belong to the previous astrological year.
	springMonth = 2
	springDay   = 4
)

var starOrder = []domain.Star{
	domain.StarSaturn,
	domain.StarVenus,
	domain.StarMars,
	domain.StarMercury,
	domain.StarJupiter,
	domain.StarUranus,
}

var zodiacOrder = []string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

// Uranus shares earth with Saturn.
var starElements = map[domain.Star]domain.Element{
	domain.StarSaturn:  domain.ElementEarth,
	domain.StarVenus:   domain.ElementMetal,
	domain.StarMars:    domain.ElementFire,
	domain.StarMercury: domain.ElementWater,
	domain.StarJupiter: domain.ElementWood,
	domain.StarUranus:  domain.ElementEarth,
}

// Stars returns the six stars in cycle order.
func Stars() []domain.Star {
	out := make([]domain.Star, len(starOrder))
	copy(out, starOrder)
	return out
}

// ElementOf returns the classical element associated with star.
func ElementOf(star domain.Star) (domain.Element, bool) {
	e, ok := starElements[star]
	return e, ok
}

// AdjustedYear returns the astrological year of d.
func AdjustedYear(d domain.BirthDate) int {
	if d.Month < springMonth || (d.Month == springMonth && d.Day < springDay) {
		return d.Year - 1
	}
	return d.Year
}

// DestinyNumber returns the 1..60 destiny number for an astrological year.
func DestinyNumber(adjustedYear int) int {
	return mod(adjustedYear-epochYear, cycleLen) + 1
}

// StarNumber combines a destiny number with the day of month into 1..60.
func StarNumber(destinyNumber, day int) int {
	return mod(destinyNumber-1+day-1, cycleLen) + 1
}

// Zodiac returns the zodiac sign of an astrological year.
func Zodiac(adjustedYear int) string {
	return zodiacOrder[mod(adjustedYear-epochYear, len(zodiacOrder))]
}

func starFor(starNumber int) domain.Star {
	return starOrder[((starNumber-1)/10)%len(starOrder)]
}

func polarityFor(destinyNumber int) domain.Polarity {
	if destinyNumber%2 != 0 {
		return domain.PolarityPlus
	}
	return domain.PolarityMinus
}

// FormulaCalculator derives six-star readings without the dataset.
type FormulaCalculator struct{}

// Calculate computes the six-star reading for date. It fails only for
// calendar-invalid dates.
func (FormulaCalculator) Calculate(date domain.BirthDate) (domain.SixStarResult, error) {
	if err := date.Validate(); err != nil {
		return domain.SixStarResult{}, err
	}

	year := AdjustedYear(date)
	destiny := DestinyNumber(year)
	starNum := StarNumber(destiny, date.Day)
	star := starFor(starNum)
	polarity := polarityFor(destiny)

	return domain.SixStarResult{
		StarType:      domain.StarType(star, polarity),
		Star:          star,
		Polarity:      polarity,
		Confidence:    domain.FormulaConfidence,
		Source:        domain.SixStarSourceFormula,
		DestinyNumber: destiny,
		StarNumber:    starNum,
		AdjustedYear:  year,
		Zodiac:        Zodiac(year),
		Element:       starElements[star],
	}, nil
}

func mod(a, n int) int {
	return (a%n + n) % n
}
