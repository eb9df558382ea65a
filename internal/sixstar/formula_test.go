package sixstar

import (
	"errors"
	"testing"

	domain "github.com/hanko-field/fortune/internal/domain"
)

func TestFormulaCalculator_KnownDate(t *testing.T) {
	date := domain.BirthDate{Year: 1972, Month: 6, Day: 14}

	result, err := FormulaCalculator{}.Calculate(date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AdjustedYear != 1972 {
		t.Fatalf("expected adjusted year 1972, got %d", result.AdjustedYear)
	}
	if result.DestinyNumber != 49 {
		t.Fatalf("expected destiny number 49, got %d", result.DestinyNumber)
	}
	if result.StarNumber != 2 {
		t.Fatalf("expected star number 2, got %d", result.StarNumber)
	}
	if result.StarType != "土星人+" {
		t.Fatalf("expected 土星人+, got %q", result.StarType)
	}
	if result.Zodiac != "子" {
		t.Fatalf("expected zodiac 子, got %q", result.Zodiac)
	}
	if result.Element != domain.ElementEarth {
		t.Fatalf("expected element 土, got %q", result.Element)
	}
	if result.Source != domain.SixStarSourceFormula || result.Confidence != domain.FormulaConfidence {
		t.Fatalf("expected formula source with confidence 0.3, got %s/%v", result.Source, result.Confidence)
	}
}

func TestFormulaCalculator_SpringBoundary(t *testing.T) {
	tests := []struct {
		year int
	}{
		{year: 1924},
		{year: 1972},
		{year: 2000},
		{year: 2024},
		{year: 1},
	}

	for _, tc := range tests {
		before, err := FormulaCalculator{}.Calculate(domain.BirthDate{Year: tc.year, Month: 2, Day: 3})
		if err != nil {
			t.Fatalf("year %d: unexpected error: %v", tc.year, err)
		}
		after, err := FormulaCalculator{}.Calculate(domain.BirthDate{Year: tc.year, Month: 2, Day: 4})
		if err != nil {
			t.Fatalf("year %d: unexpected error: %v", tc.year, err)
		}
		if before.AdjustedYear != tc.year-1 {
			t.Fatalf("year %d: expected Feb 3 to use %d, got %d", tc.year, tc.year-1, before.AdjustedYear)
		}
		if after.AdjustedYear != tc.year {
			t.Fatalf("year %d: expected Feb 4 to use %d, got %d", tc.year, tc.year, after.AdjustedYear)
		}
	}
}

func TestFormulaCalculator_BoundaryReadings(t *testing.T) {
	before, err := FormulaCalculator{}.Calculate(domain.BirthDate{Year: 2000, Month: 2, Day: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := FormulaCalculator{}.Calculate(domain.BirthDate{Year: 2000, Month: 2, Day: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if before.StarType != "金星人-" || before.Zodiac != "卯" || before.DestinyNumber != 16 {
		t.Fatalf("unexpected 2000-02-03 reading: %+v", before)
	}
	if after.StarType != "金星人+" || after.Zodiac != "辰" || after.DestinyNumber != 17 {
		t.Fatalf("unexpected 2000-02-04 reading: %+v", after)
	}
}

func TestFormulaCalculator_Ranges(t *testing.T) {
	valid := make(map[domain.Star]bool)
	for _, star := range Stars() {
		valid[star] = true
	}
	days := []struct{ month, day int }{{1, 1}, {2, 3}, {2, 4}, {6, 30}, {12, 31}}

	for year := 1; year <= 3000; year++ {
		for _, md := range days {
			result, err := FormulaCalculator{}.Calculate(domain.BirthDate{Year: year, Month: md.month, Day: md.day})
			if err != nil {
				t.Fatalf("%04d-%02d-%02d: unexpected error: %v", year, md.month, md.day, err)
			}
			if result.DestinyNumber < 1 || result.DestinyNumber > 60 {
				t.Fatalf("%04d-%02d-%02d: destiny number %d out of range", year, md.month, md.day, result.DestinyNumber)
			}
			if result.StarNumber < 1 || result.StarNumber > 60 {
				t.Fatalf("%04d-%02d-%02d: star number %d out of range", year, md.month, md.day, result.StarNumber)
			}
			if !valid[result.Star] {
				t.Fatalf("%04d-%02d-%02d: unexpected star %q", year, md.month, md.day, result.Star)
			}
			if _, ok := ElementOf(result.Star); !ok || result.Element == "" {
				t.Fatalf("%04d-%02d-%02d: missing element for %q", year, md.month, md.day, result.Star)
			}
		}
	}
}

func TestFormulaCalculator_InvalidDate(t *testing.T) {
	_, err := FormulaCalculator{}.Calculate(domain.BirthDate{Year: 2001, Month: 2, Day: 29})
	var invalid *domain.InvalidDateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDateError, got %v", err)
	}
}

func TestZodiacCycle(t *testing.T) {
	if got := Zodiac(1924); got != "子" {
		t.Fatalf("expected 子 for 1924, got %q", got)
	}
	if got := Zodiac(1923); got != "亥" {
		t.Fatalf("expected 亥 for 1923, got %q", got)
	}
	if got := Zodiac(1924 + 12*7 + 3); got != "卯" {
		t.Fatalf("expected 卯, got %q", got)
	}
}

func TestUranusSharesEarth(t *testing.T) {
	saturn, _ := ElementOf(domain.StarSaturn)
	uranus, _ := ElementOf(domain.StarUranus)
	if saturn != uranus || uranus != domain.ElementEarth {
		t.Fatalf("expected 天王星 to share 土, got %q and %q", saturn, uranus)
	}
}
