package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BirthDate is a calendar date without time-of-day or zone.
type BirthDate struct {
	Year  int
	Month int
	Day   int
}

// InvalidDateError reports a date that does not exist on the Gregorian calendar.
type InvalidDateError struct {
	Input  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidDateError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid date %q", e.Input)
	}
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

// NewBirthDate validates and constructs a BirthDate.
func NewBirthDate(year, month, day int) (BirthDate, error) {
	d := BirthDate{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return BirthDate{}, err
	}
	return d, nil
}

// BirthDateFromTime converts t (in its own location) to a BirthDate.
func BirthDateFromTime(t time.Time) BirthDate {
	return BirthDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ParseBirthDate parses YYYY-MM-DD (or YYYY/MM/DD) into a validated BirthDate.
func ParseBirthDate(value string) (BirthDate, error) {
	raw := strings.TrimSpace(value)
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 {
		return BirthDate{}, &InvalidDateError{Input: value, Reason: "expected YYYY-MM-DD"}
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return BirthDate{}, &InvalidDateError{Input: value, Reason: "non-numeric component"}
		}
		nums[i] = n
	}
	return NewBirthDate(nums[0], nums[1], nums[2])
}

// Validate reports an InvalidDateError when the date does not exist.
func (d BirthDate) Validate() error {
	if d.Year < 1 {
		return &InvalidDateError{Input: d.String(), Reason: "year must be 1 or later"}
	}
	if d.Month < 1 || d.Month > 12 {
		return &InvalidDateError{Input: d.String(), Reason: "month out of range"}
	}
	if d.Day < 1 || d.Day > daysIn(d.Year, d.Month) {
		return &InvalidDateError{Input: d.String(), Reason: "day out of range"}
	}
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d BirthDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns midnight UTC on the date.
func (d BirthDate) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d BirthDate) AddDays(n int) BirthDate {
	return BirthDateFromTime(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d BirthDate) Before(other BirthDate) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d BirthDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *BirthDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseBirthDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func daysIn(year, month int) int {
	// Day 0 of the following month is the last day of month.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
