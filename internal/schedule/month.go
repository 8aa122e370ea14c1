// Package schedule turns glacier lookup tables and fixed seasonal triggers into the inert
// scheduled-change records consumed by the simulation engine.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/soniakeys/meeus/v3/julian"
)

var (
	// ErrInvalidMonth is returned for months outside 1-12 or unknown month names.
	ErrInvalidMonth = errors.New("schedule: invalid month")
	// ErrInvalidDay is returned for days that do not exist in the given month.
	ErrInvalidDay = errors.New("schedule: invalid day")
)

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Days per month in a leap year; February 29 is accepted because the trigger recurs yearly.
var monthDays = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ParseMonth accepts a month as an integer (1-12), a numeric string, or an English month
// name or three-letter abbreviation in any case.
func ParseMonth(v interface{}) (int, error) {
	switch m := v.(type) {
	case int:
		return validateMonth(m)
	case int64:
		return validateMonth(int(m))
	case float64:
		if m != float64(int(m)) {
			return 0, fmt.Errorf("%w: %g", ErrInvalidMonth, m)
		}
		return validateMonth(int(m))
	case string:
		s := strings.ToLower(strings.TrimSpace(m))
		if n, err := strconv.Atoi(s); err == nil {
			return validateMonth(n)
		}
		for i, name := range monthNames {
			if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
				return i + 1, nil
			}
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, m)
	}
	return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidMonth, v)
}

// MonthName returns the capitalized English name of a month.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("month(%d)", month)
	}
	n := monthNames[month-1]
	return strings.ToUpper(n[:1]) + n[1:]
}

func validateMonth(m int) (int, error) {
	if m < 1 || m > 12 {
		return 0, fmt.Errorf("%w: %d (want 1-12)", ErrInvalidMonth, m)
	}
	return m, nil
}

func validateDay(month, day int) error {
	if _, err := validateMonth(month); err != nil {
		return err
	}
	if day < 1 || day > monthDays[month-1] {
		return fmt.Errorf("%w: %s has no day %d", ErrInvalidDay, MonthName(month), day)
	}
	return nil
}

// dayOfYear returns the day of year of month/day in the given Gregorian year. February 29 in
// a common year falls on March 1.
func dayOfYear(year, month, day int) int {
	leap := julian.LeapYearGregorian(year)
	if month == 2 && day == 29 && !leap {
		month, day = 3, 1
	}
	return julian.DayOfYear(year, month, day, leap)
}
