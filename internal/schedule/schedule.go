package schedule

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Schedule collects the changes of one simulation setup.
type Schedule struct {
	changes []Change
}

// Add appends a change.
func (s *Schedule) Add(c Change) {
	s.changes = append(s.changes, c)
}

// Len returns the number of changes.
func (s *Schedule) Len() int {
	return len(s.changes)
}

// Changes returns the changes ordered by month, keeping insertion order within a month.
func (s *Schedule) Changes() []Change {
	out := append([]Change(nil), s.changes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Month() < out[j].Month()
	})
	return out
}

// BindAll registers every change with the engine in month order and stops at the first failure.
func (s *Schedule) BindAll(b Binder) error {
	for i, c := range s.Changes() {
		if err := c.Bind(b); err != nil {
			return fmt.Errorf("failed to bind change %d (%s, %s): %w", i, c.LandCover(), MonthName(c.Month()), err)
		}
	}
	return nil
}

// Entry is one change placed in a calendar year.
type Entry struct {
	Kind      string
	LandCover string
	Month     int
	DayOfYear int
}

// Timeline returns the day of year every change fires on in the given year, in month order.
func (s *Schedule) Timeline(year int) []Entry {
	changes := s.Changes()
	out := make([]Entry, 0, len(changes))
	for _, c := range changes {
		kind := "lookup_table"
		if _, ok := c.(*SeasonalConversion); ok {
			kind = "seasonal_conversion"
		}
		out = append(out, Entry{
			Kind:      kind,
			LandCover: c.LandCover(),
			Month:     c.Month(),
			DayOfYear: c.DayOfYear(year),
		})
	}
	return out
}

// LogBinder is a Binder that only logs what would be registered. The command line tools use
// it to show the schedule without a simulation engine.
type LogBinder struct {
	Logger *zap.SugaredLogger
}

func (l LogBinder) AddLookupTable(month int, landCover string, unitIDs []int, increments []float64, areas, volumes [][]float64) error {
	l.Logger.Infow("glacier lookup table scheduled",
		"month", MonthName(month),
		"land_cover", landCover,
		"units", unitIDs,
		"rows", len(increments),
		"initial_area_m2", floats.Sum(areas[0]),
		"initial_volume_m3", floats.Sum(volumes[0]),
	)
	return nil
}

func (l LogBinder) AddSeasonalConversion(month, day int, landCover string) error {
	l.Logger.Infow("seasonal snow to ice conversion scheduled",
		"month", MonthName(month),
		"day", day,
		"land_cover", landCover,
	)
	return nil
}

