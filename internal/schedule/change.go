package schedule

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chrissnell/deltah/pkg/lookup"
)

// ErrEmptyLandCover is returned when a record has no land-cover label.
var ErrEmptyLandCover = errors.New("schedule: land-cover label is required")

// Binder is the registration surface of the simulation engine. The engine keeps track of the
// cumulative melt and picks the matching lookup row itself; records carry no state.
type Binder interface {
	AddLookupTable(month int, landCover string, unitIDs []int, increments []float64, areas, volumes [][]float64) error
	AddSeasonalConversion(month, day int, landCover string) error
}

// Change is a record that can register itself with a Binder.
type Change interface {
	Bind(b Binder) error
	Month() int
	LandCover() string
	DayOfYear(year int) int
}

// ScheduledChange applies a glacier lookup table to one land cover once a year in a given
// month. It is immutable once built; accessors return copies.
type ScheduledChange struct {
	month      int
	landCover  string
	unitIDs    []int
	increments []float64
	areas      [][]float64
	volumes    [][]float64
}

// NewLookupTableChange wraps an in-memory lookup table.
func NewLookupTableChange(month interface{}, landCover string, t *lookup.Table) (*ScheduledChange, error) {
	m, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(landCover) == "" {
		return nil, ErrEmptyLandCover
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lookup table for %s: %w", landCover, err)
	}

	return &ScheduledChange{
		month:      m,
		landCover:  landCover,
		unitIDs:    append([]int(nil), t.UnitIDs...),
		increments: t.Index(),
		areas:      t.Areas(),
		volumes:    t.Volumes(),
	}, nil
}

// LoadLookupTableChange rebuilds a scheduled change from the persisted area and volume CSV
// tables. The two tables must agree on unit ids and rows.
func LoadLookupTableChange(month interface{}, landCover string, areaR, volumeR io.Reader) (*ScheduledChange, error) {
	t, err := lookup.ReadCSV(areaR, volumeR)
	if err != nil {
		return nil, err
	}
	return NewLookupTableChange(month, landCover, t)
}

// Month returns the recurrence month (1-12).
func (c *ScheduledChange) Month() int { return c.month }

// LandCover returns the land-cover label the table applies to.
func (c *ScheduledChange) LandCover() string { return c.landCover }

// UnitIDs returns the spatial unit ids in column order.
func (c *ScheduledChange) UnitIDs() []int {
	return append([]int(nil), c.unitIDs...)
}

// Increments returns the increment index column (0..N).
func (c *ScheduledChange) Increments() []float64 {
	return append([]float64(nil), c.increments...)
}

// Areas returns a copy of the area matrix (m²), one row per increment.
func (c *ScheduledChange) Areas() [][]float64 { return copyRows(c.areas) }

// Volumes returns a copy of the volume matrix (m³), one row per increment.
func (c *ScheduledChange) Volumes() [][]float64 { return copyRows(c.volumes) }

// Table rebuilds the lookup table the change was created from.
func (c *ScheduledChange) Table() (*lookup.Table, error) {
	return lookup.FromRows(c.unitIDs, c.areas, c.volumes)
}

// DayOfYear returns the first day of the recurrence month in the given year.
func (c *ScheduledChange) DayOfYear(year int) int {
	return dayOfYear(year, c.month, 1)
}

// Bind registers the change with the simulation engine.
func (c *ScheduledChange) Bind(b Binder) error {
	return b.AddLookupTable(c.month, c.landCover, c.UnitIDs(), c.Increments(), c.Areas(), c.Volumes())
}

// SeasonalConversion converts the remaining seasonal snow of a land cover into ice on a fixed
// date every year.
type SeasonalConversion struct {
	month     int
	day       int
	landCover string
}

// NewSeasonalConversion validates the trigger date and label.
func NewSeasonalConversion(month interface{}, day int, landCover string) (*SeasonalConversion, error) {
	m, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	if err := validateDay(m, day); err != nil {
		return nil, err
	}
	if strings.TrimSpace(landCover) == "" {
		return nil, ErrEmptyLandCover
	}
	return &SeasonalConversion{month: m, day: day, landCover: landCover}, nil
}

// Month returns the trigger month (1-12).
func (s *SeasonalConversion) Month() int { return s.month }

// Day returns the trigger day of month.
func (s *SeasonalConversion) Day() int { return s.day }

// LandCover returns the land-cover label whose snow is converted.
func (s *SeasonalConversion) LandCover() string { return s.landCover }

// DayOfYear returns the trigger day of year in the given year.
func (s *SeasonalConversion) DayOfYear(year int) int {
	return dayOfYear(year, s.month, s.day)
}

// Bind registers the trigger with the simulation engine.
func (s *SeasonalConversion) Bind(b Binder) error {
	return b.AddSeasonalConversion(s.month, s.day, s.landCover)
}

func copyRows(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for i, row := range in {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
