package glacier

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInvalidIncrements is returned when fewer than one melt increment is requested.
	ErrInvalidIncrements = errors.New("glacier: increments must be at least 1")
	// ErrInvalidGeometry is returned for negative, NaN or otherwise unusable input geometry.
	ErrInvalidGeometry = errors.New("glacier: invalid geometry")
)

// DefaultDensityRatio is the ice-to-water density ratio used to convert between ice
// thickness and water equivalent.
const DefaultDensityRatio = 0.9

// ElevationBand is one elevation slice of the glacier.
type ElevationBand struct {
	Elevation       float64 // m
	Area            float64 // m²
	WaterEquivalent float64 // mm
	UnitID          int
}

// PixelGroup holds the per-pixel ice water equivalent (mm) of one spatial unit.
type PixelGroup struct {
	UnitID          int
	WaterEquivalent []float64
}

// Geometry is the initial ice geometry of a catchment. Bands feed the elevation-band engine,
// Pixels the pixel engine. UnitIDs may list spatial units without any ice; they still get a
// (zero) column in the lookup table.
type Geometry struct {
	CatchmentArea float64 // m²
	UnitIDs       []int
	Bands         []ElevationBand
	PixelArea     float64 // m²
	Pixels        []PixelGroup
}

// WidthUpdate selects how band areas follow thickness changes.
type WidthUpdate string

const (
	// WidthUpdateOff keeps band areas fixed during the loop and rescales every row against
	// the initial geometry once the loop is done.
	WidthUpdateOff WidthUpdate = "off"
	// WidthUpdatePrevious rescales areas against the previous increment.
	WidthUpdatePrevious WidthUpdate = "previous"
	// WidthUpdateInitial rescales areas against the initial geometry at every increment.
	WidthUpdateInitial WidthUpdate = "initial"
)

// ParseWidthUpdate converts a configuration string into a WidthUpdate.
func ParseWidthUpdate(s string) (WidthUpdate, error) {
	switch WidthUpdate(s) {
	case WidthUpdateOff, WidthUpdatePrevious, WidthUpdateInitial:
		return WidthUpdate(s), nil
	case "":
		return WidthUpdatePrevious, nil
	}
	return "", fmt.Errorf("unknown width update mode %q (want off, previous or initial)", s)
}

// Options tune an evolution run.
type Options struct {
	WidthUpdate  WidthUpdate
	DensityRatio float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		WidthUpdate:  WidthUpdatePrevious,
		DensityRatio: DefaultDensityRatio,
	}
}

func (o Options) withDefaults() Options {
	if o.WidthUpdate == "" {
		o.WidthUpdate = WidthUpdatePrevious
	}
	if o.DensityRatio <= 0 || math.IsNaN(o.DensityRatio) {
		o.DensityRatio = DefaultDensityRatio
	}
	return o
}

// IceToWaterEquivalent converts an ice thickness in m into a water equivalent in mm.
func IceToWaterEquivalent(thicknessM, densityRatio float64) float64 {
	return thicknessM * 1000 * densityRatio
}

// Volume returns the ice volume (m³) of a water-equivalent depth (mm) over an area (m²).
func Volume(waterEquivalent, area, densityRatio float64) float64 {
	return waterEquivalent * area / (1000 * densityRatio)
}

// unitIDs returns the sorted, unique union of the declared units and the given owners.
func (g Geometry) unitIDs(owners []int) []int {
	seen := make(map[int]struct{}, len(g.UnitIDs)+len(owners))
	ids := make([]int, 0, len(g.UnitIDs)+len(owners))
	for _, list := range [][]int{g.UnitIDs, owners} {
		for _, id := range list {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	return ids
}

func (g Geometry) validateCatchment() error {
	if !(g.CatchmentArea > 0) || math.IsInf(g.CatchmentArea, 0) {
		return fmt.Errorf("%w: catchment area %g m²", ErrInvalidGeometry, g.CatchmentArea)
	}
	return nil
}

func validValue(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
