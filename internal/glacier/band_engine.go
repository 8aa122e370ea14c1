package glacier

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/deltah/pkg/lookup"
)

// BandEngine implements the delta-h method on elevation bands. Every increment removes an
// equal share of the initial mass, distributed over the bands with the size-class shape
// function; melt that exhausted bands could not supply is carried into the next increment.
type BandEngine struct {
	geom   Geometry
	opts   Options
	logger *zap.SugaredLogger
}

// NewBandEngine creates an elevation-band engine for the given geometry.
func NewBandEngine(geom Geometry, opts Options, logger *zap.SugaredLogger) *BandEngine {
	return &BandEngine{
		geom:   geom,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Name identifies the engine in logs.
func (e *BandEngine) Name() string {
	return string(EngineTypeElevationBand)
}

// ComputeLookupTable runs the evolution and aggregates the bands into their spatial units.
func (e *BandEngine) ComputeLookupTable(increments int) (*lookup.Table, error) {
	st, err := e.Evolve(increments)
	if err != nil {
		return nil, err
	}

	owners := make([]int, 0, len(e.geom.Bands))
	for _, b := range e.geom.Bands {
		owners = append(owners, b.UnitID)
	}
	return st.Aggregate(e.geom.unitIDs(owners), e.opts.DensityRatio)
}

// Evolve returns the per-band thickness and area history.
func (e *BandEngine) Evolve(increments int) (*EvolutionState, error) {
	if increments < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIncrements, increments)
	}
	if err := e.geom.validateCatchment(); err != nil {
		return nil, err
	}

	bands, err := e.glaciatedBands()
	if err != nil {
		return nil, err
	}

	totalArea := 0.0
	owners := make([]int, len(bands))
	for i, b := range bands {
		totalArea += b.Area
		owners[i] = b.UnitID
	}

	param, err := SelectParametrization(totalArea / 1e6)
	if err != nil {
		return nil, err
	}

	shape := bandShapes(bands, param)

	st := newEvolutionState(owners, increments, e.geom.CatchmentArea)
	for i, b := range bands {
		st.Thickness[0][i] = b.WaterEquivalent
		st.Area[0][i] = b.Area
	}

	initialMass := floats.Dot(st.Area[0], st.Thickness[0])
	step := initialMass / float64(increments)

	e.logger.Debugf("%s: %d bands, %.3f km² (%.2f%% of the catchment), %s glacier, initial mass %.1f mm over the catchment",
		e.Name(), len(bands), totalArea/1e6, 100*floats.Sum(st.AreaFraction(0)), param.Class(), initialMass/e.geom.CatchmentArea)

	deficit := 0.0
	for k := 1; k < increments; k++ {
		deficit = e.removeMass(st, k, shape, step+deficit)
		st.Deficit[k] = deficit

		switch e.opts.WidthUpdate {
		case WidthUpdateOff:
			copy(st.Area[k], st.Area[0])
		case WidthUpdateInitial:
			rescaleWidth(st, k, 0, st.Area[k-1])
		default:
			rescaleWidth(st, k, k-1, st.Area[k-1])
		}
	}

	if e.opts.WidthUpdate == WidthUpdateOff {
		for k := 1; k < increments; k++ {
			rescaleWidth(st, k, 0, st.Area[0])
		}
	}

	if deficit > 0 {
		e.logger.Debugf("%s: %.3f mm of melt still outstanding before the terminal increment",
			e.Name(), deficit/e.geom.CatchmentArea)
	}

	return st, nil
}

// removeMass applies the shape-weighted removal of increment k and returns the melt that
// could not be taken from exhausted bands.
func (e *BandEngine) removeMass(st *EvolutionState, k int, shape []float64, required float64) float64 {
	prevTh, prevArea := st.Thickness[k-1], st.Area[k-1]
	th := st.Thickness[k]

	weight := floats.Dot(prevArea, shape)
	if weight <= 0 {
		// Nothing left that the shape function would melt; hold the geometry.
		copy(th, prevTh)
		return required
	}

	fs := required / weight
	deficit := 0.0
	for i := range th {
		if prevTh[i] <= 0 {
			// Exhausted bands never re-accumulate.
			th[i] = 0
			deficit += prevArea[i] * fs * shape[i]
			continue
		}

		v := prevTh[i] - fs*shape[i]
		if v < 0 {
			deficit -= v * prevArea[i]
			v = 0
		}
		th[i] = v
	}
	return deficit
}

// rescaleWidth updates the areas of increment k from reference row ref with the square-root
// width law, then corrects thickness so that each band keeps the mass it had on the area
// it covered before the change.
func rescaleWidth(st *EvolutionState, k, ref int, before []float64) {
	th, area := st.Thickness[k], st.Area[k]
	refTh, refArea := st.Thickness[ref], st.Area[ref]

	for i := range area {
		if th[i] <= 0 || refTh[i] <= 0 {
			area[i] = 0
			th[i] = 0
			continue
		}
		area[i] = refArea[i] * math.Sqrt(th[i]/refTh[i])
		th[i] *= before[i] / area[i]
	}
}

// glaciatedBands drops bands without ice area and validates the rest.
func (e *BandEngine) glaciatedBands() ([]ElevationBand, error) {
	bands := make([]ElevationBand, 0, len(e.geom.Bands))
	for i, b := range e.geom.Bands {
		if !validValue(b.Area) || !validValue(b.WaterEquivalent) || math.IsNaN(b.Elevation) {
			return nil, fmt.Errorf("%w: band %d (unit %d) has area %g, water equivalent %g, elevation %g",
				ErrInvalidGeometry, i, b.UnitID, b.Area, b.WaterEquivalent, b.Elevation)
		}
		if b.Area == 0 {
			continue
		}
		bands = append(bands, b)
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: every elevation band has zero area", ErrNoGlaciatedArea)
	}
	return bands, nil
}

// bandShapes normalizes band elevations (0 = highest band, 1 = lowest) and evaluates the
// shape function once. A glacier with a single elevation is treated as all tongue.
func bandShapes(bands []ElevationBand, p Parametrization) []float64 {
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, b := range bands {
		hi = math.Max(hi, b.Elevation)
		lo = math.Min(lo, b.Elevation)
	}

	shape := make([]float64, len(bands))
	for i, b := range bands {
		norm := 1.0
		if hi > lo {
			norm = (hi - b.Elevation) / (hi - lo)
		}
		shape[i] = p.Shape(norm)
	}
	return shape
}
