package glacier

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/deltah/pkg/lookup"
)

// PixelEngine evolves ice at raster resolution. Each spatial unit loses an equal share of its
// own initial mass per increment as a uniform depth over its ice-covered pixels. Pixels that
// run dry hand their deficit to the remaining pixels of the same unit within the same
// increment, so nothing is carried across units or forward in time.
type PixelEngine struct {
	geom   Geometry
	opts   Options
	logger *zap.SugaredLogger
}

// NewPixelEngine creates a pixel-resolution engine for the given geometry.
func NewPixelEngine(geom Geometry, opts Options, logger *zap.SugaredLogger) *PixelEngine {
	return &PixelEngine{
		geom:   geom,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Name identifies the engine in logs.
func (e *PixelEngine) Name() string {
	return string(EngineTypePixel)
}

// ComputeLookupTable runs the evolution and converts the per-unit history into a lookup table.
func (e *PixelEngine) ComputeLookupTable(increments int) (*lookup.Table, error) {
	st, err := e.Evolve(increments)
	if err != nil {
		return nil, err
	}
	return st.Aggregate(st.Owners, e.opts.DensityRatio)
}

// Evolve returns the per-unit mean thickness and area history. Every unit in the table gets
// one element, including units that hold no ice.
func (e *PixelEngine) Evolve(increments int) (*EvolutionState, error) {
	if increments < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIncrements, increments)
	}
	if err := e.geom.validateCatchment(); err != nil {
		return nil, err
	}
	if !validValue(e.geom.PixelArea) || e.geom.PixelArea == 0 {
		return nil, fmt.Errorf("%w: pixel area %g m²", ErrInvalidGeometry, e.geom.PixelArea)
	}

	owners := make([]int, 0, len(e.geom.Pixels))
	for _, g := range e.geom.Pixels {
		owners = append(owners, g.UnitID)
	}
	units := e.geom.unitIDs(owners)

	arena, err := newPixelArena(units, e.geom.Pixels)
	if err != nil {
		return nil, err
	}
	if arena.totalLive() == 0 {
		return nil, fmt.Errorf("%w: no pixel holds ice", ErrNoGlaciatedArea)
	}

	st := newEvolutionState(units, increments, e.geom.CatchmentArea)
	// Per-increment removal of each unit, as a pixel-summed depth (mm).
	removal := make([]float64, len(units))
	for u := range units {
		removal[u] = arena.sum(u) / float64(increments)
	}
	arena.record(st, 0, e.geom.PixelArea)

	e.logger.Debugf("%s: %d units, %d ice pixels covering %.2f%% of the catchment, initial mass %.1f mm over the catchment",
		e.Name(), len(units), arena.totalLive(), 100*floats.Sum(st.AreaFraction(0)), st.Mass(0))

	lost := 0.0
	for k := 1; k < increments; k++ {
		for u := range units {
			lost += arena.melt(u, removal[u])
		}
		arena.record(st, k, e.geom.PixelArea)
		st.Deficit[k] = lost * e.geom.PixelArea
	}

	return st, nil
}

// pixelArena stores every unit's pixels in one flat buffer. Unit u owns
// buf[start[u]:start[u+1]]; only the first live[u] entries of that range hold ice.
type pixelArena struct {
	buf   []float64
	start []int
	live  []int
}

func newPixelArena(units []int, groups []PixelGroup) (*pixelArena, error) {
	index := make(map[int]int, len(units))
	for u, id := range units {
		index[id] = u
	}

	capacity := make([]int, len(units))
	for _, g := range groups {
		for i, v := range g.WaterEquivalent {
			if !validValue(v) {
				return nil, fmt.Errorf("%w: pixel %d of unit %d has water equivalent %g",
					ErrInvalidGeometry, i, g.UnitID, v)
			}
			if v > 0 {
				capacity[index[g.UnitID]]++
			}
		}
	}

	a := &pixelArena{
		start: make([]int, len(units)+1),
		live:  make([]int, len(units)),
	}
	for u, c := range capacity {
		a.start[u+1] = a.start[u] + c
	}
	a.buf = make([]float64, a.start[len(units)])

	for _, g := range groups {
		u := index[g.UnitID]
		for _, v := range g.WaterEquivalent {
			if v > 0 {
				a.buf[a.start[u]+a.live[u]] = v
				a.live[u]++
			}
		}
	}
	return a, nil
}

func (a *pixelArena) pixels(u int) []float64 {
	return a.buf[a.start[u] : a.start[u]+a.live[u]]
}

func (a *pixelArena) sum(u int) float64 {
	return floats.Sum(a.pixels(u))
}

func (a *pixelArena) totalLive() int {
	n := 0
	for _, l := range a.live {
		n += l
	}
	return n
}

// melt removes a pixel-summed depth from unit u, spreading it uniformly over the live pixels
// and re-spreading the overshoot of pixels that run dry. It returns the depth that could not
// be removed because the unit ran out of ice.
func (a *pixelArena) melt(u int, depth float64) float64 {
	remaining := depth
	for remaining > 0 && a.live[u] > 0 {
		px := a.pixels(u)
		floats.AddConst(-remaining/float64(len(px)), px)
		remaining = a.compact(u)
	}
	return remaining
}

// compact moves dry pixels of unit u past its live count and returns their total overshoot.
func (a *pixelArena) compact(u int) float64 {
	px := a.pixels(u)
	overshoot := 0.0
	n := len(px)
	for i := 0; i < n; {
		if px[i] > 0 {
			i++
			continue
		}
		overshoot -= px[i]
		n--
		px[i], px[n] = px[n], 0
	}
	a.live[u] = n
	return overshoot
}

// record writes the area and mean thickness of every unit into row k of the state.
func (a *pixelArena) record(st *EvolutionState, k int, pixelArea float64) {
	for u := range a.live {
		if a.live[u] == 0 {
			st.Area[k][u] = 0
			st.Thickness[k][u] = 0
			continue
		}
		st.Area[k][u] = float64(a.live[u]) * pixelArea
		st.Thickness[k][u] = a.sum(u) / float64(a.live[u])
	}
}
