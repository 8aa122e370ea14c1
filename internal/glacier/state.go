package glacier

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/deltah/pkg/lookup"
)

// EvolutionState is the full per-increment history of an evolution run. Each column is one
// element (an elevation band or a spatial unit, depending on the engine) owned by Owners[i].
// Row 0 is the input geometry and row Increments is all zeros.
type EvolutionState struct {
	Owners    []int
	Thickness [][]float64 // mm water equivalent
	Area      [][]float64 // m²
	// Deficit is the scheduled melt (m²·mm) still not removed at the end of each increment
	// because elements ran out of ice. Mass(k) - DeficitMM(k) follows the schedule exactly.
	Deficit []float64

	catchmentArea float64
}

func newEvolutionState(owners []int, increments int, catchmentArea float64) *EvolutionState {
	n := len(owners)
	st := &EvolutionState{
		Owners:        owners,
		Thickness:     make([][]float64, increments+1),
		Area:          make([][]float64, increments+1),
		Deficit:       make([]float64, increments+1),
		catchmentArea: catchmentArea,
	}

	// One backing array per quantity keeps rows contiguous.
	th := make([]float64, n*(increments+1))
	ar := make([]float64, n*(increments+1))
	for k := 0; k <= increments; k++ {
		st.Thickness[k] = th[k*n : (k+1)*n : (k+1)*n]
		st.Area[k] = ar[k*n : (k+1)*n : (k+1)*n]
	}
	return st
}

// Increments returns the number of melt increments.
func (s *EvolutionState) Increments() int {
	return len(s.Thickness) - 1
}

// Mass returns the ice mass remaining at increment k as a catchment-mean water equivalent (mm).
func (s *EvolutionState) Mass(k int) float64 {
	return floats.Dot(s.Area[k], s.Thickness[k]) / s.catchmentArea
}

// DeficitMM returns the outstanding melt deficit at increment k in catchment-mean mm.
func (s *EvolutionState) DeficitMM(k int) float64 {
	return s.Deficit[k] / s.catchmentArea
}

// AreaFraction returns the area of every element at increment k as a fraction of the catchment.
func (s *EvolutionState) AreaFraction(k int) []float64 {
	f := make([]float64, len(s.Area[k]))
	floats.ScaleTo(f, 1/s.catchmentArea, s.Area[k])
	return f
}

// Aggregate sums the elements into their spatial units and returns the lookup table.
// Area is the sum of element areas and volume the sum of thickness×area/(1000×densityRatio).
func (s *EvolutionState) Aggregate(unitIDs []int, densityRatio float64) (*lookup.Table, error) {
	t, err := lookup.New(unitIDs, s.Increments())
	if err != nil {
		return nil, err
	}

	cols := make([]int, len(s.Owners))
	for i, owner := range s.Owners {
		cols[i] = t.Column(owner)
		if cols[i] < 0 {
			return nil, fmt.Errorf("glacier: element %d belongs to unit %d which is not in the table", i, owner)
		}
	}

	_, nUnits := t.Area.Dims()
	area := make([]float64, nUnits)
	volume := make([]float64, nUnits)
	for k := 0; k <= s.Increments(); k++ {
		for j := range area {
			area[j], volume[j] = 0, 0
		}
		for i, col := range cols {
			a := s.Area[k][i]
			area[col] += a
			volume[col] += Volume(s.Thickness[k][i], a, densityRatio)
		}
		t.Area.SetRow(k, area)
		t.Volume.SetRow(k, volume)
	}
	return t, nil
}
