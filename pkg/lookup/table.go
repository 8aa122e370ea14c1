// Package lookup holds the glacier lookup table artifact: an increment-indexed matrix of
// glaciated area (m²) and a parallel matrix of ice volume (m³), one column per spatial unit.
// Row 0 is the pristine glacier and row N the fully melted one.
package lookup

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch is returned when the area and volume matrices differ in row or column count.
	ErrShapeMismatch = errors.New("lookup: area and volume tables differ in shape")
	// ErrUnitMismatch is returned when the two tables do not list the same unit ids in the same order.
	ErrUnitMismatch = errors.New("lookup: area and volume tables differ in spatial unit ids")
	// ErrEmpty is returned for tables without units or without increments.
	ErrEmpty = errors.New("lookup: table needs at least one spatial unit and one increment")
)

// Table is the lookup table artifact shared by both evolution engines.
type Table struct {
	UnitIDs []int
	Area    *mat.Dense
	Volume  *mat.Dense
}

// New allocates a zero-filled table with increments+1 rows and one column per unit.
// unitIDs must be unique and ascending.
func New(unitIDs []int, increments int) (*Table, error) {
	if len(unitIDs) == 0 || increments < 1 {
		return nil, ErrEmpty
	}
	if err := checkUnitIDs(unitIDs); err != nil {
		return nil, err
	}

	ids := append([]int(nil), unitIDs...)
	return &Table{
		UnitIDs: ids,
		Area:    mat.NewDense(increments+1, len(ids), nil),
		Volume:  mat.NewDense(increments+1, len(ids), nil),
	}, nil
}

// FromRows builds a table from row-major area and volume slices.
func FromRows(unitIDs []int, areas, volumes [][]float64) (*Table, error) {
	if len(areas) != len(volumes) {
		return nil, fmt.Errorf("%w: %d area rows, %d volume rows", ErrShapeMismatch, len(areas), len(volumes))
	}
	t, err := New(unitIDs, len(areas)-1)
	if err != nil {
		return nil, err
	}

	for i := range areas {
		if len(areas[i]) != len(unitIDs) || len(volumes[i]) != len(unitIDs) {
			return nil, fmt.Errorf("%w: row %d has %d area and %d volume cells for %d units",
				ErrShapeMismatch, i, len(areas[i]), len(volumes[i]), len(unitIDs))
		}
		t.Area.SetRow(i, areas[i])
		t.Volume.SetRow(i, volumes[i])
	}
	return t, nil
}

// Increments returns N, the number of melt increments (rows minus one).
func (t *Table) Increments() int {
	r, _ := t.Area.Dims()
	return r - 1
}

// Index returns the increment numbers 0..N as floats, the index column of the persisted form.
func (t *Table) Index() []float64 {
	idx := make([]float64, t.Increments()+1)
	floats.Span(idx, 0, float64(t.Increments()))
	return idx
}

// Fractions returns the cumulative melted mass fraction of each row (0, 1/N, ..., 1).
func (t *Table) Fractions() []float64 {
	f := make([]float64, t.Increments()+1)
	floats.Span(f, 0, 1)
	return f
}

// Column returns the matrix column for a unit id, or -1 if the unit is not in the table.
func (t *Table) Column(unitID int) int {
	i := sort.SearchInts(t.UnitIDs, unitID)
	if i < len(t.UnitIDs) && t.UnitIDs[i] == unitID {
		return i
	}
	return -1
}

// AreaRow returns a copy of the areas (m²) at increment i.
func (t *Table) AreaRow(i int) []float64 {
	return mat.Row(nil, i, t.Area)
}

// VolumeRow returns a copy of the volumes (m³) at increment i.
func (t *Table) VolumeRow(i int) []float64 {
	return mat.Row(nil, i, t.Volume)
}

// TotalArea sums the area of every unit at increment i.
func (t *Table) TotalArea(i int) float64 {
	return floats.Sum(t.AreaRow(i))
}

// TotalVolume sums the volume of every unit at increment i.
func (t *Table) TotalVolume(i int) float64 {
	return floats.Sum(t.VolumeRow(i))
}

// Areas returns the area matrix as row-major slices.
func (t *Table) Areas() [][]float64 {
	return rows(t.Area)
}

// Volumes returns the volume matrix as row-major slices.
func (t *Table) Volumes() [][]float64 {
	return rows(t.Volume)
}

// Validate checks the structural invariants of a table.
func (t *Table) Validate() error {
	if t == nil || t.Area == nil || t.Volume == nil || len(t.UnitIDs) == 0 {
		return ErrEmpty
	}
	if err := checkUnitIDs(t.UnitIDs); err != nil {
		return err
	}

	ar, ac := t.Area.Dims()
	vr, vc := t.Volume.Dims()
	if ar != vr || ac != vc {
		return fmt.Errorf("%w: area %dx%d, volume %dx%d", ErrShapeMismatch, ar, ac, vr, vc)
	}
	if ac != len(t.UnitIDs) {
		return fmt.Errorf("%w: %d columns for %d unit ids", ErrShapeMismatch, ac, len(t.UnitIDs))
	}
	if ar < 2 {
		return ErrEmpty
	}

	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			a, v := t.Area.At(i, j), t.Volume.At(i, j)
			if math.IsNaN(a) || math.IsNaN(v) || a < 0 || v < 0 {
				return fmt.Errorf("lookup: invalid cell at increment %d unit %d (area %g, volume %g)",
					i, t.UnitIDs[j], a, v)
			}
		}
	}
	return nil
}

// Equal reports whether two tables have the same unit ordering and matrices within tol.
func (t *Table) Equal(o *Table, tol float64) bool {
	if len(t.UnitIDs) != len(o.UnitIDs) {
		return false
	}
	for i := range t.UnitIDs {
		if t.UnitIDs[i] != o.UnitIDs[i] {
			return false
		}
	}
	return mat.EqualApprox(t.Area, o.Area, tol) && mat.EqualApprox(t.Volume, o.Volume, tol)
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

func checkUnitIDs(ids []int) error {
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			return fmt.Errorf("lookup: spatial unit ids must be unique and ascending, got %d after %d", ids[i], ids[i-1])
		}
	}
	return nil
}
