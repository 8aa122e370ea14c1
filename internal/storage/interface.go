// Package storage persists computed glacier lookup tables so that simulation setups can
// reload them by name without recomputing.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/chrissnell/deltah/pkg/lookup"
)

// ErrTableNotFound is returned when no table has been saved under a name.
var ErrTableNotFound = errors.New("storage: lookup table not found")

// TableStore is implemented by every lookup table backend. SaveTable and SaveTables are
// atomic: either every table is stored or none is. Saving under an existing name adds a new
// run; LoadTable returns the most recent one.
type TableStore interface {
	SaveTable(ctx context.Context, name string, t *lookup.Table) (runID string, err error)
	SaveTables(ctx context.Context, tables []NamedTable) (runIDs []string, err error)
	LoadTable(ctx context.Context, name string) (*lookup.Table, error)
	Close() error
}

// NamedTable is one entry of a SaveTables batch.
type NamedTable struct {
	Name  string
	Table *lookup.Table
}

// ValidateAll checks every table of a batch before anything is written.
func ValidateAll(tables []NamedTable) error {
	for _, nt := range tables {
		if err := nt.Table.Validate(); err != nil {
			return fmt.Errorf("refusing to store invalid table %s: %w", nt.Name, err)
		}
	}
	return nil
}

// Cell is one (increment, unit) entry of a stored table.
type Cell struct {
	Increment int
	UnitID    int
	Area      float64
	Volume    float64
}

// Cells flattens a table row by row.
func Cells(t *lookup.Table) []Cell {
	rows, cols := t.Area.Dims()
	out := make([]Cell, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j, id := range t.UnitIDs {
			out = append(out, Cell{
				Increment: i,
				UnitID:    id,
				Area:      t.Area.At(i, j),
				Volume:    t.Volume.At(i, j),
			})
		}
	}
	return out
}

// Assemble rebuilds a table from stored cells. Every (increment, unit) pair for
// increments 0..increments must be present exactly once.
func Assemble(increments int, cells []Cell) (*lookup.Table, error) {
	seen := make(map[int]bool)
	var ids []int
	for _, c := range cells {
		if !seen[c.UnitID] {
			seen[c.UnitID] = true
			ids = append(ids, c.UnitID)
		}
	}
	sort.Ints(ids)

	t, err := lookup.New(ids, increments)
	if err != nil {
		return nil, err
	}
	if len(cells) != (increments+1)*len(ids) {
		return nil, lookup.ErrShapeMismatch
	}
	filled := make(map[[2]int]bool, len(cells))
	for _, c := range cells {
		j := t.Column(c.UnitID)
		if c.Increment < 0 || c.Increment > increments || filled[[2]int{c.Increment, j}] {
			return nil, lookup.ErrShapeMismatch
		}
		filled[[2]int{c.Increment, j}] = true
		t.Area.Set(c.Increment, j, c.Area)
		t.Volume.Set(c.Increment, j, c.Volume)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
