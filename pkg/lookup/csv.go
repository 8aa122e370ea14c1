package lookup

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

const indexHeader = "increment"

// WriteCSV writes the area and volume matrices as two parallel CSV tables. Each starts with an
// "increment" column (0..N) followed by one column per spatial unit id.
func (t *Table) WriteCSV(areaW, volumeW io.Writer) error {
	if err := writeMatrix(areaW, t.UnitIDs, t.Area); err != nil {
		return fmt.Errorf("failed to write area table: %w", err)
	}
	if err := writeMatrix(volumeW, t.UnitIDs, t.Volume); err != nil {
		return fmt.Errorf("failed to write volume table: %w", err)
	}
	return nil
}

// ReadCSV reconstructs a table from its persisted CSV pair. The two tables must carry identical
// unit id ordering and the same increment rows; any mismatch is an error.
func ReadCSV(areaR, volumeR io.Reader) (*Table, error) {
	areaIDs, areas, err := readMatrix(areaR)
	if err != nil {
		return nil, fmt.Errorf("failed to read area table: %w", err)
	}
	volumeIDs, volumes, err := readMatrix(volumeR)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume table: %w", err)
	}

	if len(areaIDs) != len(volumeIDs) {
		return nil, fmt.Errorf("%w: %d area columns, %d volume columns", ErrUnitMismatch, len(areaIDs), len(volumeIDs))
	}
	for i := range areaIDs {
		if areaIDs[i] != volumeIDs[i] {
			return nil, fmt.Errorf("%w: column %d is unit %d in area table, unit %d in volume table",
				ErrUnitMismatch, i+1, areaIDs[i], volumeIDs[i])
		}
	}
	if len(areas) != len(volumes) {
		return nil, fmt.Errorf("%w: %d area rows, %d volume rows", ErrShapeMismatch, len(areas), len(volumes))
	}

	t, err := FromRows(areaIDs, areas, volumes)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func writeMatrix(w io.Writer, ids []int, m *mat.Dense) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(ids)+1)
	header = append(header, indexHeader)
	for _, id := range ids {
		header = append(header, strconv.Itoa(id))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	r, c := m.Dims()
	record := make([]string, c+1)
	for i := 0; i < r; i++ {
		record[0] = strconv.Itoa(i)
		for j := 0; j < c; j++ {
			record[j+1] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func readMatrix(r io.Reader) ([]int, [][]float64, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("missing header: %w", err)
	}
	if len(header) < 2 {
		return nil, nil, fmt.Errorf("header needs an increment column and at least one unit column")
	}

	ids := make([]int, len(header)-1)
	for i, h := range header[1:] {
		id, err := strconv.Atoi(h)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid spatial unit id %q: %w", h, err)
		}
		ids[i] = id
	}

	var values [][]float64
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		inc, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid increment %q: %w", record[0], err)
		}
		if inc != len(values) {
			return nil, nil, fmt.Errorf("increment %d out of sequence, expected %d", inc, len(values))
		}

		row := make([]float64, len(ids))
		for j, cell := range record[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid value %q at increment %d unit %d: %w", cell, inc, ids[j], err)
			}
			row[j] = v
		}
		values = append(values, row)
	}

	return ids, values, nil
}
