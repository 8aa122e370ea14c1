package lookup

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := FromRows([]int{1, 2},
		[][]float64{{1000000, 500000}, {612372.4356957945, 500000}, {0, 0}},
		[][]float64{{10000000, 2500000}, {3750000, 2500000}, {0, 0}},
	)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return tbl
}

func TestNewRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name       string
		ids        []int
		increments int
	}{
		{name: "no units", ids: nil, increments: 3},
		{name: "no increments", ids: []int{1}, increments: 0},
		{name: "unsorted ids", ids: []int{2, 1}, increments: 3},
		{name: "duplicate ids", ids: []int{1, 1}, increments: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.ids, tt.increments); err == nil {
				t.Errorf("expected error for ids %v increments %d", tt.ids, tt.increments)
			}
		})
	}
}

func TestIndexAndFractions(t *testing.T) {
	tbl, err := New([]int{3, 7}, 4)
	if err != nil {
		t.Fatal(err)
	}

	if tbl.Increments() != 4 {
		t.Fatalf("expected 4 increments, got %d", tbl.Increments())
	}

	idx := tbl.Index()
	fr := tbl.Fractions()
	for i := 0; i <= 4; i++ {
		if idx[i] != float64(i) {
			t.Errorf("index %d: got %g", i, idx[i])
		}
		if math.Abs(fr[i]-float64(i)/4) > 1e-12 {
			t.Errorf("fraction %d: got %g", i, fr[i])
		}
	}
	if fr[4] != 1 {
		t.Errorf("last fraction must be exactly 1, got %g", fr[4])
	}

	if tbl.Column(7) != 1 || tbl.Column(3) != 0 || tbl.Column(5) != -1 {
		t.Errorf("unexpected column lookup results")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := sampleTable(t)

	var area, volume bytes.Buffer
	if err := tbl.WriteCSV(&area, &volume); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	if !strings.HasPrefix(area.String(), "increment,1,2\n") {
		t.Errorf("unexpected area header: %q", strings.SplitN(area.String(), "\n", 2)[0])
	}

	got, err := ReadCSV(&area, &volume)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !tbl.Equal(got, 1e-6) {
		t.Errorf("round trip changed the table: %v vs %v", tbl.Areas(), got.Areas())
	}
}

func TestReadCSVMismatches(t *testing.T) {
	tests := []struct {
		name    string
		area    string
		volume  string
		wantErr error
	}{
		{
			name:    "different unit order",
			area:    "increment,1,2\n0,1,1\n1,0,0\n",
			volume:  "increment,2,1\n0,1,1\n1,0,0\n",
			wantErr: ErrUnitMismatch,
		},
		{
			name:    "different unit count",
			area:    "increment,1,2\n0,1,1\n1,0,0\n",
			volume:  "increment,1\n0,1\n1,0\n",
			wantErr: ErrUnitMismatch,
		},
		{
			name:    "different row count",
			area:    "increment,1\n0,1\n1,0.5\n2,0\n",
			volume:  "increment,1\n0,1\n1,0\n",
			wantErr: ErrShapeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.area), strings.NewReader(tt.volume))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReadCSVRejectsBadIncrements(t *testing.T) {
	_, err := ReadCSV(
		strings.NewReader("increment,1\n0,1\n2,0\n"),
		strings.NewReader("increment,1\n0,1\n2,0\n"),
	)
	if err == nil {
		t.Fatal("expected error for out-of-sequence increments")
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	tbl := sampleTable(t)

	var buf bytes.Buffer
	if err := tbl.EncodeMsgpack(&buf); err != nil {
		t.Fatalf("EncodeMsgpack: %v", err)
	}
	got, err := DecodeMsgpack(&buf)
	if err != nil {
		t.Fatalf("DecodeMsgpack: %v", err)
	}
	if !tbl.Equal(got, 0) {
		t.Errorf("msgpack round trip changed the table")
	}
}

func TestValidateRejectsNegativeCells(t *testing.T) {
	tbl := sampleTable(t)
	tbl.Volume.Set(1, 0, -1)
	if err := tbl.Validate(); err == nil {
		t.Error("expected negative volume to fail validation")
	}
}

func TestTotals(t *testing.T) {
	tbl := sampleTable(t)
	if got := tbl.TotalVolume(0); got != 12500000 {
		t.Errorf("expected total volume 12500000, got %g", got)
	}
	if got := tbl.TotalArea(2); got != 0 {
		t.Errorf("expected zero terminal area, got %g", got)
	}
}
