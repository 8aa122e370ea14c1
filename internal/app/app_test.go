package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chrissnell/deltah/internal/storage"
	"github.com/chrissnell/deltah/internal/storage/sqlite"
	"github.com/chrissnell/deltah/pkg/config"
	"github.com/chrissnell/deltah/pkg/lookup"
)

type recordingBinder struct {
	tables      []string
	conversions []string
}

func (r *recordingBinder) AddLookupTable(month int, landCover string, unitIDs []int, increments []float64, areas, volumes [][]float64) error {
	r.tables = append(r.tables, landCover)
	return nil
}

func (r *recordingBinder) AddSeasonalConversion(month, day int, landCover string) error {
	r.conversions = append(r.conversions, landCover)
	return nil
}

type failingBinder struct{}

func (failingBinder) AddLookupTable(int, string, []int, []float64, [][]float64, [][]float64) error {
	return errors.New("engine unavailable")
}

func (failingBinder) AddSeasonalConversion(int, int, string) error {
	return errors.New("engine unavailable")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setup(t *testing.T) (string, *config.YAMLProvider) {
	t.Helper()
	dir := t.TempDir()

	bands := writeFile(t, dir, "bands.csv", "elevation,area,thickness,unit\n2000,1000000,10,1\n1500,500000,5,2\n")
	pixels := writeFile(t, dir, "pixels.csv", "unit,thickness\n1,10\n1,20\n2,5\n")

	cfg := `
runs:
  - name: valley
    catchment_area: 3000000
    geometry_file: ` + bands + `
    output_dir: ` + filepath.Join(dir, "out") + `
    land_cover: glacier
    month: 10
  - name: raster
    engine: pixel
    increments: 10
    catchment_area: 3000000
    pixel_area: 100
    geometry_file: ` + pixels + `
seasonal:
  - land_cover: glacier
    month: 9
    day: 30
storage:
  sqlite:
    path: ` + filepath.Join(dir, "tables.db") + `
`
	return dir, config.NewYAMLProvider(writeFile(t, dir, "deltah.yaml", cfg))
}

func TestRun(t *testing.T) {
	dir, provider := setup(t)

	a := New(provider, zap.NewNop().Sugar())
	binder := &recordingBinder{}
	a.SetBinder(binder)

	results, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	valley := results[0]
	assert.Equal(t, "valley", valley.Run.Name)
	assert.Equal(t, 100, valley.Table.Increments())
	assert.InDelta(t, 1e7, valley.Table.Volume.At(0, 0), 1e-6)
	assert.InDelta(t, 2.5e6, valley.Table.Volume.At(0, 1), 1e-6)
	assert.Zero(t, valley.Table.TotalVolume(100))
	assert.NotEmpty(t, valley.RunID)
	require.Len(t, valley.Files, 3)

	raster := results[1]
	assert.Equal(t, 10, raster.Table.Increments())
	assert.Empty(t, raster.Files)
	assert.InDelta(t, 100*(10+20)+100*5, raster.Table.TotalVolume(0), 1e-6)

	assert.Equal(t, []string{"glacier"}, binder.tables)
	assert.Equal(t, []string{"glacier"}, binder.conversions)

	// The written CSV pair reloads to the same table
	area, err := os.Open(valley.Files[0])
	require.NoError(t, err)
	defer area.Close()
	volume, err := os.Open(valley.Files[1])
	require.NoError(t, err)
	defer volume.Close()
	reloaded, err := lookup.ReadCSV(area, volume)
	require.NoError(t, err)
	assert.True(t, reloaded.Equal(valley.Table, 1e-6))

	pack, err := os.Open(valley.Files[2])
	require.NoError(t, err)
	defer pack.Close()
	decoded, err := lookup.DecodeMsgpack(pack)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(valley.Table, 0))

	// Both tables are in the store
	store, err := sqlite.Open(filepath.Join(dir, "tables.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.LoadTable(context.Background(), "raster")
	require.NoError(t, err)
	assert.True(t, stored.Equal(raster.Table, 0))
}

func TestRunFailsWithoutPartialOutput(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	good := writeFile(t, dir, "good.csv", "elevation,area,thickness,unit\n2000,1000000,10,1\n1500,500000,5,2\n")
	empty := writeFile(t, dir, "bare.csv", "elevation,area,thickness,unit\n2000,0,10,1\n")
	cfgPath := writeFile(t, dir, "deltah.yaml", `
runs:
  - name: good
    catchment_area: 3000000
    geometry_file: `+good+`
    output_dir: `+out+`
  - name: bare
    catchment_area: 1000
    geometry_file: `+empty+`
    output_dir: `+out+`
storage:
  sqlite:
    path: `+filepath.Join(dir, "tables.db")+`
`)

	a := New(config.NewYAMLProvider(cfgPath), zap.NewNop().Sugar())
	results, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, strings.Contains(err.Error(), "bare"))

	entries, err := os.ReadDir(out)
	if !os.IsNotExist(err) {
		require.NoError(t, err)
		assert.Empty(t, entries, "a failed batch left files behind")
	}

	store, err := sqlite.Open(filepath.Join(dir, "tables.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()
	_, err = store.LoadTable(context.Background(), "good")
	assert.ErrorIs(t, err, storage.ErrTableNotFound)
}

func TestRunRemovesOutputWhenBindingFails(t *testing.T) {
	dir, provider := setup(t)

	a := New(provider, zap.NewNop().Sugar())
	a.SetBinder(failingBinder{})

	results, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, results)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunLogsTimeline(t *testing.T) {
	_, provider := setup(t)

	core, logs := observer.New(zap.InfoLevel)
	a := New(provider, zap.New(core).Sugar())
	a.SetBinder(&recordingBinder{})
	a.SetYear(2024)

	_, err := a.Run(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("scheduled change").All()
	require.Len(t, entries, 2)

	first, second := entries[0].ContextMap(), entries[1].ContextMap()
	assert.Equal(t, "seasonal_conversion", first["kind"])
	assert.EqualValues(t, 274, first["day_of_year"])
	assert.Equal(t, "lookup_table", second["kind"])
	assert.EqualValues(t, 275, second["day_of_year"])
}
