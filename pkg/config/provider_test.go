package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

const sampleYAML = `
runs:
  - name: valley
    catchment_area: 2000000
    geometry_file: valley_bands.csv
    land_cover: glacier
    month: october
    output_dir: out
  - name: raster
    engine: pixel
    increments: 50
    width_update: off
    density_ratio: 0.85
    catchment_area: 100000
    pixel_area: 100
    geometry_file: raster_pixels.csv
seasonal:
  - land_cover: glacier
    month: 9
    day: 30
storage:
  sqlite:
    path: tables.db
`

func TestParseYAMLAppliesDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if len(cfg.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(cfg.Runs))
	}

	valley := cfg.Runs[0]
	if valley.Engine != DefaultEngine || valley.Increments != DefaultIncrements ||
		valley.WidthUpdate != DefaultWidthUpdate || valley.DensityRatio != 0.9 {
		t.Errorf("defaults not applied: %+v", valley)
	}
	if !valley.Scheduled() {
		t.Error("valley should be scheduled")
	}

	raster := cfg.Runs[1]
	if raster.Engine != "pixel" || raster.Increments != 50 || raster.WidthUpdate != "off" || raster.DensityRatio != 0.85 {
		t.Errorf("explicit values overwritten: %+v", raster)
	}
	if raster.Scheduled() {
		t.Error("raster should not be scheduled")
	}

	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path != "tables.db" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if len(cfg.Seasonal) != 1 || cfg.Seasonal[0].Day != 30 {
		t.Errorf("unexpected seasonal %+v", cfg.Seasonal)
	}
}

func TestValidate(t *testing.T) {
	base := func() RunData {
		return RunData{Name: "r", CatchmentArea: 1e6, GeometryFile: "g.csv"}
	}

	tests := []struct {
		name   string
		mutate func(c *ConfigData)
	}{
		{name: "unknown engine", mutate: func(c *ConfigData) { c.Runs[0].Engine = "flowline" }},
		{name: "unknown width mode", mutate: func(c *ConfigData) { c.Runs[0].WidthUpdate = "sideways" }},
		{name: "negative increments", mutate: func(c *ConfigData) { c.Runs[0].Increments = -3 }},
		{name: "negative density", mutate: func(c *ConfigData) { c.Runs[0].DensityRatio = -1 }},
		{name: "no catchment", mutate: func(c *ConfigData) { c.Runs[0].CatchmentArea = 0 }},
		{name: "pixel without pixel area", mutate: func(c *ConfigData) { c.Runs[0].Engine = "pixel" }},
		{name: "no geometry", mutate: func(c *ConfigData) { c.Runs[0].GeometryFile = "" }},
		{name: "month without land cover", mutate: func(c *ConfigData) { c.Runs[0].Month = 10 }},
		{name: "land cover without month", mutate: func(c *ConfigData) { c.Runs[0].LandCover = "glacier" }},
		{name: "bad month", mutate: func(c *ConfigData) { c.Runs[0].LandCover = "glacier"; c.Runs[0].Month = "smarch" }},
		{name: "unnamed run", mutate: func(c *ConfigData) { c.Runs[0].Name = "" }},
		{name: "duplicate run", mutate: func(c *ConfigData) { c.Runs = append(c.Runs, c.Runs[0]) }},
		{name: "bad seasonal day", mutate: func(c *ConfigData) {
			c.Seasonal = []SeasonalData{{LandCover: "glacier", Month: 9, Day: 31}}
		}},
		{name: "two stores", mutate: func(c *ConfigData) {
			c.Storage = StorageData{SQLite: &SQLiteData{Path: "a.db"}, Postgres: &PostgresData{ConnectionString: "x"}}
		}},
		{name: "sqlite without path", mutate: func(c *ConfigData) { c.Storage.SQLite = &SQLiteData{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &ConfigData{Runs: []RunData{base()}}
			tt.mutate(c)
			c.ApplyDefaults()
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	ok := &ConfigData{Runs: []RunData{base()}}
	ok.ApplyDefaults()
	if err := ok.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deltah.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	defer p.Close()

	runs, err := p.GetRuns()
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig(); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	src, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer p.Close()

	if err := p.SaveConfig(src); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(got.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got.Runs))
	}

	// Runs come back ordered by name
	raster, valley := got.Runs[0], got.Runs[1]
	if diff := cmp.Diff(src.Runs[1], raster); diff != "" {
		t.Errorf("raster run mismatch (-want +got):\n%s", diff)
	}
	if valley.Name != "valley" || valley.Month != "october" || valley.OutputDir != "out" {
		t.Errorf("unexpected valley run %+v", valley)
	}
	if len(got.Seasonal) != 1 || got.Seasonal[0].Month != "9" || got.Seasonal[0].Day != 30 {
		t.Errorf("unexpected seasonal %+v", got.Seasonal)
	}
	if diff := cmp.Diff(src.Storage, got.Storage); diff != "" {
		t.Errorf("storage mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces the previous configuration
	src.Runs = src.Runs[:1]
	if err := p.SaveConfig(src); err != nil {
		t.Fatal(err)
	}
	runs, err := p.GetRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run after replacing, got %d", len(runs))
	}
}
