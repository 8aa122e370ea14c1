// Package config loads the preprocessing runs from a YAML file or a SQLite database.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chrissnell/deltah/internal/glacier"
	"github.com/chrissnell/deltah/internal/schedule"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults applied to unset run fields.
const (
	DefaultIncrements  = 100
	DefaultEngine      = string(glacier.EngineTypeElevationBand)
	DefaultWidthUpdate = string(glacier.WidthUpdatePrevious)
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetRuns() ([]RunData, error)
	GetSeasonal() ([]SeasonalData, error)
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData is the complete configuration.
type ConfigData struct {
	Runs     []RunData      `json:"runs" yaml:"runs"`
	Seasonal []SeasonalData `json:"seasonal,omitempty" yaml:"seasonal,omitempty"`
	Storage  StorageData    `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// RunData describes one lookup table computation.
type RunData struct {
	Name          string  `json:"name" yaml:"name"`
	Engine        string  `json:"engine,omitempty" yaml:"engine,omitempty"`
	Increments    int     `json:"increments,omitempty" yaml:"increments,omitempty"`
	WidthUpdate   string  `json:"width_update,omitempty" yaml:"width_update,omitempty"`
	DensityRatio  float64 `json:"density_ratio,omitempty" yaml:"density_ratio,omitempty"`
	CatchmentArea float64 `json:"catchment_area" yaml:"catchment_area"`
	PixelArea     float64 `json:"pixel_area,omitempty" yaml:"pixel_area,omitempty"`
	GeometryFile  string  `json:"geometry_file" yaml:"geometry_file"`
	OutputDir     string  `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	// Optional yearly application of the table to a land cover
	LandCover string      `json:"land_cover,omitempty" yaml:"land_cover,omitempty"`
	Month     interface{} `json:"month,omitempty" yaml:"month,omitempty"`
}

// SeasonalData is a yearly snow-to-ice conversion trigger.
type SeasonalData struct {
	LandCover string      `json:"land_cover" yaml:"land_cover"`
	Month     interface{} `json:"month" yaml:"month"`
	Day       int         `json:"day" yaml:"day"`
}

// StorageData selects where computed tables are persisted. Both may be nil.
type StorageData struct {
	SQLite   *SQLiteData   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ApplyDefaults fills unset run fields.
func (c *ConfigData) ApplyDefaults() {
	for i := range c.Runs {
		r := &c.Runs[i]
		if r.Engine == "" {
			r.Engine = DefaultEngine
		}
		if r.Increments == 0 {
			r.Increments = DefaultIncrements
		}
		if r.WidthUpdate == "" {
			r.WidthUpdate = DefaultWidthUpdate
		}
		if r.DensityRatio == 0 {
			r.DensityRatio = glacier.DefaultDensityRatio
		}
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *ConfigData) Validate() error {
	seen := make(map[string]bool, len(c.Runs))
	for i, r := range c.Runs {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("%w: run %d has no name", ErrInvalidConfig, i)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate run name %q", ErrInvalidConfig, r.Name)
		}
		seen[r.Name] = true

		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: run %s: %v", ErrInvalidConfig, r.Name, err)
		}
	}

	for i, s := range c.Seasonal {
		if _, err := schedule.NewSeasonalConversion(s.Month, s.Day, s.LandCover); err != nil {
			return fmt.Errorf("%w: seasonal entry %d: %v", ErrInvalidConfig, i, err)
		}
	}

	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("%w: sqlite storage needs a path", ErrInvalidConfig)
	}
	if c.Storage.Postgres != nil && c.Storage.Postgres.ConnectionString == "" {
		return fmt.Errorf("%w: postgres storage needs a connection string", ErrInvalidConfig)
	}
	if c.Storage.SQLite != nil && c.Storage.Postgres != nil {
		return fmt.Errorf("%w: configure at most one storage backend", ErrInvalidConfig)
	}
	return nil
}

// Validate checks a single run.
func (r RunData) Validate() error {
	engine, err := glacier.ParseEngineType(r.Engine)
	if err != nil {
		return err
	}
	if _, err := glacier.ParseWidthUpdate(r.WidthUpdate); err != nil {
		return err
	}
	if r.Increments < 1 {
		return fmt.Errorf("increments must be positive, got %d", r.Increments)
	}
	if !(r.DensityRatio > 0) {
		return fmt.Errorf("density_ratio must be positive, got %g", r.DensityRatio)
	}
	if !(r.CatchmentArea > 0) {
		return fmt.Errorf("catchment_area must be positive, got %g", r.CatchmentArea)
	}
	if engine == glacier.EngineTypePixel && !(r.PixelArea > 0) {
		return fmt.Errorf("pixel engine needs a positive pixel_area, got %g", r.PixelArea)
	}
	if r.GeometryFile == "" {
		return errors.New("geometry_file is required")
	}

	hasMonth := r.Month != nil && fmt.Sprint(r.Month) != ""
	switch {
	case hasMonth && strings.TrimSpace(r.LandCover) == "":
		return errors.New("month is set but land_cover is empty")
	case !hasMonth && r.LandCover != "":
		return errors.New("land_cover is set but month is empty")
	case hasMonth:
		if _, err := schedule.ParseMonth(r.Month); err != nil {
			return err
		}
	}
	return nil
}

// Scheduled reports whether the run's table is applied to a land cover.
func (r RunData) Scheduled() bool {
	return r.LandCover != ""
}
