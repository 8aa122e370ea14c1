package glacier

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/deltah/pkg/lookup"
)

// Engine computes a glacier lookup table. Implementations differ in how they redistribute
// mass loss but all return the same artifact.
type Engine interface {
	// ComputeLookupTable returns a table with increments+1 rows. The last row is all zeros.
	ComputeLookupTable(increments int) (*lookup.Table, error)

	// Name identifies the engine in logs
	Name() string
}

// EngineType identifies the evolution strategy
type EngineType string

const (
	// EngineTypeElevationBand uses the delta-h method on elevation bands
	EngineTypeElevationBand EngineType = "elevation_band"

	// EngineTypePixel uses uniform per-unit melt on raster pixels
	EngineTypePixel EngineType = "pixel"
)

// ParseEngineType converts a configuration string into an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	switch EngineType(s) {
	case EngineTypeElevationBand, EngineTypePixel:
		return EngineType(s), nil
	case "":
		return EngineTypeElevationBand, nil
	}
	return "", fmt.Errorf("unknown glacier engine %q (want %s or %s)", s, EngineTypeElevationBand, EngineTypePixel)
}

// NewEngine creates the engine of the requested type.
func NewEngine(engineType EngineType, geom Geometry, opts Options, logger *zap.SugaredLogger) (Engine, error) {
	switch engineType {
	case EngineTypeElevationBand, "":
		return NewBandEngine(geom, opts, logger), nil
	case EngineTypePixel:
		return NewPixelEngine(geom, opts, logger), nil
	}
	return nil, fmt.Errorf("unknown glacier engine %q", engineType)
}

// Calculator produces lookup tables using a pluggable engine and reports on the result.
type Calculator struct {
	engine Engine
	logger *zap.SugaredLogger
}

// NewCalculator creates a Calculator around the engine of the given type.
func NewCalculator(engineType EngineType, geom Geometry, opts Options, logger *zap.SugaredLogger) (*Calculator, error) {
	engine, err := NewEngine(engineType, geom, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Calculator{engine: engine, logger: logger}, nil
}

// Calculate computes the lookup table. On error no table is returned.
func (c *Calculator) Calculate(increments int) (*lookup.Table, error) {
	start := time.Now()

	t, err := c.engine.ComputeLookupTable(increments)
	if err != nil {
		return nil, fmt.Errorf("%s engine failed: %w", c.engine.Name(), err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s engine produced an invalid table: %w", c.engine.Name(), err)
	}

	c.logger.Infow("glacier lookup table computed",
		"engine", c.engine.Name(),
		"increments", increments,
		"units", len(t.UnitIDs),
		"initial_area_m2", t.TotalArea(0),
		"initial_volume_m3", t.TotalVolume(0),
		"elapsed", time.Since(start),
	)
	return t, nil
}

// SetEngine allows runtime switching of the evolution strategy
func (c *Calculator) SetEngine(engine Engine) {
	c.engine = engine
}

// Engine returns the current strategy.
func (c *Calculator) Engine() Engine {
	return c.engine
}
