// Package geometry reads the initial ice geometry tables produced by catchment delineation.
//
// Band table columns: elevation (m), area (m²), thickness (m of ice), unit.
// Pixel table columns: unit, thickness (m of ice); one row per pixel.
// Column order is taken from the header, so extra columns are ignored.
package geometry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/deltah/internal/glacier"
)

// ReadBands parses a band table. Thickness is converted to water equivalent with densityRatio.
// Rows without area are kept so that units without ice still get a lookup column.
func ReadBands(r io.Reader, densityRatio float64) ([]glacier.ElevationBand, error) {
	records, cols, err := readTable(r, "elevation", "area", "thickness", "unit")
	if err != nil {
		return nil, err
	}

	bands := make([]glacier.ElevationBand, 0, len(records))
	for i, rec := range records {
		line := i + 2
		elevation, err := parseFloat(rec, cols["elevation"], line)
		if err != nil {
			return nil, err
		}
		area, err := parseFloat(rec, cols["area"], line)
		if err != nil {
			return nil, err
		}
		thickness, err := parseFloat(rec, cols["thickness"], line)
		if err != nil {
			return nil, err
		}
		unit, err := parseInt(rec, cols["unit"], line)
		if err != nil {
			return nil, err
		}

		bands = append(bands, glacier.ElevationBand{
			Elevation:       elevation,
			Area:            area,
			WaterEquivalent: glacier.IceToWaterEquivalent(thickness, densityRatio),
			UnitID:          unit,
		})
	}
	return bands, nil
}

// ReadPixels parses a pixel table into one group per unit, in order of first appearance.
func ReadPixels(r io.Reader, densityRatio float64) ([]glacier.PixelGroup, error) {
	records, cols, err := readTable(r, "unit", "thickness")
	if err != nil {
		return nil, err
	}

	index := make(map[int]int)
	var groups []glacier.PixelGroup
	for i, rec := range records {
		line := i + 2
		unit, err := parseInt(rec, cols["unit"], line)
		if err != nil {
			return nil, err
		}
		thickness, err := parseFloat(rec, cols["thickness"], line)
		if err != nil {
			return nil, err
		}

		g, ok := index[unit]
		if !ok {
			g = len(groups)
			index[unit] = g
			groups = append(groups, glacier.PixelGroup{UnitID: unit})
		}
		groups[g].WaterEquivalent = append(groups[g].WaterEquivalent,
			glacier.IceToWaterEquivalent(thickness, densityRatio))
	}
	return groups, nil
}

// Load reads the geometry file for the given engine type.
func Load(path string, engine glacier.EngineType, densityRatio float64) (glacier.Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return glacier.Geometry{}, fmt.Errorf("failed to open geometry file: %w", err)
	}
	defer f.Close()

	var geom glacier.Geometry
	switch engine {
	case glacier.EngineTypePixel:
		geom.Pixels, err = ReadPixels(f, densityRatio)
	default:
		geom.Bands, err = ReadBands(f, densityRatio)
	}
	if err != nil {
		return glacier.Geometry{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return geom, nil
}

func readTable(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("missing header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return records, cols, nil
}

func parseFloat(rec []string, col, line int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid number %q: %w", line, rec[col], err)
	}
	return v, nil
}

func parseInt(rec []string, col, line int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(rec[col]))
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid unit id %q: %w", line, rec[col], err)
	}
	return v, nil
}
