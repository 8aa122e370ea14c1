// Package glacier computes how a glacier's area and ice volume decay as it loses its mass in
// equal increments. Two strategies share one output type: the elevation-band delta-h engine
// (Huss et al., 2010) and a pixel-resolution area-scaling engine.
package glacier

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoGlaciatedArea is returned when a glacier has no positive glaciated area, so no
// size class and no shape function can be chosen for it.
var ErrNoGlaciatedArea = errors.New("glacier: no glaciated area")

// Parametrization holds the empirical delta-h shape coefficients of one size class.
type Parametrization struct {
	A, B, C, Gamma float64
}

var (
	largeGlacier  = Parametrization{A: -0.02, B: 0.12, C: 0.00, Gamma: 6}
	mediumGlacier = Parametrization{A: -0.05, B: 0.19, C: 0.01, Gamma: 4}
	smallGlacier  = Parametrization{A: -0.30, B: 0.60, C: 0.09, Gamma: 2}
)

// SelectParametrization picks the coefficients for a glacier of the given total area in km².
// Glaciers above 20 km² are large, 5-20 km² medium and anything smaller small.
func SelectParametrization(areaKm2 float64) (Parametrization, error) {
	switch {
	case math.IsNaN(areaKm2) || areaKm2 <= 0:
		return Parametrization{}, fmt.Errorf("%w: total area %g km²", ErrNoGlaciatedArea, areaKm2)
	case areaKm2 > 20:
		return largeGlacier, nil
	case areaKm2 >= 5:
		return mediumGlacier, nil
	default:
		return smallGlacier, nil
	}
}

// Shape returns the dimensionless ice thickness change at normalized elevation norm,
// where 0 is the highest glacier band and 1 the tongue.
func (p Parametrization) Shape(norm float64) float64 {
	x := norm + p.A
	return math.Pow(x, p.Gamma) + p.B*x + p.C
}

// Class names the size class, for logging.
func (p Parametrization) Class() string {
	switch p {
	case largeGlacier:
		return "large"
	case mediumGlacier:
		return "medium"
	case smallGlacier:
		return "small"
	}
	return "custom"
}
