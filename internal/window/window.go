// Package window provides the analysis window catalogue and a process-wide
// cache of window tables.
package window

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/go-lpc/internal/errors"
)

// Shape identifies a window function.
type Shape int

const (
	Rectangular Shape = iota
	Triangular
	Parabolic
	Hanning
	Hamming
	Gaussian1
	Gaussian2
	Gaussian3
	Gaussian4
	Gaussian5
	Kaiser1
	Kaiser2
)

var shapeNames = [...]string{
	Rectangular: "rectangular",
	Triangular:  "triangular",
	Parabolic:   "parabolic",
	Hanning:     "hanning",
	Hamming:     "hamming",
	Gaussian1:   "gaussian1",
	Gaussian2:   "gaussian2",
	Gaussian3:   "gaussian3",
	Gaussian4:   "gaussian4",
	Gaussian5:   "gaussian5",
	Kaiser1:     "kaiser1",
	Kaiser2:     "kaiser2",
}

// String returns the configuration name of the shape.
func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return "shape(" + strconv.Itoa(int(s)) + ")"
	}
	return shapeNames[s]
}

// Parse returns the shape with the given configuration name. "hann" is
// accepted as an alias of "hanning" and "gaussian" of "gaussian2".
func Parse(name string) (Shape, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "hann":
		return Hanning, nil
	case "gaussian":
		return Gaussian2, nil
	}
	for i, s := range shapeNames {
		if s == n {
			return Shape(i), nil
		}
	}
	return 0, errors.ValidationError("window", "unknown window shape %q", name)
}

// PhysicalWidthFactor returns the ratio between the physical and effective
// width of the window. Bell shaped windows need twice the samples to reach
// the same effective duration.
func (s Shape) PhysicalWidthFactor() float64 {
	switch s {
	case Rectangular, Triangular, Hamming, Hanning:
		return 1
	default:
		return 2
	}
}

// Fill writes the window of the given shape into dst, sampled at the
// centres of len(dst) equal cells spanning the window.
func Fill(shape Shape, dst []float64) {
	n := float64(len(dst))
	for i := range dst {
		phase := (float64(i) + 0.5) / n
		dst[i] = value(shape, phase)
	}
}

func value(shape Shape, phase float64) float64 {
	switch shape {
	case Rectangular:
		return 1
	case Triangular:
		return 1 - math.Abs(2*phase-1)
	case Parabolic:
		x := 2*phase - 1
		return 1 - x*x
	case Hanning:
		return 0.5 - 0.5*math.Cos(2*math.Pi*phase)
	case Hamming:
		return 0.54 - 0.46*math.Cos(2*math.Pi*phase)
	case Gaussian1, Gaussian2, Gaussian3, Gaussian4, Gaussian5:
		k := float64(shape - Gaussian1 + 1)
		edge := math.Exp(-3 * k * k)
		d := phase - 0.5
		return (math.Exp(-12*k*k*d*d) - edge) / (1 - edge)
	case Kaiser1, Kaiser2:
		beta := 2*math.Pi + 0.5
		if shape == Kaiser2 {
			beta = 2*math.Pi*math.Pi + 0.5
		}
		x := 2*phase - 1
		return bessel0(beta*math.Sqrt(1-x*x)) / bessel0(beta)
	default:
		return 1
	}
}

// bessel0 computes the modified Bessel function of the first kind, order 0
func bessel0(x float64) float64 {
	if x == 0.0 {
		return 1.0
	}

	ax := math.Abs(x)

	if ax < 3.75 {
		y := x / 3.75
		y *= y
		return 1.0 + y*(3.5156229+y*(3.0899424+y*(1.2067492+
			y*(0.2659732+y*(0.360768e-1+y*0.45813e-2)))))
	}

	y := 3.75 / ax
	return (math.Exp(ax) / math.Sqrt(ax)) * (0.39894228 + y*(0.1328592e-1+
		y*(0.225319e-2+y*(-0.157565e-2+y*(0.916281e-2+
			y*(-0.2057706e-1+y*(0.2635537e-1+y*(-0.1647633e-1+
				y*0.392377e-2))))))))
}

// tableCache holds shared read-only window tables. Without a cleanup
// interval no janitor goroutine is started; expired tables are dropped
// lazily on lookup.
var tableCache = cache.New(30*time.Minute, 0)

// Table returns the window of the given shape and size. The returned slice
// is shared between callers and must not be modified.
func Table(shape Shape, size int) []float64 {
	key := fmt.Sprintf("%d:%d", shape, size)
	if cached, ok := tableCache.Get(key); ok {
		if table, ok := cached.([]float64); ok {
			return table
		}
	}

	table := make([]float64, size)
	Fill(shape, table)
	tableCache.SetDefault(key, table)
	return table
}
