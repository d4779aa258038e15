package robust

import (
	"math"
	"slices"
)

// madToSigma scales the median absolute deviation of a normal sample to its
// standard deviation.
const madToSigma = 1.4826

// HuberOptions configures Huber's proposal 2 M-estimator.
type HuberOptions struct {
	K             float64
	WantLocation  bool
	WantScale     bool
	Tol           float64
	MaxIterations int
}

// Huber estimates location and scale of x. Starting values are the median
// and the normalised MAD; a location or scale that is not wanted keeps the
// value passed in. work must hold len(x) values.
func Huber(x, work []float64, location, scale float64, opts HuberOptions) (float64, float64) {
	n := len(x)
	if n == 0 {
		return location, scale
	}
	work = work[:n]

	med, mad := medianAndMAD(x, work)
	mu, s := location, scale
	if opts.WantLocation {
		mu = med
	}
	if opts.WantScale {
		s = mad
	}

	k := opts.K
	theta := 2*normalCDF(k) - 1
	beta := theta + k*k*(1-theta) - 2*k*normalPDF(k)
	n1 := float64(n)
	if opts.WantLocation {
		n1--
	}

	for range opts.MaxIterations {
		mu0, s0 := mu, s
		low, high := mu0-k*s0, mu0+k*s0
		for i, v := range x {
			work[i] = min(max(v, low), high)
		}
		if opts.WantLocation {
			sum := 0.0
			for _, v := range work {
				sum += v
			}
			mu = sum / float64(n)
		}
		if opts.WantScale {
			sumsq := 0.0
			for _, v := range work {
				d := v - mu
				sumsq += d * d
			}
			s = math.Sqrt(sumsq / (n1 * beta))
		}
		if math.Abs(mu-mu0) < opts.Tol*s0 && math.Abs(s-s0) < opts.Tol*s0 {
			break
		}
	}
	return mu, s
}

// medianAndMAD returns the median of x and its normalised median absolute
// deviation, using work as sort buffer.
func medianAndMAD(x, work []float64) (median, mad float64) {
	copy(work, x)
	slices.Sort(work)
	median = sortedMedian(work)
	for i, v := range x {
		work[i] = math.Abs(v - median)
	}
	slices.Sort(work)
	return median, madToSigma * sortedMedian(work)
}

func sortedMedian(v []float64) float64 {
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return 0.5 * (v[n/2-1] + v[n/2])
}

func normalCDF(x float64) float64 { return 0.5 * (1 + math.Erf(x/math.Sqrt2)) }

func normalPDF(x float64) float64 { return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi) }
