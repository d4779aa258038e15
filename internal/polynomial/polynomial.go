// Package polynomial implements the real-coefficient polynomial algebra and
// root finding used by the formant and line spectral frequency converters.
//
// Coefficients are stored in ascending order: Coefficients[i] multiplies x^i.
// A Polynomial is scratch state; converters allocate one per thread with
// enough capacity for the largest frame and re-initialise it per frame.
package polynomial

import (
	"math"
)

// Polynomial is a real polynomial with an associated search domain [Xmin, Xmax].
type Polynomial struct {
	Coefficients []float64
	Xmin, Xmax   float64
}

// New returns an empty polynomial able to hold capacity coefficients
// without reallocating.
func New(xmin, xmax float64, capacity int) *Polynomial {
	return &Polynomial{
		Coefficients: make([]float64, 0, capacity),
		Xmin:         xmin,
		Xmax:         xmax,
	}
}

// NewFromCoefficients returns a polynomial owning a copy of coefficients.
func NewFromCoefficients(xmin, xmax float64, coefficients ...float64) *Polynomial {
	p := New(xmin, xmax, len(coefficients)+2)
	p.Coefficients = append(p.Coefficients, coefficients...)
	return p
}

// Degree returns the formal degree, len(Coefficients)-1, or -1 when empty.
func (p *Polynomial) Degree() int {
	return len(p.Coefficients) - 1
}

// Resize sets the number of coefficients to n and zeroes them, reusing the
// backing array when it is large enough.
func (p *Polynomial) Resize(n int) {
	if cap(p.Coefficients) < n {
		p.Coefficients = make([]float64, n)
		return
	}
	p.Coefficients = p.Coefficients[:n]
	clear(p.Coefficients)
}

// Evaluate returns p(x) using Horner's scheme.
func (p *Polynomial) Evaluate(x float64) float64 {
	c := p.Coefficients
	if len(c) == 0 {
		return 0
	}
	v := c[len(c)-1]
	for i := len(c) - 2; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}

// EvaluateComplex returns p(z) and p'(z).
func (p *Polynomial) EvaluateComplex(z complex128) (value, derivative complex128) {
	c := p.Coefficients
	if len(c) == 0 {
		return 0, 0
	}
	value = complex(c[len(c)-1], 0)
	for i := len(c) - 2; i >= 0; i-- {
		derivative = derivative*z + value
		value = value*z + complex(c[i], 0)
	}
	return value, derivative
}

// DivideFirstOrderFactor divides p in place by (x - a) and returns the remainder.
func (p *Polynomial) DivideFirstOrderFactor(a float64) float64 {
	c := p.Coefficients
	n := len(c) - 1
	if n < 1 {
		var remainder float64
		if n == 0 {
			remainder = c[0]
		}
		p.Coefficients = c[:0]
		return remainder
	}

	// After the sweep c[k+1] holds quotient coefficient k and c[0] the remainder.
	for k := n; k >= 1; k-- {
		c[k-1] += a * c[k]
	}
	remainder := c[0]
	copy(c, c[1:])
	p.Coefficients = c[:n]
	return remainder
}

// DivideSecondOrderFactor divides p in place by (x^2 - a). The remainder is
// discarded.
func (p *Polynomial) DivideSecondOrderFactor(a float64) {
	c := p.Coefficients
	n := len(c) - 1
	if n < 2 {
		p.Coefficients = c[:0]
		return
	}

	for k := n; k >= 2; k-- {
		c[k-2] += a * c[k]
	}
	copy(c, c[2:])
	p.Coefficients = c[:n-1]
}

// MultiplyFirstOrderFactor multiplies p in place by (x - a).
func (p *Polynomial) MultiplyFirstOrderFactor(a float64) {
	c := append(p.Coefficients, 0)
	for k := len(c) - 1; k >= 1; k-- {
		c[k] = c[k-1] - a*c[k]
	}
	c[0] *= -a
	p.Coefficients = c
}

// MultiplySecondOrderFactor multiplies p in place by (x^2 - a).
func (p *Polynomial) MultiplySecondOrderFactor(a float64) {
	c := append(p.Coefficients, 0, 0)
	for k := len(c) - 1; k >= 2; k-- {
		c[k] = c[k-2] - a*c[k]
	}
	c[1] *= -a
	c[0] *= -a
	p.Coefficients = c
}

// InitFromProductOfSecondOrderTerms sets p to the product of (1 + a[i] x + x^2).
// An empty a gives the constant polynomial 1.
func (p *Polynomial) InitFromProductOfSecondOrderTerms(a []float64) {
	p.Resize(2*len(a) + 1)
	c := p.Coefficients
	c[0] = 1
	degree := 0
	for _, ai := range a {
		// entries above degree are still zero
		for k := degree + 2; k >= 0; k-- {
			v := c[k]
			if k >= 1 {
				v += ai * c[k-1]
			}
			if k >= 2 {
				v += c[k-2]
			}
			c[k] = v
		}
		degree += 2
	}
}

// RiddersTolerance is the absolute convergence tolerance of FindRootRidders.
const RiddersTolerance = 1e-14

const riddersMaxIterations = 100

// FindRootRidders returns a simple real root of p in [x1, x2] using Ridders'
// method. It reports false when the interval does not bracket a sign change.
// An endpoint that is an exact root is returned as is.
func (p *Polynomial) FindRootRidders(x1, x2 float64) (float64, bool) {
	return Ridders(p.Evaluate, x1, x2)
}

// Ridders finds a root of f bracketed by [x1, x2].
func Ridders(f func(float64) float64, x1, x2 float64) (float64, bool) {
	fl, fh := f(x1), f(x2)
	if fl == 0 {
		return x1, true
	}
	if fh == 0 {
		return x2, true
	}
	if (fl > 0) == (fh > 0) {
		return math.NaN(), false
	}

	xl, xh := x1, x2
	root := math.Inf(-1)
	for range riddersMaxIterations {
		xm := 0.5 * (xl + xh)
		fm := f(xm)
		s := math.Sqrt(fm*fm - fl*fh)
		if s == 0 {
			return xm, true
		}
		step := (xm - xl) * fm / s
		if fl < fh {
			step = -step
		}
		xnew := xm + step
		if math.Abs(xnew-root) <= RiddersTolerance {
			return xnew, true
		}
		root = xnew
		fnew := f(root)
		if fnew == 0 {
			return root, true
		}
		switch {
		case math.Signbit(fm) != math.Signbit(fnew):
			xl, fl = xm, fm
			xh, fh = root, fnew
		case math.Signbit(fl) != math.Signbit(fnew):
			xh, fh = root, fnew
		default:
			xl, fl = root, fnew
		}
		if math.Abs(xh-xl) <= RiddersTolerance {
			return root, true
		}
	}
	return root, true
}

// SearchRootsOnGrid scans [Xmin, Xmax] in cells of width gridSize and stores
// at most len(dst) distinct simple real roots in ascending order. It returns
// the number of roots stored.
func (p *Polynomial) SearchRootsOnGrid(gridSize float64, dst []float64) int {
	found := 0
	xmin := p.Xmin
	for xmin < p.Xmax && found < len(dst) {
		xmax := min(xmin+gridSize, p.Xmax)
		if root, ok := p.FindRootRidders(xmin, xmax); ok {
			// a root on a cell border is found from both sides
			if found == 0 || dst[found-1] != root {
				dst[found] = root
				found++
			}
		}
		xmin = xmax
	}
	return found
}
