package polynomial

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-lpc/internal/errors"
)

// ErrDegeneratePolynomial is returned when no root can be computed, e.g.
// all coefficients are zero or the iterations did not converge.
var ErrDegeneratePolynomial = errors.NewStd("polynomial: degenerate polynomial")

const (
	newtonMaxIterations  = 80
	durandKernerMaxIter  = 500
	durandKernerTol      = 1e-12
	durandKernerResidual = 1e-6
)

// Roots is a fixed-capacity set of complex roots.
type Roots struct {
	values []complex128
	n      int
}

// NewRoots returns an empty root set able to hold capacity roots.
func NewRoots(capacity int) *Roots {
	return &Roots{values: make([]complex128, capacity)}
}

// Len returns the number of roots found.
func (r *Roots) Len() int { return r.n }

// Values returns the found roots. The slice aliases internal storage.
func (r *Roots) Values() []complex128 { return r.values[:r.n] }

func (r *Roots) reset(n int) {
	if cap(r.values) < n {
		r.values = make([]complex128, n)
	}
	r.values = r.values[:cap(r.values)]
	r.n = n
}

// FixIntoUnitCircle reflects every root with modulus above one to 1/conj(z).
// The reflected root has the same angle, so the frequency it represents is
// unchanged and the corresponding filter becomes stable.
func (r *Roots) FixIntoUnitCircle() {
	for i, z := range r.values[:r.n] {
		if cmplx.Abs(z) > 1 {
			r.values[i] = 1 / cmplx.Conj(z)
		}
	}
}

// RootFinder computes all complex roots of a polynomial. It holds the
// companion matrix and eigen decomposition scratch and must not be shared
// between goroutines.
type RootFinder struct {
	companion  *mat.Dense
	eigen      mat.Eigen
	monic      []float64
	dkNormDesc []complex128
	fallbacks  int
}

// NewRootFinder returns a RootFinder sized for polynomials up to maxDegree.
func NewRootFinder(maxDegree int) *RootFinder {
	n := max(maxDegree, 1)
	return &RootFinder{
		companion:  mat.NewDense(n, n, nil),
		monic:      make([]float64, 0, n+1),
		dkNormDesc: make([]complex128, 0, n+1),
	}
}

// FallbackCount reports how many polynomials needed the Durand-Kerner
// fallback since the finder was created.
func (rf *RootFinder) FallbackCount() int { return rf.fallbacks }

// Find stores all roots of p in roots. Leading zero coefficients are
// ignored; a constant polynomial has no roots. Each root is polished with
// Newton iterations on the original polynomial.
func (rf *RootFinder) Find(p *Polynomial, roots *Roots) error {
	c := p.Coefficients
	degree := len(c) - 1
	for degree >= 0 && c[degree] == 0 {
		degree--
	}
	if degree < 0 {
		roots.reset(0)
		return ErrDegeneratePolynomial
	}
	if degree == 0 {
		roots.reset(0)
		return nil
	}

	lead := c[degree]
	rf.monic = rf.monic[:0]
	for i := 0; i <= degree; i++ {
		rf.monic = append(rf.monic, c[i]/lead)
	}

	roots.reset(degree)
	if !rf.eigenRoots(degree, roots.values[:degree]) {
		if err := rf.durandKerner(degree, roots.values[:degree]); err != nil {
			roots.reset(0)
			return err
		}
		rf.fallbacks++
	}

	trimmed := Polynomial{Coefficients: c[:degree+1]}
	for i := range degree {
		roots.values[i] = trimmed.polish(roots.values[i])
	}
	return nil
}

// eigenRoots computes the eigenvalues of the companion matrix of the monic
// polynomial in rf.monic.
func (rf *RootFinder) eigenRoots(degree int, dst []complex128) bool {
	rf.companion.Reset()
	rf.companion.ReuseAs(degree, degree)
	for j := range degree {
		rf.companion.Set(0, j, -rf.monic[degree-1-j])
	}
	for i := 1; i < degree; i++ {
		rf.companion.Set(i, i-1, 1)
	}

	if ok := rf.eigen.Factorize(rf.companion, mat.EigenNone); !ok {
		return false
	}
	values := rf.eigen.Values(dst)
	for _, v := range values {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

// durandKerner runs the Weierstrass simultaneous iteration on rf.monic.
func (rf *RootFinder) durandKerner(degree int, dst []complex128) error {
	rf.dkNormDesc = rf.dkNormDesc[:0]
	for i := degree; i >= 0; i-- {
		rf.dkNormDesc = append(rf.dkNormDesc, complex(rf.monic[i], 0))
	}

	radius := 1.0
	for _, v := range rf.dkNormDesc[1:] {
		radius = math.Max(radius, cmplx.Abs(v))
	}

	for i := range degree {
		angle := 2*math.Pi*float64(i)/float64(degree) + 0.3
		r := radius * (1 + 0.1*float64(i)/float64(degree))
		dst[i] = complex(r*math.Cos(angle), r*math.Sin(angle))
	}

	for range durandKernerMaxIter {
		maxDelta := 0.0
		for i := range degree {
			den := complex(1, 0)
			for j := range degree {
				if i != j {
					den *= dst[i] - dst[j]
				}
			}
			if den == 0 {
				dst[i] += complex(1e-10, 1e-10)
				continue
			}
			delta := evalDescending(rf.dkNormDesc, dst[i]) / den
			dst[i] -= delta
			maxDelta = math.Max(maxDelta, cmplx.Abs(delta))
		}
		if maxDelta < durandKernerTol {
			return nil
		}
	}

	for _, z := range dst {
		if cmplx.Abs(evalDescending(rf.dkNormDesc, z)) > durandKernerResidual {
			return ErrDegeneratePolynomial
		}
	}
	return nil
}

func evalDescending(coeff []complex128, z complex128) complex128 {
	v := coeff[0]
	for _, c := range coeff[1:] {
		v = v*z + c
	}
	return v
}

// polish refines z with Newton steps, keeping a step only while it reduces
// the residual.
func (p *Polynomial) polish(z complex128) complex128 {
	value, derivative := p.EvaluateComplex(z)
	residual := cmplx.Abs(value)
	for range newtonMaxIterations {
		if residual == 0 || derivative == 0 {
			break
		}
		next := z - value/derivative
		nextValue, nextDerivative := p.EvaluateComplex(next)
		nextResidual := cmplx.Abs(nextValue)
		if nextResidual >= residual {
			break
		}
		z, value, derivative, residual = next, nextValue, nextDerivative, nextResidual
	}
	// snap numerically real roots of a real polynomial onto the axis
	if math.Abs(imag(z)) <= 1e-14*math.Max(1, cmplx.Abs(z)) {
		z = complex(real(z), 0)
	}
	return z
}
