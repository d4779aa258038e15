// Package robust refines linear prediction models by iteratively
// reweighted least squares, down-weighting samples whose prediction
// residual is large compared to a Huber scale estimate.
package robust

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/lpc"
)

const (
	// svdTolerance is the relative singular value cutoff of the solve.
	svdTolerance    = 1e-10
	huberIterations = 5
	machineEpsilon  = 2.220446049250313e-16
)

// Params controls the refinement.
type Params struct {
	K            float64 `yaml:"k" json:"k"`
	IterMax      int     `yaml:"itermax" json:"itermax"`
	Tol          float64 `yaml:"tol" json:"tol"`
	WantLocation bool    `yaml:"wantlocation" json:"wantlocation"`
}

// DefaultParams returns k = 1.5, five iterations, tolerance 1e-6 and a
// residual location fixed at zero.
func DefaultParams() Params {
	return Params{K: 1.5, IterMax: 5, Tol: 1e-6}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.K <= 0 || p.IterMax < 1 || p.Tol < 0 {
		return errors.Newf("invalid robust parameters k=%v itermax=%d tol=%v", p.K, p.IterMax, p.Tol).
			Component("robust").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Workspace is the per-thread state of the refinement.
type Workspace struct {
	params Params
	order  int

	residual []float64
	weights  []float64
	work     []float64
	coef     []float64

	cov *mat.Dense
	rhs *mat.VecDense
	sol *mat.VecDense
	svd mat.SVD

	// statistics of the last Refine call
	Location   float64
	Scale      float64
	Iterations int
}

// NewWorkspace allocates scratch for models up to order on frames of
// frameSize samples.
func NewWorkspace(order, frameSize int, params Params) (*Workspace, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if order < 1 || frameSize <= order {
		return nil, errors.PreconditionError("robust",
			"frame of %d samples cannot support order %d", frameSize, order)
	}
	return &Workspace{
		params:   params,
		order:    order,
		residual: make([]float64, frameSize),
		weights:  make([]float64, frameSize),
		work:     make([]float64, frameSize),
		coef:     make([]float64, order),
		cov:      mat.NewDense(order, order, nil),
		rhs:      mat.NewVecDense(order, nil),
		sol:      mat.NewVecDense(order, nil),
	}, nil
}

// Refine re-estimates the coefficients of in from the windowed frame x and
// writes them to dst. The gain of in is kept. When the weighted normal
// equations cannot be solved the input model is returned unchanged with
// lpc.RobustInfoSolveFailed.
func (ws *Workspace) Refine(x []float64, in lpc.Frame, dst []float64) lpc.Result {
	p := in.Order
	ws.Iterations = 0
	if p == 0 {
		return lpc.Result{Order: 0, Gain: in.Gain, Info: in.Info}
	}
	if p > ws.order || len(x) > len(ws.residual) || len(x) <= p {
		copy(dst[:p], in.A)
		return lpc.Result{Order: p, Gain: in.Gain, Info: lpc.RobustInfoSolveFailed}
	}

	a := dst[:p]
	copy(a, in.A)
	n := len(x)
	residual := ws.residual[:n]
	weights := ws.weights[:n]
	opts := HuberOptions{
		K:             ws.params.K,
		WantLocation:  ws.params.WantLocation,
		WantScale:     true,
		Tol:           ws.params.Tol,
		MaxIterations: huberIterations,
	}

	scale := math.MaxFloat64
	var (
		location     float64
		farFromScale bool
	)
	for {
		previous := scale
		copy(residual, x)
		lpc.InverseFilterInPlace(residual, a)
		location, scale = Huber(residual, ws.work, 0, 0, opts)
		ws.setWeights(residual, weights, location, scale)
		ws.setCovariances(x, weights, p)
		if !ws.solve(p) {
			copy(a, in.A)
			ws.Location, ws.Scale = location, scale
			return lpc.Result{Order: p, Gain: in.Gain, Info: lpc.RobustInfoSolveFailed}
		}
		for i := range p {
			a[i] = ws.sol.AtVec(i)
		}
		farFromScale = math.Abs(scale-previous) > math.Max(ws.params.Tol*math.Abs(scale), machineEpsilon)
		ws.Iterations++
		if ws.Iterations >= ws.params.IterMax || !farFromScale {
			break
		}
	}

	ws.Location, ws.Scale = location, scale
	info := lpc.InfoOK
	if farFromScale {
		info = lpc.RobustInfoIterationLimit
	}
	return lpc.Result{Order: p, Gain: in.Gain, Info: info}
}

// setWeights assigns full weight to residuals within k scales of the
// location and a decreasing weight beyond.
func (ws *Workspace) setWeights(residual, weights []float64, location, scale float64) {
	ks := ws.params.K * scale
	for i, e := range residual {
		d := math.Abs(e - location)
		if d <= ks {
			weights[i] = 1
			continue
		}
		weights[i] = ks / d
	}
}

// setCovariances fills the weighted normal equations C a = c over the
// samples with a full prediction history.
func (ws *Workspace) setCovariances(x, w []float64, p int) {
	ws.cov.Reset()
	ws.cov.ReuseAs(p, p)
	ws.rhs.Reset()
	ws.rhs.ReuseAsNonZeroed(p)

	n := len(x)
	for i := 1; i <= p; i++ {
		for j := i; j <= p; j++ {
			sum := 0.0
			for k := p; k < n; k++ {
				sum += x[k-j] * x[k-i] * w[k]
			}
			ws.cov.Set(i-1, j-1, sum)
			ws.cov.Set(j-1, i-1, sum)
		}
		sum := 0.0
		for k := p; k < n; k++ {
			sum += x[k-i] * x[k] * w[k]
		}
		ws.rhs.SetVec(i-1, -sum)
	}
}

// solve computes the minimum norm least squares solution of the normal
// equations, ignoring singular values below svdTolerance times the largest.
func (ws *Workspace) solve(p int) bool {
	if ok := ws.svd.Factorize(ws.cov, mat.SVDThin); !ok {
		return false
	}
	rank := ws.svd.Rank(svdTolerance)
	if rank == 0 {
		return false
	}
	ws.sol.Reset()
	ws.sol.ReuseAsNonZeroed(p)
	ws.svd.SolveVecTo(ws.sol, ws.rhs, rank)
	for i := range p {
		if v := ws.sol.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
