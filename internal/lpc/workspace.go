package lpc

import (
	"github.com/tphakala/go-lpc/internal/errors"
)

// Method specific frame info codes.
const (
	AutoInfoGainNotPositive = 2

	CovarInfoNegativeBeta    = 2
	CovarInfoBetaNotPositive = 3
	CovarInfoGainNotPositive = 4

	MarpleInfoIllConditioned   = 2
	MarpleInfoReflection       = 3
	MarpleInfoErrorFloor       = 4
	MarpleInfoSmallImprovement = 5

	RobustInfoSolveFailed    = 2
	RobustInfoIterationLimit = 3
)

// Default Marple tolerances.
const (
	DefaultMarpleTol1 = 1e-6
	DefaultMarpleTol2 = 1e-6
)

// Result is the outcome of one estimation. The coefficients are written to
// the destination slice passed to the estimator.
type Result struct {
	Order int
	Gain  float64
	Info  int
}

// Workspace holds the scratch buffers of all estimators for one thread.
// Buffers are sized once for the maximum order and frame size.
type Workspace struct {
	order     int
	frameSize int

	// autocorrelation
	r, a, rc []float64
	// covariance, 1-based
	cb, cgrc, cbeta, ccc, ca []float64
	// burg
	aa, b1, b2 []float64
	// marple, 1-based
	mc, md, mr, ma []float64

	Tol1, Tol2 float64
}

// NewWorkspace allocates scratch for models up to order taken from frames
// of frameSize samples.
func NewWorkspace(order, frameSize int) (*Workspace, error) {
	if order < 1 || frameSize < 1 {
		return nil, errors.PreconditionError("lpc",
			"invalid workspace dimensions: order %d, frame size %d", order, frameSize)
	}
	return &Workspace{
		order:     order,
		frameSize: frameSize,
		r:         make([]float64, order+1),
		a:         make([]float64, order+1),
		rc:        make([]float64, order+1),
		cb:        make([]float64, order*(order+1)/2+1),
		cgrc:      make([]float64, order+1),
		cbeta:     make([]float64, order+1),
		ccc:       make([]float64, order+2),
		ca:        make([]float64, order+2),
		aa:        make([]float64, order),
		b1:        make([]float64, frameSize),
		b2:        make([]float64, frameSize),
		mc:        make([]float64, order+2),
		md:        make([]float64, order+2),
		mr:        make([]float64, order+2),
		ma:        make([]float64, order+1),
		Tol1:      DefaultMarpleTol1,
		Tol2:      DefaultMarpleTol2,
	}, nil
}

// Order returns the maximum order the workspace was sized for.
func (ws *Workspace) Order() int { return ws.order }

// Estimate runs the given method on frame x and writes the coefficients to
// dst, which must hold at least Order() values.
func (ws *Workspace) Estimate(m Method, x, dst []float64) (Result, error) {
	if len(x) > ws.frameSize {
		return Result{}, errors.Newf("frame of %d samples exceeds workspace size %d", len(x), ws.frameSize).
			Component("lpc").
			Category(errors.CategoryWorker).
			Build()
	}
	switch m {
	case Autocorrelation:
		return ws.Autocorrelation(x, dst), nil
	case Covariance:
		return ws.Covariance(x, dst), nil
	case Burg:
		return ws.Burg(x, dst), nil
	case Marple:
		return ws.Marple(x, dst), nil
	default:
		return Result{}, errors.Newf("method %s is not a frame estimator", m).
			Component("lpc").
			Category(errors.CategoryValidation).
			Build()
	}
}
