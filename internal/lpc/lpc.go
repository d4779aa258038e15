// Package lpc holds linear prediction models and the four recursive
// estimators that compute them from a windowed frame.
//
// A model of order p predicts x[n] as -sum a[j] x[n-j], j = 1..p; A holds
// a[1..p] at indices 0..p-1.
package lpc

import (
	"strings"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/polynomial"
	"github.com/tphakala/go-lpc/internal/signal"
)

// GetLogger returns the lpc logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("lpc")
}

// Method selects an estimator.
type Method int

const (
	Autocorrelation Method = iota
	Covariance
	Burg
	Marple
	// Robust refines an autocorrelation model by iteratively reweighted
	// least squares. It is run by the robust package, not by Workspace.
	Robust
)

var methodNames = [...]string{
	Autocorrelation: "autocorrelation",
	Covariance:      "covariance",
	Burg:            "burg",
	Marple:          "marple",
	Robust:          "robust",
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return "unknown"
	}
	return methodNames[m]
}

// ParseMethod returns the method with the given name; "auto" and "covar"
// are accepted as short forms.
func ParseMethod(name string) (Method, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "auto":
		return Autocorrelation, nil
	case "covar":
		return Covariance, nil
	default:
		for i, s := range methodNames {
			if s == n {
				return Method(i), nil
			}
		}
	}
	return 0, errors.ValidationError("lpc", "unknown LPC method %q", name)
}

// Frame info codes. Codes above InfoZeroEnergy are method specific and
// described by DegradationKind.
const (
	InfoOK         = 0
	InfoZeroEnergy = 1
)

// Frame is one linear prediction model. len(A) == Order always holds.
type Frame struct {
	Order int       `yaml:"order" json:"order"`
	A     []float64 `yaml:"a,flow" json:"a"`
	Gain  float64   `yaml:"gain" json:"gain"`
	Info  int       `yaml:"info,omitempty" json:"info,omitempty"`
	Valid bool      `yaml:"valid" json:"valid"`
}

// ToPolynomial stores z^p A(1/z) = z^p + a[1] z^(p-1) + ... + a[p] in p,
// in ascending order.
func (f *Frame) ToPolynomial(p *polynomial.Polynomial) {
	p.Resize(f.Order + 1)
	c := p.Coefficients
	for i := range f.Order {
		c[i] = f.A[f.Order-1-i]
	}
	c[f.Order] = 1
}

// LPC is a sequence of models on a regular time grid.
type LPC struct {
	Sampling       signal.Sampling `yaml:"sampling" json:"sampling"`
	MaxOrder       int             `yaml:"max_order" json:"max_order"`
	SamplingPeriod float64         `yaml:"sampling_period" json:"sampling_period"`
	Frames         []Frame         `yaml:"frames" json:"frames"`

	storage []float64
}

// New allocates a sequence of invalid frames. Coefficient storage for all
// frames is allocated up front so that publishing a frame never allocates.
func New(grid signal.Sampling, maxOrder int, samplingPeriod float64) *LPC {
	return &LPC{
		Sampling:       grid,
		MaxOrder:       maxOrder,
		SamplingPeriod: samplingPeriod,
		Frames:         make([]Frame, grid.Nx),
		storage:        make([]float64, grid.Nx*maxOrder),
	}
}

// Storage returns the coefficient storage reserved for frame i.
func (l *LPC) Storage(i int) []float64 {
	if l.storage == nil {
		l.storage = make([]float64, len(l.Frames)*l.MaxOrder)
	}
	return l.storage[i*l.MaxOrder : (i+1)*l.MaxOrder : (i+1)*l.MaxOrder]
}

// Publish stores a model for frame i. The coefficients are copied into the
// frame's own storage and the slot is replaced in a single assignment.
func (l *LPC) Publish(i int, order int, a []float64, gain float64, info int) {
	dst := l.Storage(i)[:order]
	copy(dst, a[:order])
	l.Frames[i] = Frame{Order: order, A: dst, Gain: gain, Info: info, Valid: true}
}

// NumberOfValidFrames counts published frames.
func (l *LPC) NumberOfValidFrames() int {
	n := 0
	for i := range l.Frames {
		if l.Frames[i].Valid {
			n++
		}
	}
	return n
}

// NyquistFrequency returns half the sampling frequency of the analysed sound.
func (l *LPC) NyquistFrequency() float64 { return 0.5 / l.SamplingPeriod }

// Clone returns a deep copy.
func (l *LPC) Clone() *LPC {
	out := New(l.Sampling, l.MaxOrder, l.SamplingPeriod)
	for i, f := range l.Frames {
		if !f.Valid {
			continue
		}
		out.Publish(i, f.Order, f.A, f.Gain, f.Info)
	}
	return out
}

// DegradationKind names the recoverable condition behind a frame info
// code, or returns "" when the frame was estimated normally.
func DegradationKind(m Method, info int) string {
	if info == InfoOK {
		return ""
	}
	if info == InfoZeroEnergy {
		return "zero_energy"
	}
	switch m {
	case Autocorrelation, Covariance:
		return "truncated"
	case Marple:
		switch info {
		case MarpleInfoIllConditioned, MarpleInfoReflection:
			return "truncated"
		default:
			// tolerance stops are regular terminations
			return ""
		}
	case Robust:
		switch info {
		case RobustInfoSolveFailed:
			return "solve_failed"
		case RobustInfoIterationLimit:
			return "iteration_limit"
		}
	}
	return "other"
}
