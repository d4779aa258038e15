// Package formant converts between linear prediction models and resonance
// (formant) models.
package formant

import (
	"cmp"
	"math"
	"slices"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/polynomial"
	"github.com/tphakala/go-lpc/internal/signal"
)

// MaxOrder bounds the model order accepted by the root finder.
const MaxOrder = 100

// Frame info codes.
const (
	InfoOK          = 0
	InfoEmptyModel  = 1
	InfoRootsFailed = 2
)

// Resonance is one formant.
type Resonance struct {
	Frequency float64 `yaml:"frequency" json:"frequency"`
	Bandwidth float64 `yaml:"bandwidth" json:"bandwidth"`
}

// Frame holds the formants of one analysis frame sorted by frequency.
type Frame struct {
	Formants  []Resonance `yaml:"formants,flow" json:"formants"`
	Intensity float64     `yaml:"intensity" json:"intensity"`
	Info      int         `yaml:"info,omitempty" json:"info,omitempty"`
	Valid     bool        `yaml:"valid" json:"valid"`
}

// Formant is a sequence of formant frames on a regular time grid.
type Formant struct {
	Sampling    signal.Sampling `yaml:"sampling" json:"sampling"`
	MaxFormants int             `yaml:"max_formants" json:"max_formants"`
	Frames      []Frame         `yaml:"frames" json:"frames"`

	storage []Resonance
}

// New allocates a sequence of invalid frames with room for maxFormants
// formants each.
func New(grid signal.Sampling, maxFormants int) *Formant {
	return &Formant{
		Sampling:    grid,
		MaxFormants: maxFormants,
		Frames:      make([]Frame, grid.Nx),
		storage:     make([]Resonance, grid.Nx*maxFormants),
	}
}

// Publish stores the formants of frame i in the frame's own storage and
// replaces the slot in a single assignment.
func (f *Formant) Publish(i int, formants []Resonance, intensity float64, info int) {
	if f.storage == nil {
		f.storage = make([]Resonance, len(f.Frames)*f.MaxFormants)
	}
	n := min(len(formants), f.MaxFormants)
	dst := f.storage[i*f.MaxFormants : i*f.MaxFormants+n : (i+1)*f.MaxFormants]
	copy(dst, formants[:n])
	f.Frames[i] = Frame{Formants: dst, Intensity: intensity, Info: info, Valid: true}
}

// MaxNumberOfFormants returns how many formants a model of the given order
// can produce. Real roots map to 0 Hz or the Nyquist frequency; a positive
// margin removes them, leaving at most one formant per conjugate pair.
func MaxNumberOfFormants(order int, margin float64) int {
	if margin == 0 {
		return order
	}
	return (order + 1) / 2
}

// CheckOrder rejects orders the root finder does not accept.
func CheckOrder(order int) error {
	if order >= MaxOrder {
		return errors.PreconditionError("formant",
			"cannot find the roots of a polynomial of order %d, the maximum is %d", order, MaxOrder-1)
	}
	return nil
}

// Converter is the per-thread state of the LPC to formant conversion.
type Converter struct {
	poly   *polynomial.Polynomial
	finder *polynomial.RootFinder
	roots  *polynomial.Roots
	buf    []Resonance
}

// NewConverter allocates root finding scratch for models up to order.
func NewConverter(order int) *Converter {
	return &Converter{
		poly:   polynomial.New(-1, 1, order+3),
		finder: polynomial.NewRootFinder(order),
		roots:  polynomial.NewRoots(order),
		buf:    make([]Resonance, 0, order),
	}
}

// FallbackCount reports how often the root finder needed its fallback.
func (c *Converter) FallbackCount() int { return c.finder.FallbackCount() }

// FromLPC returns the formants of one model. The returned slice is reused by
// the next call. Only roots in the upper half plane are used; frequencies
// closer than margin to 0 Hz or the Nyquist frequency are dropped.
func (c *Converter) FromLPC(frame *lpc.Frame, samplingFrequency, margin float64) ([]Resonance, int) {
	c.buf = c.buf[:0]
	if frame.Order == 0 {
		return c.buf, InfoEmptyModel
	}

	frame.ToPolynomial(c.poly)
	if err := c.finder.Find(c.poly, c.roots); err != nil {
		return c.buf, InfoRootsFailed
	}
	c.roots.FixIntoUnitCircle()

	nyquist := 0.5 * samplingFrequency
	maxFormants := MaxNumberOfFormants(frame.Order, margin)
	for _, z := range c.roots.Values() {
		if imag(z) < 0 {
			continue
		}
		f := math.Abs(math.Atan2(imag(z), real(z))) * samplingFrequency / (2 * math.Pi)
		if f < margin || f > nyquist-margin {
			continue
		}
		bw := -math.Log(math.Hypot(real(z), imag(z))) * samplingFrequency / math.Pi
		c.buf = append(c.buf, Resonance{Frequency: f, Bandwidth: bw})
	}
	slices.SortFunc(c.buf, func(a, b Resonance) int { return cmp.Compare(a.Frequency, b.Frequency) })
	if len(c.buf) > maxFormants {
		c.buf = c.buf[:maxFormants]
	}
	return c.buf, InfoOK
}

// Synthesizer is the per-thread state of the formant to LPC conversion.
type Synthesizer struct {
	lpc []float64
}

// NewSynthesizer allocates scratch for up to maxFormants formants.
func NewSynthesizer(maxFormants int) *Synthesizer {
	return &Synthesizer{lpc: make([]float64, 2*maxFormants+2)}
}

// ToLPC builds the all-pole model whose second order sections have the
// given resonances and writes 2*len(formants) coefficients to dst.
// Formants above the Nyquist frequency are skipped; their coefficients stay
// zero.
func (s *Synthesizer) ToLPC(formants []Resonance, samplingPeriod float64, dst []float64) int {
	poles := 2 * len(formants)
	if cap(s.lpc) < poles+2 {
		s.lpc = make([]float64, poles+2)
	}
	// two leading zeros avoid boundary tests; coefficients start at index 2
	buf := s.lpc[:poles+2]
	clear(buf)
	buf[1] = 1

	nyquist := 0.5 / samplingPeriod
	m := 1
	for _, r := range formants {
		if r.Frequency > nyquist {
			continue
		}
		radius := math.Exp(-math.Pi * r.Bandwidth * samplingPeriod)
		p := -2 * radius * math.Cos(2*math.Pi*r.Frequency*samplingPeriod)
		q := radius * radius
		for j := m + 2; j > 1; j-- {
			buf[j] += p*buf[j-1] + q*buf[j-2]
		}
		m += 2
	}
	n := min(poles, len(dst))
	copy(dst[:n], buf[2:2+n])
	return n
}
