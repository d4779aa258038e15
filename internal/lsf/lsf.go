// Package lsf converts linear prediction models to line spectral
// frequencies and back.
//
// A(z) is split into the symmetric sum Fs(z) = A(z) + z^-(p+1) A(1/z) and
// the antisymmetric difference Fa(z) = A(z) - z^-(p+1) A(1/z). After their
// trivial roots at z = -1 and z = 1 are divided out, both are rewritten as
// polynomials in x = 2cos(w) whose real roots in [-2, 2] interlace and give
// the line spectral frequencies.
package lsf

import (
	"math"

	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/polynomial"
	"github.com/tphakala/go-lpc/internal/signal"
)

// DefaultGridSize is the initial root search cell width in the x domain.
const DefaultGridSize = 0.02

const maxGridRefinements = 10

// Frame info codes.
const (
	InfoOK = 0
	// InfoGridExhausted marks frames where the grid was refined the maximum
	// number of times.
	InfoGridExhausted = 1
)

// Frame holds the strictly increasing line spectral frequencies of one
// analysis frame.
type Frame struct {
	Frequencies []float64 `yaml:"frequencies,flow" json:"frequencies"`
	Info        int       `yaml:"info,omitempty" json:"info,omitempty"`
	Valid       bool      `yaml:"valid" json:"valid"`
}

// LSF is a sequence of frames on a regular time grid. MaximumFrequency is
// the Nyquist frequency of the analysed sound.
type LSF struct {
	Sampling         signal.Sampling `yaml:"sampling" json:"sampling"`
	MaxFrequencies   int             `yaml:"max_frequencies" json:"max_frequencies"`
	MaximumFrequency float64         `yaml:"maximum_frequency" json:"maximum_frequency"`
	Frames           []Frame         `yaml:"frames" json:"frames"`

	storage []float64
}

// New allocates a sequence of invalid frames.
func New(grid signal.Sampling, maxFrequencies int, maximumFrequency float64) *LSF {
	return &LSF{
		Sampling:         grid,
		MaxFrequencies:   maxFrequencies,
		MaximumFrequency: maximumFrequency,
		Frames:           make([]Frame, grid.Nx),
		storage:          make([]float64, grid.Nx*maxFrequencies),
	}
}

// Publish copies frequencies into the storage of frame i and replaces the
// slot in a single assignment.
func (l *LSF) Publish(i int, frequencies []float64, info int) {
	if l.storage == nil {
		l.storage = make([]float64, len(l.Frames)*l.MaxFrequencies)
	}
	n := min(len(frequencies), l.MaxFrequencies)
	base := i * l.MaxFrequencies
	dst := l.storage[base : base+n : base+l.MaxFrequencies]
	copy(dst, frequencies[:n])
	l.Frames[i] = Frame{Frequencies: dst, Info: info, Valid: true}
}

// cos2x rewrites a polynomial in cos terms as a polynomial in x = 2cos(w),
// in place.
func cos2x(g []float64) {
	size := len(g)
	for i := 3; i <= size; i++ {
		for j := size; j > i; j-- {
			g[j-3] -= g[j-1]
		}
		g[i-3] -= 2 * g[i-1]
	}
}

// Analyzer is the per-thread state of the forward conversion.
type Analyzer struct {
	gsum, gdif *polynomial.Polynomial
	sumRoots   []float64
	out        []float64
}

// NewAnalyzer allocates scratch for models up to order.
func NewAnalyzer(order int) *Analyzer {
	return &Analyzer{
		gsum:     polynomial.New(-2, 2, order+2),
		gdif:     polynomial.New(-2, 2, order+2),
		sumRoots: make([]float64, (order+2)/2),
		out:      make([]float64, 0, order),
	}
}

// sumPolynomial stores the x = 2cos(w) form of Fs in a.gsum.
func (an *Analyzer) sumPolynomial(f *lpc.Frame) {
	p := f.Order
	g := (p + 1) / 2
	an.gsum.Resize(p + 2)
	c := an.gsum.Coefficients
	c[0] = 1
	c[p+1] = 1
	for i := 1; i <= p; i++ {
		c[p+1-i] = f.A[i-1] + f.A[p-i]
	}
	if p%2 == 0 {
		an.gsum.DivideFirstOrderFactor(-1)
		c = an.gsum.Coefficients
	}
	copy(c, c[g:2*g+1])
	an.gsum.Coefficients = c[:g+1]
	cos2x(an.gsum.Coefficients)
}

// diffPolynomial stores the x = 2cos(w) form of Fa in a.gdif.
func (an *Analyzer) diffPolynomial(f *lpc.Frame) {
	p := f.Order
	an.gdif.Resize(p + 2)
	c := an.gdif.Coefficients
	c[0] = 1
	c[p+1] = -1
	for i := 1; i <= p; i++ {
		c[p+1-i] = -f.A[i-1] + f.A[p-i]
	}
	if p%2 == 0 {
		an.gdif.DivideFirstOrderFactor(1)
	} else {
		an.gdif.DivideSecondOrderFactor(1)
	}
	c = an.gdif.Coefficients
	g := len(c) / 2
	copy(c, c[g:2*g+1])
	an.gdif.Coefficients = c[:g+1]
	cos2x(an.gdif.Coefficients)
}

// FromLPC returns the line spectral frequencies of one model, scaled so that
// the Nyquist frequency maps to maximumFrequency. The returned slice is
// reused by the next call. Roots the search cannot bracket are left out, so
// fewer than Order frequencies may be returned.
func (an *Analyzer) FromLPC(f *lpc.Frame, gridSize, maximumFrequency float64) ([]float64, int) {
	an.out = an.out[:0]
	if f.Order == 0 {
		return an.out, InfoOK
	}
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}

	an.sumPolynomial(f)
	an.diffPolynomial(f)
	halfSum := an.gsum.Degree()
	halfDif := an.gdif.Degree()

	roots := an.sumRoots[:halfSum]
	found, refinements := 0, 0
	for found < halfSum && refinements < maxGridRefinements {
		found = an.gsum.SearchRootsOnGrid(gridSize, roots)
		gridSize *= 0.5
		refinements++
	}
	info := InfoOK
	if refinements >= maxGridRefinements {
		info = InfoGridExhausted
	}
	roots = roots[:found]

	toFrequency := func(x float64) float64 {
		return math.Acos(x/2) / math.Pi * maximumFrequency
	}
	// the highest root in x is the lowest frequency
	for i := 1; i <= found; i++ {
		an.out = append(an.out, toFrequency(roots[found-i]))
		if i > halfDif {
			continue
		}
		xmax := roots[found-i]
		xmin := an.gsum.Xmin
		if i < found {
			xmin = roots[found-i-1]
		} else if found < halfSum {
			// the bracket below the last found root is unknown
			continue
		}
		if root, ok := an.gdif.FindRootRidders(xmin, xmax); ok {
			an.out = append(an.out, toFrequency(root))
		}
	}
	return an.out, info
}

// Synthesizer is the per-thread state of the inverse conversion.
type Synthesizer struct {
	fs, fa *polynomial.Polynomial
	x      []float64
}

// NewSynthesizer allocates scratch for up to maxFrequencies frequencies.
func NewSynthesizer(maxFrequencies int) *Synthesizer {
	return &Synthesizer{
		fs: polynomial.New(-1, 1, maxFrequencies+3),
		fa: polynomial.New(-1, 1, maxFrequencies+3),
		x:  make([]float64, (maxFrequencies+1)/2),
	}
}

// ToLPC rebuilds the model of order len(frequencies) and writes its
// coefficients to dst.
func (s *Synthesizer) ToLPC(frequencies []float64, maximumFrequency float64, dst []float64) int {
	n := len(frequencies)
	if n == 0 {
		return 0
	}
	if cap(s.x) < (n+1)/2 {
		s.x = make([]float64, (n+1)/2)
	}

	x := s.x[:0]
	for i := 0; i < n; i += 2 {
		x = append(x, -2*math.Cos(frequencies[i]/maximumFrequency*math.Pi))
	}
	s.fs.InitFromProductOfSecondOrderTerms(x)

	x = s.x[:0]
	for i := 1; i < n; i += 2 {
		x = append(x, -2*math.Cos(frequencies[i]/maximumFrequency*math.Pi))
	}
	s.fa.InitFromProductOfSecondOrderTerms(x)

	if n%2 == 0 {
		s.fs.MultiplyFirstOrderFactor(-1)
		s.fa.MultiplyFirstOrderFactor(1)
	} else {
		s.fa.MultiplySecondOrderFactor(1)
	}

	// A(z) = (Fs(z) + Fa(z)) / 2
	fs, fa := s.fs.Coefficients, s.fa.Coefficients
	for i := 1; i <= n; i++ {
		dst[n-i] = 0.5 * (fs[i] + fa[i])
	}
	return n
}
