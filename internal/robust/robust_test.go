package robust

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lpc/internal/lpc"
)

func TestHuberOnNormalSample(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	x := make([]float64, 5000)
	for i := range x {
		x[i] = 2 + 0.5*rng.NormFloat64()
	}
	// a few wild outliers barely move the estimates
	for i := range 50 {
		x[i] = 1000
	}

	work := make([]float64, len(x))
	loc, scale := Huber(x, work, 0, 0, HuberOptions{
		K: 1.5, WantLocation: true, WantScale: true, Tol: 1e-6, MaxIterations: 20,
	})
	assert.InDelta(t, 2, loc, 0.05)
	assert.InDelta(t, 0.5, scale, 0.05)
}

func TestHuberKeepsFixedLocation(t *testing.T) {
	t.Parallel()

	x := []float64{1, 2, 3, 4, 100}
	work := make([]float64, len(x))
	loc, _ := Huber(x, work, 0.25, 0, HuberOptions{K: 1.5, WantScale: true, Tol: 1e-6, MaxIterations: 5})
	assert.InDelta(t, 0.25, loc, 0)

	med, mad := medianAndMAD([]float64{5, 1, 3}, make([]float64, 3))
	assert.InDelta(t, 3, med, 0)
	assert.InDelta(t, 2*madToSigma, mad, 1e-12)
}

func TestNormalHelpers(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, normalCDF(0), 1e-15)
	assert.InDelta(t, 0.9331927987311419, normalCDF(1.5), 1e-12)
	assert.InDelta(t, 0.3989422804014327, normalPDF(0), 1e-15)
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultParams().Validate())
	bad := DefaultParams()
	bad.IterMax = 0
	require.Error(t, bad.Validate())

	_, err := NewWorkspace(10, 10, DefaultParams())
	require.Error(t, err)
}

// arWithOutliers returns an AR(2) frame with sparse impulsive noise and the
// true coefficients.
func arWithOutliers(n int) ([]float64, []float64) {
	const r, theta = 0.95, 0.4
	a := []float64{-2 * r * math.Cos(theta), r * r}
	rng := rand.New(rand.NewPCG(21, 22))
	x := make([]float64, n)
	for k := range x {
		e := 0.1 * rng.NormFloat64()
		if k%97 == 50 {
			e += 20
		}
		v := e
		if k >= 1 {
			v -= a[0] * x[k-1]
		}
		if k >= 2 {
			v -= a[1] * x[k-2]
		}
		x[k] = v
	}
	return x, a
}

func TestRefineWithImpulsiveExcitation(t *testing.T) {
	t.Parallel()

	x, want := arWithOutliers(2000)
	est, err := lpc.NewWorkspace(2, len(x))
	require.NoError(t, err)
	start := make([]float64, 2)
	res := est.Autocorrelation(x, start)
	require.Equal(t, 2, res.Order)

	ws, err := NewWorkspace(2, len(x), DefaultParams())
	require.NoError(t, err)
	dst := make([]float64, 2)
	in := lpc.Frame{Order: 2, A: start, Gain: res.Gain, Valid: true}
	out := ws.Refine(x, in, dst)

	assert.Equal(t, 2, out.Order)
	assert.InDelta(t, res.Gain, out.Gain, 0)
	assert.NotEqual(t, lpc.RobustInfoSolveFailed, out.Info)
	assert.GreaterOrEqual(t, ws.Iterations, 1)
	assert.LessOrEqual(t, ws.Iterations, DefaultParams().IterMax)
	assert.InDeltaSlice(t, want, dst, 0.05)
	assert.Greater(t, ws.Scale, 0.0)
}

func TestRefineKeepsEmptyAndUnsolvableFrames(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(4, 64, DefaultParams())
	require.NoError(t, err)
	dst := make([]float64, 4)

	out := ws.Refine(make([]float64, 64), lpc.Frame{Info: lpc.InfoZeroEnergy, Valid: true}, dst)
	assert.Equal(t, 0, out.Order)
	assert.Equal(t, lpc.InfoZeroEnergy, out.Info)

	// silence makes the weighted covariance zero
	in := lpc.Frame{Order: 2, A: []float64{-0.5, 0.1}, Gain: 3, Valid: true}
	out = ws.Refine(make([]float64, 64), in, dst)
	assert.Equal(t, lpc.RobustInfoSolveFailed, out.Info)
	assert.Equal(t, []float64{-0.5, 0.1}, dst[:2])
	assert.InDelta(t, 3, out.Gain, 0)
}
