package lpc

// Autocorrelation estimates a model with the Levinson-Durbin recursion on
// the biased autocorrelation of x. When the prediction error would become
// non-positive the recursion stops and the last stable model is kept.
func (ws *Workspace) Autocorrelation(x, dst []float64) Result {
	p := ws.order
	n := len(x)
	r, a, rc := ws.r, ws.a, ws.rc

	for i := 0; i <= p; i++ {
		sum := 0.0
		for k := 0; k+i < n; k++ {
			sum += x[k] * x[k+i]
		}
		r[i] = sum
	}
	if r[0] == 0 {
		return Result{Order: 0, Gain: 0, Info: InfoZeroEnergy}
	}

	// a[0] is the implicit leading 1 of A(z)
	clear(a)
	a[0] = 1
	rc[0] = -r[1] / r[0]
	a[1] = rc[0]
	gain := r[0] + r[1]*rc[0]
	info := InfoOK
	if gain <= 0 {
		return Result{Order: 0, Gain: 0, Info: AutoInfoGainNotPositive}
	}

	order := 1
	for i := 2; i <= p; i++ {
		s := 0.0
		for j := 0; j < i; j++ {
			s += r[i-j] * a[j]
		}
		k := -s / gain
		next := gain + k*s
		if next <= 0 {
			info = AutoInfoGainNotPositive
			break
		}
		rc[i-1] = k
		for j := 1; j <= i/2; j++ {
			at := a[j] + k*a[i-j]
			a[i-j] += k * a[j]
			a[j] = at
		}
		a[i] = k
		gain = next
		order = i
	}

	copy(dst[:order], a[1:order+1])
	return Result{Order: order, Gain: gain, Info: info}
}
