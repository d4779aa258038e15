package lpc

// Covariance estimates a model from the un-normalised covariance of x over
// the samples that have a full prediction history. The normal equations are
// solved order by order with a packed lower triangular factor.
//
// Buffers in this function are 1-based to keep the packed row offsets
// j(j-1)/2 readable; index 0 is unused.
func (ws *Workspace) Covariance(x, dst []float64) Result {
	p := ws.order
	n := len(x)
	a, b, grc, beta, cc := ws.ca, ws.cb, ws.cgrc, ws.cbeta, ws.ccc
	xx := func(k int) float64 { return x[k-1] }

	gain := 0.0
	cc[1], cc[2] = 0, 0
	for k := p + 1; k <= n; k++ {
		gain += xx(k) * xx(k)
		cc[1] += xx(k) * xx(k-1)
		cc[2] += xx(k-1) * xx(k-1)
	}
	if gain == 0 {
		return Result{Order: 0, Gain: 0, Info: InfoZeroEnergy}
	}
	if cc[2] <= 0 {
		return Result{Order: 0, Gain: 0, Info: CovarInfoBetaNotPositive}
	}

	clear(b)
	clear(a)
	b[1] = 1
	beta[1] = cc[2]
	a[1] = 1
	grc[1] = -cc[1] / cc[2]
	a[2] = grc[1]
	gain += grc[1] * cc[1]
	if gain <= 0 {
		return Result{Order: 0, Gain: 0, Info: CovarInfoGainNotPositive}
	}

	info := InfoOK
	i := 2
stages:
	for ; i <= p; i++ {
		for j := 1; j <= i; j++ {
			cc[i-j+2] = cc[i-j+1] + xx(p-i+1)*xx(p-i+j) - xx(n-i+1)*xx(n-i+j)
		}
		cc[1] = 0
		for k := 0; p+1+k <= n; k++ {
			cc[1] += xx(p+1-i+k) * xx(p+1+k)
		}

		row := i * (i - 1) / 2
		b[row+i] = 1
		for j := 1; j <= i-1; j++ {
			if beta[j] < 0 {
				info = CovarInfoNegativeBeta
				break stages
			} else if beta[j] == 0 {
				continue
			}
			rowj := j * (j - 1) / 2
			gam := 0.0
			for k := 1; k <= j; k++ {
				gam += cc[k+1] * b[rowj+k]
			}
			gam /= beta[j]
			for k := 1; k <= j; k++ {
				b[row+k] -= gam * b[rowj+k]
			}
		}

		beta[i] = 0
		for j := 1; j <= i; j++ {
			beta[i] += cc[j+1] * b[row+j]
		}
		if beta[i] <= 0 {
			info = CovarInfoBetaNotPositive
			break
		}

		s := 0.0
		for j := 1; j <= i; j++ {
			s += cc[j] * a[j]
		}
		grc[i] = -s / beta[i]
		next := gain - grc[i]*grc[i]*beta[i]
		if next <= 0 {
			info = CovarInfoGainNotPositive
			break
		}

		for j := 2; j <= i; j++ {
			a[j] += grc[i] * b[row+j-1]
		}
		a[i+1] = grc[i]
		gain = next
	}

	order := i - 1
	copy(dst[:order], a[2:order+2])
	return Result{Order: order, Gain: gain, Info: info}
}
