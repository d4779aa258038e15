package lpc

// Burg estimates a model from the forward and backward prediction errors
// of x. The returned gain is the residual energy of the last stage.
func (ws *Workspace) Burg(x, dst []float64) Result {
	p := ws.order
	n := len(x)

	if n <= 2 {
		gain := 0.0
		switch n {
		case 2:
			gain = 0.5 * (x[0]*x[0] + x[1]*x[1])
		case 1:
			gain = x[0] * x[0]
		}
		dst[0] = -1
		return Result{Order: 1, Gain: gain}
	}

	gain := 0.0
	for _, v := range x {
		gain += v * v
	}
	if gain == 0 {
		return Result{Order: 0, Gain: 0, Info: InfoZeroEnergy}
	}

	a := dst[:p]
	aa, b1, b2 := ws.aa, ws.b1, ws.b2
	clear(aa)
	clear(a)
	copy(b1[:n-1], x[:n-1])
	copy(b2[:n-1], x[1:n])

	for i := 1; i <= p; i++ {
		m := n - i
		if m <= 0 {
			return Result{Order: 0, Gain: 0, Info: InfoZeroEnergy}
		}
		num, den := 0.0, 0.0
		for j := range m {
			num += b1[j] * b2[j]
			den += b1[j]*b1[j] + b2[j]*b2[j]
		}
		if den <= 0 {
			// part of the frame is silent
			return Result{Order: 0, Gain: 0, Info: InfoZeroEnergy}
		}

		ki := 2 * num / den
		a[i-1] = ki
		gain *= 1 - ki*ki
		for j := 1; j < i; j++ {
			a[j-1] = aa[j-1] - ki*aa[i-j-1]
		}

		if i < p {
			copy(aa[:i], a[:i])
			for j := 0; j < m-1; j++ {
				b1[j] -= aa[i-1] * b2[j]
				b2[j] = b2[j+1] - aa[i-1]*b1[j+1]
			}
		}
	}

	for j := range a {
		a[j] = -a[j]
	}
	return Result{Order: p, Gain: gain}
}
