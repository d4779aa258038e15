package lpc

import "math"

// Marple estimates a model with Marple's fast least squares algorithm. The
// recursion stops early when the prediction error drops below Tol1 times
// the frame energy or improves by less than a fraction Tol2 per order.
//
// Ill conditioning and reflection coefficients of magnitude one or more end
// the recursion and discard the last completed order.
func (ws *Workspace) Marple(x, dst []float64) Result {
	mmax := ws.order
	n := len(x)
	c, d, r, a := ws.mc, ws.md, ws.mr, ws.ma
	xx := func(k int) float64 { return x[k-1] }

	e0 := 0.0
	for _, v := range x {
		e0 += v * v
	}
	e0 *= 2
	if e0 == 0 {
		return Result{Order: 0, Gain: 0, Info: InfoZeroEnergy}
	}

	clear(c)
	clear(d)
	clear(r)
	clear(a)

	q1 := 1 / e0
	q2 := q1 * xx(1)
	q := q1 * xx(1) * xx(1)
	w := q1 * xx(n) * xx(n)
	v, u := q, w
	den := 1 - q - w
	q4, q5, q6 := 1/den, 1-q, 1-w
	h := q2 * xx(n)
	s := h
	gain := e0 * den
	q1 = 1 / gain
	c[1] = q1 * xx(1)
	d[1] = q1 * xx(n)
	s1 := 0.0
	for k := 1; k <= n-1; k++ {
		s1 += xx(k+1) * xx(k)
	}
	r[1] = 2 * s1
	a[1] = -q1 * r[1]
	gain *= 1 - a[1]*a[1]
	if gain <= 0 {
		return Result{Order: 0, Gain: 0, Info: MarpleInfoReflection}
	}

	info := InfoOK
	m := 1
	for m < mmax {
		eOld := gain
		f, b := xx(m+1), xx(n-m)
		for k := 1; k <= m; k++ {
			f += xx(m+1-k) * a[k]
			b += xx(n-m+k) * a[k]
		}
		q1 = 1 / gain
		q2 = q1 * f
		q3 := q1 * b
		for k := m; k >= 1; k-- {
			c[k+1] = c[k] + q2*a[k]
			d[k+1] = d[k] + q3*a[k]
		}
		c[1] = q2
		d[1] = q3
		q7 := s * s
		y1 := f * f
		y2 := v * v
		y3 := b * b
		y4 := u * u
		y5 := 2 * h * s
		q += y1*q1 + q4*(y2*q6+q7*q5+v*y5)
		w += y3*q1 + q4*(y4*q5+q7*q6+u*y5)
		h, s, u, v = 0, 0, 0, 0
		for k := 0; k <= m; k++ {
			h += xx(n-m+k) * c[k+1]
			s += xx(n-k) * c[k+1]
			u += xx(n-k) * d[k+1]
			v += xx(k+1) * c[k+1]
		}
		q5 = 1 - q
		q6 = 1 - w
		den = q5*q6 - h*h
		if den <= 0 {
			info = MarpleInfoIllConditioned
			break
		}
		q4 = 1 / den
		q1 *= q4
		alf := 1 / (1 + q1*(y1*q6+y3*q5+2*h*f*b))
		if alf <= 0 || math.IsInf(alf, 0) {
			info = MarpleInfoIllConditioned
			break
		}
		gain *= alf
		y5 = h * s
		c1 := q4 * (f*q6 + b*h)
		c2 := q4 * (b*q5 + h*f)
		c3 := q4 * (v*q6 + y5)
		c4 := q4 * (s*q5 + v*h)
		c5 := q4 * (s*q6 + h*u)
		c6 := q4 * (u*q5 + y5)
		for k := 1; k <= m; k++ {
			a[k] = alf * (a[k] + c1*c[k+1] + c2*d[k+1])
		}
		for k := 1; k <= m/2+1; k++ {
			s1 = c[k]
			s2, s3, s4 := d[k], c[m+2-k], d[m+2-k]
			c[k] += c3*s3 + c4*s4
			d[k] += c5*s3 + c6*s4
			if m+2-k == k {
				continue
			}
			c[m+2-k] += c3*s1 + c4*s2
			d[m+2-k] += c5*s1 + c6*s2
		}

		m++
		c1 = xx(n + 1 - m)
		c2 = xx(m)
		delta := 0.0
		for k := m - 1; k >= 1; k-- {
			r[k+1] = r[k] - xx(n+1-k)*c1 - xx(k)*c2
			delta += r[k+1] * a[k]
		}
		s1 = 0
		for k := 1; k <= n-m; k++ {
			s1 += xx(k+m) * xx(k)
		}
		r[1] = 2 * s1
		delta += r[1]
		q2 = -delta / gain
		a[m] = q2
		for k := 1; k <= m/2; k++ {
			s1 = a[k]
			a[k] += q2 * a[m-k]
			if k == m-k {
				continue
			}
			a[m-k] += q2 * s1
		}
		y1 = q2 * q2
		if y1 >= 1 {
			info = MarpleInfoReflection
			gain = eOld
			break
		}
		gain *= 1 - y1
		if gain < e0*ws.Tol1 {
			info = MarpleInfoErrorFloor
			break
		}
		if eOld-gain < eOld*ws.Tol2 {
			info = MarpleInfoSmallImprovement
			break
		}
	}

	order := m
	if info == MarpleInfoIllConditioned || info == MarpleInfoReflection {
		order = m - 1
	}
	copy(dst[:order], a[1:order+1])
	// e0 is twice the frame energy
	return Result{Order: order, Gain: 0.5 * gain, Info: info}
}
