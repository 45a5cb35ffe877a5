package filter

import (
	"fmt"
	"math"
)

// biquad is one second-order filter section in direct form II transposed,
// normalized so a0 = 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// lowpassSOS designs a digital Butterworth low-pass filter of the given order
// as a cascade of second-order sections. wn is the cutoff frequency as a
// fraction of the Nyquist frequency and must lie strictly inside (0, 1).
// Analog prototype poles are frequency-warped and mapped through the bilinear
// transform; every zero lands at z = -1 and each section is scaled to unit DC
// gain, which fixes the overall passband gain at exactly 1.
func lowpassSOS(order int, wn float64) ([]biquad, error) {
	if order < 1 {
		return nil, fmt.Errorf("filter order %d, want >= 1", order)
	}
	if wn <= 0 || wn >= 1 {
		return nil, fmt.Errorf("normalized cutoff %g outside (0, 1)", wn)
	}

	warped := 4 * math.Tan(math.Pi*wn/2)
	sections := make([]biquad, 0, (order+1)/2)
	for k := 1; k <= order/2; k++ {
		theta := math.Pi * float64(2*k+order-1) / float64(2*order)
		p := complex(warped*math.Cos(theta), warped*math.Sin(theta))
		z := (4 + p) / (4 - p)
		a1 := -2 * real(z)
		a2 := real(z)*real(z) + imag(z)*imag(z)
		g := (1 + a1 + a2) / 4
		sections = append(sections, biquad{b0: g, b1: 2 * g, b2: g, a1: a1, a2: a2})
	}
	if order%2 == 1 {
		zr := (4 - warped) / (4 + warped)
		g := (1 - zr) / 2
		sections = append(sections, biquad{b0: g, b1: g, a1: -zr})
	}
	return sections, nil
}

// padLen is the reflection padding required for a stable forward-backward
// start, three times the filter's effective impulse-response head.
func padLen(sections []biquad) int {
	return 3 * (2*len(sections) + 1)
}

// steadyState returns each section's internal state for a unit-amplitude
// constant input, so the filter starts settled rather than ringing in from
// zero. Sections have unit DC gain, which keeps the scale identical across
// the cascade.
func steadyState(sections []biquad) [][2]float64 {
	zi := make([][2]float64, len(sections))
	for i, s := range sections {
		yss := (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
		z2 := s.b2 - s.a2*yss
		z1 := s.b1 - s.a1*yss + z2
		zi[i] = [2]float64{z1, z2}
	}
	return zi
}

// sosPass runs the cascade over x once, in place, with initial states scaled
// to x[0].
func sosPass(sections []biquad, zi [][2]float64, x []float64) {
	x0 := x[0]
	for si, s := range sections {
		z1 := zi[si][0] * x0
		z2 := zi[si][1] * x0
		for i, in := range x {
			out := s.b0*in + z1
			z1 = s.b1*in - s.a1*out + z2
			z2 = s.b2*in - s.a2*out
			x[i] = out
		}
	}
}

// sosFiltFilt applies the cascade forward and backward over x with
// odd-reflection padding, cancelling phase distortion. The input must be
// longer than padLen(sections); the result has the same length as x.
func sosFiltFilt(sections []biquad, x []float64) []float64 {
	n := len(x)
	pad := padLen(sections)
	ext := oddExt(x, pad)
	zi := steadyState(sections)

	sosPass(sections, zi, ext)
	reverse(ext)
	sosPass(sections, zi, ext)
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}

// oddExt extends x by pad samples on each side, reflecting through the end
// values so the extension is continuous in value and slope.
func oddExt(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, pad+n+pad)
	for i := 0; i < pad; i++ {
		ext[i] = 2*x[0] - x[pad-i]
	}
	copy(ext[pad:], x)
	for i := 0; i < pad; i++ {
		ext[pad+n+i] = 2*x[n-1] - x[n-2-i]
	}
	return ext
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
