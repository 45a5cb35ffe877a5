package filter

import (
	"math"
	"math/cmplx"
	"testing"
)

// magnitudeAt evaluates the cascade's gain at a frequency given as a
// fraction of Nyquist.
func magnitudeAt(sections []biquad, v float64) float64 {
	zinv := cmplx.Exp(complex(0, -math.Pi*v))
	h := complex(1, 0)
	for _, s := range sections {
		num := complex(s.b0, 0) + complex(s.b1, 0)*zinv + complex(s.b2, 0)*zinv*zinv
		den := complex(1, 0) + complex(s.a1, 0)*zinv + complex(s.a2, 0)*zinv*zinv
		h *= num / den
	}
	return cmplx.Abs(h)
}

func TestLowpassSOSSections(t *testing.T) {
	tests := []struct {
		name  string
		order int
		wn    float64
		nsec  int
	}{
		{"order 6 low cutoff", 6, 1.0 / 24, 3},
		{"order 6 mid cutoff", 6, 0.2, 3},
		{"order 6 high cutoff", 6, 0.9, 3},
		{"order 5 odd", 5, 0.1, 3},
		{"order 2", 2, 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections, err := lowpassSOS(tt.order, tt.wn)
			if err != nil {
				t.Fatal(err)
			}
			if len(sections) != tt.nsec {
				t.Fatalf("got %d sections, want %d", len(sections), tt.nsec)
			}
			for i, s := range sections {
				// Stability triangle for a real second-order denominator.
				if math.Abs(s.a2) >= 1 || math.Abs(s.a1) >= 1+s.a2 {
					t.Errorf("section %d unstable: a1=%v a2=%v", i, s.a1, s.a2)
				}
				dc := (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
				if math.Abs(dc-1) > 1e-9 {
					t.Errorf("section %d DC gain = %v, want 1", i, dc)
				}
			}
		})
	}
}

func TestLowpassSOSResponse(t *testing.T) {
	wn := 1.0 / 24
	sections, err := lowpassSOS(6, wn)
	if err != nil {
		t.Fatal(err)
	}
	if dc := magnitudeAt(sections, 0); math.Abs(dc-1) > 1e-9 {
		t.Errorf("DC gain = %v, want 1", dc)
	}
	// The prewarped design puts exactly -3 dB at the cutoff.
	if mag := magnitudeAt(sections, wn); math.Abs(mag-1/math.Sqrt2) > 1e-6 {
		t.Errorf("gain at cutoff = %v, want %v", mag, 1/math.Sqrt2)
	}
	if mag := magnitudeAt(sections, 4*wn); mag > 1e-3 {
		t.Errorf("gain two octaves up = %v, want < 1e-3", mag)
	}
}

func TestLowpassSOSErrors(t *testing.T) {
	tests := []struct {
		name  string
		order int
		wn    float64
	}{
		{"zero order", 0, 0.5},
		{"zero cutoff", 6, 0},
		{"cutoff at Nyquist", 6, 1},
		{"cutoff beyond Nyquist", 6, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := lowpassSOS(tt.order, tt.wn); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSOSFiltFiltConstant(t *testing.T) {
	sections, err := lowpassSOS(6, 1.0/24)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 400)
	for i := range x {
		x[i] = 7.25
	}
	out := sosFiltFilt(sections, x)
	for i, v := range out {
		if math.Abs(v-7.25) > 1e-9 {
			t.Fatalf("out[%d] = %v, want 7.25", i, v)
		}
	}
}

func TestSOSFiltFiltSymmetric(t *testing.T) {
	sections, err := lowpassSOS(6, 1.0/24)
	if err != nil {
		t.Fatal(err)
	}
	// A symmetric pulse through a zero-phase filter stays symmetric.
	n := 301
	x := make([]float64, n)
	for i := range x {
		d := float64(i-150) / 20
		x[i] = math.Exp(-d * d)
	}
	out := sosFiltFilt(sections, x)
	for i := 0; i < n/2; i++ {
		if math.Abs(out[i]-out[n-1-i]) > 1e-6 {
			t.Fatalf("out[%d]=%v and out[%d]=%v are not symmetric", i, out[i], n-1-i, out[n-1-i])
		}
	}
}
