package clockalign

import (
	"math"
	"testing"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
)

var testBase = time.Date(2016, time.September, 1, 0, 0, 0, 0, time.UTC)

// hourlyInstrument builds an hourly temperature record starting at testBase.
func hourlyInstrument(serial string, n int, fn func(i int) float64) *types.InstrumentSeries {
	s := &types.InstrumentSeries{
		Mooring: "wb4",
		Serial:  serial,
		Type:    types.InstrumentMicrocat,
	}
	s.Times = make([]time.Time, n)
	s.Temperature = make([]float64, n)
	for i := 0; i < n; i++ {
		s.Times[i] = testBase.Add(time.Duration(i) * time.Hour)
		s.Temperature[i] = fn(i)
	}
	return s
}

// diurnal is a clean 24-hour temperature cycle.
func diurnal(i int) float64 {
	return 10 + 2*math.Sin(2*math.Pi*float64(i)/24)
}

func TestEstimateLagShiftedCopy(t *testing.T) {
	ref := hourlyInstrument("9062", 240, diurnal)
	target := ref.Shifted(3600)
	target.Serial = "9063"

	t.Run("full resolution", func(t *testing.T) {
		p := DefaultLagParams()
		p.Subsample = 1
		res := EstimateLag(ref, target, p, nil)
		if !res.OK {
			t.Fatal("expected a lag estimate")
		}
		if math.Abs(res.LagSeconds-(-3600)) > 1e-9 {
			t.Errorf("LagSeconds = %v, want -3600", res.LagSeconds)
		}
		if res.Correlation < 0.99 {
			t.Errorf("Correlation = %v, want > 0.99", res.Correlation)
		}
	})

	t.Run("subsampled", func(t *testing.T) {
		res := EstimateLag(ref, target, DefaultLagParams(), nil)
		if !res.OK {
			t.Fatal("expected a lag estimate")
		}
		// At the default stride the comparison interval is 5 hours, so a
		// one-hour shift can only be resolved to within one interval.
		dt := 5 * 3600.0
		if math.Abs(res.LagSeconds-(-3600)) > dt {
			t.Errorf("LagSeconds = %v, want within %v of -3600", res.LagSeconds, dt)
		}
	})
}

func TestEstimateLagSymmetry(t *testing.T) {
	a := hourlyInstrument("9062", 240, diurnal)
	b := a.Shifted(3600)
	b.Serial = "9063"

	p := DefaultLagParams()
	p.Subsample = 1
	forward := EstimateLag(a, b, p, nil)
	reverse := EstimateLag(b, a, p, nil)
	if !forward.OK || !reverse.OK {
		t.Fatal("expected estimates in both directions")
	}
	if math.Abs(forward.LagSeconds+reverse.LagSeconds) > 1e-9 {
		t.Errorf("forward lag %v and reverse lag %v are not negations", forward.LagSeconds, reverse.LagSeconds)
	}
}

func TestEstimateLagAlignedCopy(t *testing.T) {
	a := hourlyInstrument("9062", 240, diurnal)
	b := a.Clone()
	b.Serial = "9063"

	res := EstimateLag(a, b, DefaultLagParams(), nil)
	if !res.OK {
		t.Fatal("expected a lag estimate")
	}
	if res.LagSamples != 0 {
		t.Errorf("LagSamples = %d, want 0", res.LagSamples)
	}
	if res.Correlation < 0.999 {
		t.Errorf("Correlation = %v, want ~1", res.Correlation)
	}
}

func TestEstimateLagDegenerate(t *testing.T) {
	base := hourlyInstrument("9062", 240, diurnal)

	t.Run("disjoint records", func(t *testing.T) {
		late := hourlyInstrument("9063", 240, diurnal)
		for i := range late.Times {
			late.Times[i] = late.Times[i].Add(300 * 24 * time.Hour)
		}
		if res := EstimateLag(base, late, DefaultLagParams(), nil); res.OK {
			t.Error("expected no estimate for disjoint records")
		}
	})

	t.Run("overlap too short", func(t *testing.T) {
		late := hourlyInstrument("9063", 240, diurnal)
		for i := range late.Times {
			late.Times[i] = late.Times[i].Add(236 * time.Hour)
		}
		p := DefaultLagParams()
		p.Subsample = 1
		if res := EstimateLag(base, late, p, nil); res.OK {
			t.Error("expected no estimate from a four-sample overlap")
		}
	})

	t.Run("missing variable", func(t *testing.T) {
		bare := hourlyInstrument("9063", 240, diurnal)
		bare.Temperature = nil
		if res := EstimateLag(base, bare, DefaultLagParams(), nil); res.OK {
			t.Error("expected no estimate without the proxy variable")
		}
	})

	t.Run("single sample", func(t *testing.T) {
		one := hourlyInstrument("9063", 1, diurnal)
		if res := EstimateLag(base, one, DefaultLagParams(), nil); res.OK {
			t.Error("expected no estimate from a single sample")
		}
	})
}
