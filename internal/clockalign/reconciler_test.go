package clockalign

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
)

// mooringSet wraps instruments into a named set.
func mooringSet(instruments ...*types.InstrumentSeries) *types.MooringInstrumentSet {
	return &types.MooringInstrumentSet{Name: "wb4", Instruments: instruments}
}

// metaInstrument builds a series carrying only identity and depth, for tests
// that never touch sample data.
func metaInstrument(serial string, depth float64) *types.InstrumentSeries {
	return &types.InstrumentSeries{Mooring: "wb4", Serial: serial, Type: types.InstrumentMicrocat, NominalDepth: depth}
}

func highWindow(serial string, start, end time.Time) types.DeploymentWindow {
	return types.DeploymentWindow{Serial: serial, Start: start, End: end, Confidence: types.ConfidenceHigh}
}

func TestReconcileAlignedInstruments(t *testing.T) {
	start := testBase.Add(48 * time.Hour)
	end := start.Add(720 * time.Hour)
	set := mooringSet(
		metaInstrument("9062", 100),
		metaInstrument("9063", 800),
		metaInstrument("9064", 2000),
	)
	windows := []types.DeploymentWindow{
		highWindow("9062", start, end),
		highWindow("9063", start, end),
		highWindow("9064", start, end),
	}

	report := NewReconciler(DefaultReconcilerParams(), nil).Reconcile(set, windows)

	if report.NoConsensus {
		t.Fatal("unexpected NoConsensus for identical windows")
	}
	if report.ConsensusSize != 3 {
		t.Errorf("ConsensusSize = %d, want 3", report.ConsensusSize)
	}
	if !report.ConsensusStart.Equal(start) || !report.ConsensusEnd.Equal(end) {
		t.Errorf("consensus bounds = [%v, %v], want [%v, %v]",
			report.ConsensusStart, report.ConsensusEnd, start, end)
	}
	for _, serial := range []string{"9062", "9063", "9064"} {
		rec := report.Recommendation(serial)
		if rec == nil {
			t.Fatalf("no recommendation for %s", serial)
		}
		if rec.OffsetSeconds != 0 {
			t.Errorf("instrument %s: OffsetSeconds = %v, want 0", serial, rec.OffsetSeconds)
		}
		if rec.Source != types.OffsetSourceConsensus {
			t.Errorf("instrument %s: Source = %v, want consensus", serial, rec.Source)
		}
	}
	if report.SuggestedReference != "9062" {
		t.Errorf("SuggestedReference = %q, want 9062", report.SuggestedReference)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", report.Warnings)
	}
}

func TestReconcileOutlierInstrument(t *testing.T) {
	start := testBase.Add(48 * time.Hour)
	end := start.Add(720 * time.Hour)
	set := mooringSet(
		metaInstrument("9062", 100),
		metaInstrument("9063", 800),
		metaInstrument("9064", 2000),
	)
	windows := []types.DeploymentWindow{
		highWindow("9062", start, end),
		highWindow("9063", start.Add(30*time.Minute), end.Add(30*time.Minute)),
		highWindow("9064", start.Add(4*time.Hour), end.Add(4*time.Hour)),
	}

	report := NewReconciler(DefaultReconcilerParams(), nil).Reconcile(set, windows)

	if report.ConsensusSize != 2 {
		t.Fatalf("ConsensusSize = %d, want 2", report.ConsensusSize)
	}
	if !report.ConsensusStart.Equal(start) {
		t.Errorf("ConsensusStart = %v, want %v", report.ConsensusStart, start)
	}
	if !report.ConsensusEnd.Equal(end.Add(30 * time.Minute)) {
		t.Errorf("ConsensusEnd = %v, want %v", report.ConsensusEnd, end.Add(30*time.Minute))
	}

	for _, serial := range []string{"9062", "9063"} {
		rec := report.Recommendation(serial)
		if rec.OffsetSeconds != 0 {
			t.Errorf("consensus member %s: OffsetSeconds = %v, want 0", serial, rec.OffsetSeconds)
		}
	}

	outlier := report.Recommendation("9064")
	if outlier == nil {
		t.Fatal("no recommendation for 9064")
	}
	// Starts 14400 s late, ends 12600 s after the consensus end.
	if math.Abs(outlier.StartOffset-14400) > 1e-6 {
		t.Errorf("StartOffset = %v, want 14400", outlier.StartOffset)
	}
	if math.Abs(outlier.AvgOffset-13500) > 1e-6 {
		t.Errorf("AvgOffset = %v, want 13500", outlier.AvgOffset)
	}
	if math.Abs(outlier.OffsetSeconds-(-13500)) > 1e-6 {
		t.Errorf("OffsetSeconds = %v, want -13500", outlier.OffsetSeconds)
	}
	if outlier.Source != types.OffsetSourceConsensus {
		t.Errorf("Source = %v, want consensus", outlier.Source)
	}

	// 9062's window ends 1800 s before the consensus end, so its boundary
	// discrepancies imply an apparent drift of -60 s/day over 30 days.
	if first := report.Recommendation("9062"); math.Abs(first.DriftRate-(-60)) > 1e-6 {
		t.Errorf("DriftRate = %v, want -60", first.DriftRate)
	}

	if report.SuggestedReference != "9062" {
		t.Errorf("SuggestedReference = %q, want 9062", report.SuggestedReference)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "9064") {
		t.Errorf("Warnings = %v, want one mentioning 9064", report.Warnings)
	}
}

func TestReconcileLagFallback(t *testing.T) {
	deep := hourlyInstrument("9062", 240, diurnal)
	deep.NominalDepth = 2000
	deep.Pressure = make([]float64, deep.Len())
	for i := range deep.Pressure {
		deep.Pressure[i] = 2010 + 0.5*math.Sin(float64(i)/10)
	}

	mid := hourlyInstrument("9063", 240, func(i int) float64 { return 8 + 0.5*math.Cos(float64(i)/7) })
	mid.NominalDepth = 800

	// The drifting instrument records the deep signal with its clock fast
	// by one hour.
	drifter := deep.Shifted(3600)
	drifter.Serial = "9064"
	drifter.NominalDepth = 1200
	drifter.Pressure = nil

	set := mooringSet(deep, mid, drifter)
	start := testBase.Add(10 * time.Hour)
	end := testBase.Add(230 * time.Hour)
	windows := []types.DeploymentWindow{
		highWindow("9062", start, end),
		highWindow("9063", start, end),
		{Serial: "9064", Start: drifter.Times[0], End: drifter.Times[drifter.Len()-1], Confidence: types.ConfidenceLow},
	}

	params := DefaultReconcilerParams()
	params.Lag.Subsample = 1
	report := NewReconciler(params, nil).Reconcile(set, windows)

	if report.ReferenceSerial != "9062" {
		t.Errorf("ReferenceSerial = %q, want pressure-bearing 9062", report.ReferenceSerial)
	}
	rec := report.Recommendation("9064")
	if rec == nil {
		t.Fatal("no recommendation for 9064")
	}
	if rec.Source != types.OffsetSourceLagCorrelation {
		t.Fatalf("Source = %v, want lag_correlation", rec.Source)
	}
	if math.Abs(rec.OffsetSeconds-(-3600)) > 1e-6 {
		t.Errorf("OffsetSeconds = %v, want -3600", rec.OffsetSeconds)
	}
}

func TestReconcileNoConsensus(t *testing.T) {
	start := testBase.Add(48 * time.Hour)
	end := start.Add(720 * time.Hour)
	set := mooringSet(metaInstrument("9062", 100), metaInstrument("9063", 800))
	windows := []types.DeploymentWindow{
		highWindow("9062", start, end),
		highWindow("9063", start.Add(12*time.Hour), end.Add(12*time.Hour)),
	}

	report := NewReconciler(DefaultReconcilerParams(), nil).Reconcile(set, windows)

	if !report.NoConsensus {
		t.Fatal("expected NoConsensus for starts 12 h apart")
	}
	for _, serial := range []string{"9062", "9063"} {
		rec := report.Recommendation(serial)
		if rec == nil {
			t.Fatalf("no recommendation for %s", serial)
		}
		if rec.OffsetSeconds != 0 {
			t.Errorf("instrument %s: OffsetSeconds = %v, want 0", serial, rec.OffsetSeconds)
		}
		if rec.Source != types.OffsetSourceNone {
			t.Errorf("instrument %s: Source = %v, want none", serial, rec.Source)
		}
	}
	if len(report.Warnings) != 2 {
		t.Errorf("Warnings = %v, want one per instrument", report.Warnings)
	}
}

func TestReconcileSingleInstrument(t *testing.T) {
	start := testBase.Add(48 * time.Hour)
	end := start.Add(720 * time.Hour)

	t.Run("high confidence", func(t *testing.T) {
		set := mooringSet(metaInstrument("9062", 100))
		report := NewReconciler(DefaultReconcilerParams(), nil).Reconcile(set,
			[]types.DeploymentWindow{highWindow("9062", start, end)})
		if report.NoConsensus {
			t.Fatal("unexpected NoConsensus for a single instrument")
		}
		if report.ConsensusSize != 1 {
			t.Errorf("ConsensusSize = %d, want 1", report.ConsensusSize)
		}
		rec := report.Recommendation("9062")
		if rec.OffsetSeconds != 0 || rec.Source != types.OffsetSourceConsensus {
			t.Errorf("recommendation = %+v, want zero consensus offset", rec)
		}
	})

	t.Run("low confidence", func(t *testing.T) {
		set := mooringSet(metaInstrument("9062", 100))
		report := NewReconciler(DefaultReconcilerParams(), nil).Reconcile(set,
			[]types.DeploymentWindow{{Serial: "9062", Start: start, End: end, Confidence: types.ConfidenceLow}})
		rec := report.Recommendation("9062")
		if rec == nil {
			t.Fatal("no recommendation")
		}
		if rec.OffsetSeconds != 0 || rec.Source != types.OffsetSourceNone {
			t.Errorf("recommendation = %+v, want zero offset with no source", rec)
		}
	})
}

func TestApplyShiftAndTrim(t *testing.T) {
	inst := hourlyInstrument("9062", 100, diurnal)
	early := hourlyInstrument("9063", 100, diurnal)
	for i := range early.Times {
		early.Times[i] = early.Times[i].Add(-300 * time.Hour)
	}

	deployment := testBase
	recovery := testBase.Add(200 * time.Hour)
	set := mooringSet(inst, early)
	set.Deployment = &deployment
	set.Recovery = &recovery

	report := &types.MooringOffsetReport{
		Mooring: "wb4",
		Recommendations: []types.OffsetRecommendation{
			{Serial: "9062", OffsetSeconds: -7200, Source: types.OffsetSourceConsensus},
			{Serial: "9063", Source: types.OffsetSourceConsensus},
		},
	}

	out, issues := Apply(set, report, nil)

	if len(out.Instruments) != 1 {
		t.Fatalf("got %d instruments, want 1", len(out.Instruments))
	}
	shifted := out.Instruments[0]
	if shifted.Serial != "9062" {
		t.Fatalf("kept instrument %s, want 9062", shifted.Serial)
	}
	// The two samples pushed before the deployment start are trimmed away.
	if shifted.Len() != 98 {
		t.Errorf("Len = %d, want 98", shifted.Len())
	}
	if !shifted.Times[0].Equal(deployment) {
		t.Errorf("first sample at %v, want %v", shifted.Times[0], deployment)
	}
	if shifted.ClockOffset != -7200 {
		t.Errorf("ClockOffset = %v, want -7200", shifted.ClockOffset)
	}
	if !inst.Times[0].Equal(testBase) {
		t.Error("input series was mutated")
	}

	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Serial != "9063" || issues[0].Stage != "clockalign" {
		t.Errorf("issue = %+v, want 9063 at clockalign", issues[0])
	}
}

func TestApplyWithoutBounds(t *testing.T) {
	inst := hourlyInstrument("9062", 100, diurnal)
	set := mooringSet(inst)
	report := &types.MooringOffsetReport{
		Mooring:         "wb4",
		Recommendations: []types.OffsetRecommendation{{Serial: "9062", OffsetSeconds: 1800}},
	}

	out, issues := Apply(set, report, nil)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues %v", issues)
	}
	got := out.Instruments[0]
	if got.Len() != inst.Len() {
		t.Errorf("Len = %d, want %d", got.Len(), inst.Len())
	}
	if want := testBase.Add(30 * time.Minute); !got.Times[0].Equal(want) {
		t.Errorf("first sample at %v, want %v", got.Times[0], want)
	}
}
