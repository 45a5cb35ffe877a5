// Package clockalign estimates and reconciles instrument clock offsets on a
// mooring. Deployment-window boundaries provide the primary estimate; lag
// correlation against a reference instrument fills in where detection was
// ambiguous. The reconciler is advisory: it mutates nothing, and a separate
// Apply step shifts and trims series once offsets are accepted.
package clockalign

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/oceanobs/moorproc/internal/series"
	"github.com/oceanobs/moorproc/internal/types"
	"go.uber.org/zap"
)

// ReconcilerParams holds the tunable parameters for consensus grouping.
type ReconcilerParams struct {
	// ToleranceSeconds is the maximum spread of detected deployment starts
	// within one consensus group.
	ToleranceSeconds float64

	// Lag configures the fallback lag-correlation estimator.
	Lag LagParams
}

// DefaultReconcilerParams returns the standard reconciliation parameters.
func DefaultReconcilerParams() ReconcilerParams {
	return ReconcilerParams{
		ToleranceSeconds: 2 * 3600,
		Lag:              DefaultLagParams(),
	}
}

// Reconciler combines per-instrument deployment windows into consensus
// clock-offset recommendations.
type Reconciler struct {
	params ReconcilerParams
	logger *zap.SugaredLogger
}

// NewReconciler creates a Reconciler with the given parameters.
func NewReconciler(params ReconcilerParams, logger *zap.SugaredLogger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if params.ToleranceSeconds <= 0 {
		params.ToleranceSeconds = 2 * 3600
	}
	return &Reconciler{params: params, logger: logger}
}

// Reconcile derives one recommended offset per instrument on the mooring.
// Instruments inside the consensus group are considered aligned and receive
// offset zero; instruments outside it receive the negative of their detected
// boundary discrepancy. Low-confidence detections fall back to lag
// correlation against the reference instrument. When no consensus can be
// formed every instrument defaults to offset zero with a warning.
func (r *Reconciler) Reconcile(set *types.MooringInstrumentSet, windows []types.DeploymentWindow) *types.MooringOffsetReport {
	report := &types.MooringOffsetReport{Mooring: set.Name}

	byserial := make(map[string]types.DeploymentWindow, len(windows))
	for _, w := range windows {
		byserial[w.Serial] = w
	}

	var trusted []types.DeploymentWindow
	for _, inst := range set.Instruments {
		if w, ok := byserial[inst.Serial]; ok && w.Confidence == types.ConfidenceHigh {
			trusted = append(trusted, w)
		}
	}

	group := consensusGroup(trusted, r.params.ToleranceSeconds)
	if len(trusted) >= 2 && len(group) < 2 {
		report.NoConsensus = true
		for _, inst := range set.Instruments {
			report.Recommendations = append(report.Recommendations, types.OffsetRecommendation{
				Serial: inst.Serial,
				Source: types.OffsetSourceNone,
			})
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("instrument %s: no deployment-start consensus on mooring %s, defaulting to zero offset", inst.Serial, set.Name))
		}
		r.logger.Warnw("no clock-offset consensus, all offsets zeroed",
			"mooring", set.Name, "instruments", len(set.Instruments))
		return report
	}

	inGroup := make(map[string]bool, len(group))
	consensusStart := time.Time{}
	consensusEnd := time.Time{}
	for i, w := range group {
		inGroup[w.Serial] = true
		if i == 0 || w.Start.Before(consensusStart) {
			consensusStart = w.Start
		}
		if i == 0 || w.End.After(consensusEnd) {
			consensusEnd = w.End
		}
	}
	report.ConsensusStart = consensusStart
	report.ConsensusEnd = consensusEnd
	report.ConsensusSize = len(group)

	ref := referenceInstrument(set, inGroup)
	if ref != nil {
		report.ReferenceSerial = ref.Serial
	}

	bestAbs := math.Inf(1)
	for _, inst := range set.Instruments {
		w, hasWindow := byserial[inst.Serial]

		switch {
		case hasWindow && w.Confidence == types.ConfidenceHigh:
			rec := boundaryOffsets(w, consensusStart, consensusEnd)
			if inGroup[inst.Serial] {
				// Consensus members are the reference frame: aligned by
				// definition, correction zero.
				rec.OffsetSeconds = 0
			} else {
				rec.OffsetSeconds = -rec.AvgOffset
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("instrument %s: deployment boundaries %.0f s from consensus", inst.Serial, rec.AvgOffset))
			}
			rec.Source = types.OffsetSourceConsensus
			report.Recommendations = append(report.Recommendations, rec)
			if a := math.Abs(rec.AvgOffset); a < bestAbs {
				bestAbs = a
				report.SuggestedReference = inst.Serial
			}
		case ref != nil && ref.Serial != inst.Serial:
			lag := EstimateLag(ref, inst, r.params.Lag, r.logger)
			rec := types.OffsetRecommendation{Serial: inst.Serial}
			if lag.OK {
				rec.OffsetSeconds = lag.LagSeconds
				rec.AvgOffset = -lag.LagSeconds
				rec.Source = types.OffsetSourceLagCorrelation
				r.logger.Infow("lag-correlation fallback offset",
					"mooring", set.Name, "serial", inst.Serial,
					"offset_seconds", rec.OffsetSeconds, "correlation", lag.Correlation)
			} else {
				rec.Source = types.OffsetSourceNone
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("instrument %s: low-confidence window and no usable lag correlation, defaulting to zero offset", inst.Serial))
			}
			report.Recommendations = append(report.Recommendations, rec)
		default:
			report.Recommendations = append(report.Recommendations, types.OffsetRecommendation{
				Serial: inst.Serial,
				Source: types.OffsetSourceNone,
			})
			if ref == nil {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("instrument %s: no reference instrument available for lag fallback", inst.Serial))
			}
		}
	}

	r.logger.Infow("clock offsets reconciled",
		"mooring", set.Name,
		"consensus_size", report.ConsensusSize,
		"consensus_start", report.ConsensusStart,
		"reference", report.ReferenceSerial,
		"warnings", len(report.Warnings))
	return report
}

// boundaryOffsets converts one window's boundary discrepancies against the
// consensus into a recommendation record, including the apparent clock drift
// across the deployment.
func boundaryOffsets(w types.DeploymentWindow, consensusStart, consensusEnd time.Time) types.OffsetRecommendation {
	startOff := w.Start.Sub(consensusStart).Seconds()
	endOff := w.End.Sub(consensusEnd).Seconds()
	rec := types.OffsetRecommendation{
		Serial:      w.Serial,
		StartOffset: startOff,
		EndOffset:   endOff,
		AvgOffset:   (startOff + endOff) / 2,
	}
	if dur := w.End.Sub(w.Start).Seconds(); dur > 0 {
		rec.DriftRate = (endOff - startOff) / dur * 86400
	}
	return rec
}

// consensusGroup finds the largest set of windows whose detected starts all
// lie within tolerance of each other. Ties go to the earliest group.
func consensusGroup(windows []types.DeploymentWindow, toleranceSeconds float64) []types.DeploymentWindow {
	if len(windows) == 0 {
		return nil
	}
	sorted := append([]types.DeploymentWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	bestLo, bestHi := 0, 1
	lo := 0
	for hi := 0; hi < len(sorted); hi++ {
		for sorted[hi].Start.Sub(sorted[lo].Start).Seconds() > toleranceSeconds {
			lo++
		}
		if hi-lo+1 > bestHi-bestLo {
			bestLo, bestHi = lo, hi+1
		}
	}
	return sorted[bestLo:bestHi]
}

// referenceInstrument picks the designated reference for lag-correlation
// fallback: a pressure-bearing consensus member, else the deepest consensus
// member, else the deepest instrument overall.
func referenceInstrument(set *types.MooringInstrumentSet, inGroup map[string]bool) *types.InstrumentSeries {
	var withPressure, deepestGroup, deepest *types.InstrumentSeries
	for _, inst := range set.Instruments {
		if deepest == nil || inst.NominalDepth > deepest.NominalDepth {
			deepest = inst
		}
		if !inGroup[inst.Serial] {
			continue
		}
		if inst.Pressure != nil && series.CountFinite(inst.Pressure) > 0 {
			if withPressure == nil || inst.NominalDepth > withPressure.NominalDepth {
				withPressure = inst
			}
		}
		if deepestGroup == nil || inst.NominalDepth > deepestGroup.NominalDepth {
			deepestGroup = inst
		}
	}
	if withPressure != nil {
		return withPressure
	}
	if deepestGroup != nil {
		return deepestGroup
	}
	return deepest
}
