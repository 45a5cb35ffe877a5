package clockalign

import (
	"fmt"

	"github.com/oceanobs/moorproc/internal/types"
	"go.uber.org/zap"
)

// Apply shifts each instrument's timestamps by its recommended offset and
// trims the result to the mooring deployment bounds when both are known. The
// input set is not modified. Instruments left empty by trimming are excluded
// from the returned set and reported as issues so the rest of the mooring can
// continue through the pipeline.
func Apply(set *types.MooringInstrumentSet, report *types.MooringOffsetReport, logger *zap.SugaredLogger) (*types.MooringInstrumentSet, []types.InstrumentIssue) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	out := &types.MooringInstrumentSet{
		Name:       set.Name,
		Latitude:   set.Latitude,
		Longitude:  set.Longitude,
		Deployment: set.Deployment,
		Recovery:   set.Recovery,
	}
	var issues []types.InstrumentIssue

	for _, inst := range set.Instruments {
		shifted := inst
		if rec := report.Recommendation(inst.Serial); rec != nil && rec.OffsetSeconds != 0 {
			shifted = inst.Shifted(rec.OffsetSeconds)
			logger.Infow("applied clock offset",
				"mooring", set.Name, "serial", inst.Serial,
				"offset_seconds", rec.OffsetSeconds, "source", rec.Source)
		} else {
			shifted = inst.Clone()
		}

		if set.Deployment != nil && set.Recovery != nil {
			shifted = shifted.Trimmed(*set.Deployment, *set.Recovery)
		}

		if shifted.Len() == 0 {
			issues = append(issues, types.InstrumentIssue{
				Serial:  inst.Serial,
				Stage:   "clockalign",
				Message: fmt.Sprintf("no samples remain after offset and deployment-bounds trim (%d raw samples)", inst.Len()),
			})
			logger.Warnw("instrument excluded after alignment trim",
				"mooring", set.Name, "serial", inst.Serial, "raw_samples", inst.Len())
			continue
		}
		out.Instruments = append(out.Instruments, shifted)
	}
	return out, issues
}
