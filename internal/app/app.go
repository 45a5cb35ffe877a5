// Package app wires the processing pipeline together: it reads configured
// moorings from an instrument data source, runs the requested stages over
// each one on a worker pool, and lands the products in the configured sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/oceanobs/moorproc/internal/clockalign"
	"github.com/oceanobs/moorproc/internal/deployment"
	"github.com/oceanobs/moorproc/internal/filter"
	"github.com/oceanobs/moorproc/internal/ingest"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/storage/archive"
	"github.com/oceanobs/moorproc/internal/storage/postgres"
	"github.com/oceanobs/moorproc/internal/timegrid"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/internal/vertical"
	"github.com/oceanobs/moorproc/pkg/config"
	"go.uber.org/zap"
)

// Pipeline stages, in execution order
const (
	StageDetect   = "detect"
	StageAlign    = "align"
	StageApply    = "apply"
	StageFilter   = "filter"
	StageGrid     = "grid"
	StageVertical = "vertical"
)

// AllStages lists every pipeline stage in execution order
var AllStages = []string{StageDetect, StageAlign, StageApply, StageFilter, StageGrid, StageVertical}

const defaultWorkers = 4

// Options selects what one pipeline invocation processes
type Options struct {
	// Source designates where instrument data comes from, as kind:location
	Source string

	// Stages lists the stages to run. Empty means all of them.
	Stages []string

	// Mooring restricts the run to one configured mooring. Empty means all.
	Mooring string
}

// App represents the processing pipeline application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	opts           Options
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger, opts Options) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		configProvider: configProvider,
		logger:         logger,
		opts:           opts,
	}
}

// run carries the per-invocation state shared by every worker
type run struct {
	stages   []string
	reader   ingest.Reader
	sinks    *sinks
	pipeline *config.PipelineData
	clim     *vertical.Climatology
}

// sinks holds the configured result destinations. Either may be nil.
type sinks struct {
	results *postgres.Storage
	archive *archive.Archive
}

// products collects what one mooring run yields for the sinks
type products struct {
	report   *types.ProcessingReport
	set      *types.MooringInstrumentSet
	windows  []types.DeploymentWindow
	offsets  *types.MooringOffsetReport
	gridded  *types.GriddedMooring
	profiles []types.FullDepthProfile
}

// Run executes the pipeline over the configured moorings and blocks until
// every mooring has been processed or the context is cancelled
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	stages, err := resolveStages(a.opts.Stages)
	if err != nil {
		return err
	}

	moorings := cfg.Moorings
	if a.opts.Mooring != "" {
		mooring, err := a.configProvider.GetMooring(a.opts.Mooring)
		if err != nil {
			return err
		}
		moorings = []config.MooringData{*mooring}
	}
	if len(moorings) == 0 {
		return fmt.Errorf("no moorings configured")
	}

	reader, err := ingest.Open(a.opts.Source)
	if err != nil {
		return err
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	sk, err := openSinks(ctx, &cfg.Storage)
	if err != nil {
		return err
	}

	r := &run{stages: stages, reader: reader, sinks: sk, pipeline: &cfg.Pipeline}
	if stageRequested(stages, StageVertical) && cfg.Pipeline.ClimatologyPath != "" {
		clim, err := vertical.LoadClimatology(cfg.Pipeline.ClimatologyPath)
		if err != nil {
			log.Warnf("failed to load climatology from %v, profiles degrade to linear interpolation: %v",
				cfg.Pipeline.ClimatologyPath, err)
		} else {
			r.clim = clim
		}
	}

	// Stop feeding new moorings on SIGINT/SIGTERM. In-flight moorings
	// finish and land their reports.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			log.Info("shutdown signal received, finishing in-flight moorings...")
			cancel()
		case <-ctx.Done():
		}
	}()

	workers := cfg.Pipeline.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(moorings) {
		workers = len(moorings)
	}

	a.logger.Infow("starting pipeline run",
		"moorings", len(moorings), "workers", workers,
		"stages", strings.Join(stages, ","), "source", a.opts.Source)

	jobs := make(chan *config.MooringData)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mooring := range jobs {
				if err := a.processMooring(ctx, r, mooring); err != nil {
					a.logger.Errorf("mooring %v: %v", mooring.Name, err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range moorings {
		select {
		case jobs <- &moorings[i]:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d moorings failed", failed, len(moorings))
	}
	log.Info("pipeline run complete")
	return nil
}

// processMooring runs the requested stages over one mooring and lands the
// products. Stage problems degrade the run and are recorded as issues on
// the report; only an unreadable mooring or a broken sink fails it.
func (a *App) processMooring(ctx context.Context, r *run, mooring *config.MooringData) error {
	runID := uuid.New().String()
	logger := a.logger.With("mooring", mooring.Name, "run_id", runID)

	report := &types.ProcessingReport{
		RunID:     runID,
		Mooring:   mooring.Name,
		Stages:    r.stages,
		StartedAt: time.Now().UTC(),
	}
	p := &products{report: report}

	set, err := r.reader.ReadMooring(ctx, mooring)
	if err != nil {
		report.AddIssue("", "ingest", err.Error())
		report.FinishedAt = time.Now().UTC()
		if landErr := a.land(r, p, logger); landErr != nil {
			logger.Errorf("failed to land failure report: %v", landErr)
		}
		return fmt.Errorf("failed to read mooring: %w", err)
	}
	logger.Infow("read mooring", "instruments", len(set.Instruments))

	for _, stage := range r.stages {
		if ctx.Err() != nil {
			report.AddIssue("", stage, "run cancelled before stage started")
			break
		}
		switch stage {
		case StageDetect:
			p.windows = a.detectStage(set, report, logger)
		case StageAlign:
			p.offsets = a.alignStage(r, set, p.windows, report, logger)
		case StageApply:
			set = a.applyStage(set, p.offsets, report, logger)
		case StageFilter:
			a.filterStage(r, set, report, logger)
		case StageGrid:
			p.gridded = a.gridStage(r, mooring, set, report, logger)
		case StageVertical:
			p.profiles = a.verticalStage(r, mooring, set, report, logger)
		}
	}
	p.set = set

	report.FinishedAt = time.Now().UTC()
	report.Succeeded = ctx.Err() == nil
	logger.Infow("mooring processed",
		"issues", len(report.Issues), "succeeded", report.Succeeded,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	return a.land(r, p, logger)
}

// detectStage finds each instrument's in-water window
func (a *App) detectStage(set *types.MooringInstrumentSet, report *types.ProcessingReport, logger *zap.SugaredLogger) []types.DeploymentWindow {
	detector := deployment.NewDetector(deployment.DefaultParams(), logger)
	windows := make([]types.DeploymentWindow, 0, len(set.Instruments))
	for _, inst := range set.Instruments {
		w, err := detector.Detect(inst)
		if err != nil {
			report.AddIssue(inst.Serial, StageDetect, err.Error())
			continue
		}
		windows = append(windows, w)
	}
	logger.Infow("detected deployment windows", "windows", len(windows), "instruments", len(set.Instruments))
	return windows
}

// alignStage reconciles instrument clocks against the detected windows.
// With no windows to work from the reconciler still runs and reports
// no consensus, so a stage subset degrades rather than crashes.
func (a *App) alignStage(r *run, set *types.MooringInstrumentSet, windows []types.DeploymentWindow, report *types.ProcessingReport, logger *zap.SugaredLogger) *types.MooringOffsetReport {
	params := clockalign.DefaultReconcilerParams()
	if r.pipeline.OffsetToleranceSeconds > 0 {
		params.ToleranceSeconds = r.pipeline.OffsetToleranceSeconds
	}
	offsets := clockalign.NewReconciler(params, logger).Reconcile(set, windows)
	for _, w := range offsets.Warnings {
		report.AddIssue("", StageAlign, w)
	}
	return offsets
}

// applyStage shifts instrument clocks by the recommended offsets and trims
// each series to the deployment window
func (a *App) applyStage(set *types.MooringInstrumentSet, offsets *types.MooringOffsetReport, report *types.ProcessingReport, logger *zap.SugaredLogger) *types.MooringInstrumentSet {
	if offsets == nil {
		report.AddIssue("", StageApply, "no offset report to apply, skipping")
		return set
	}
	aligned, issues := clockalign.Apply(set, offsets, logger)
	report.Issues = append(report.Issues, issues...)
	return aligned
}

// filterStage low-passes each instrument's series in place
func (a *App) filterStage(r *run, set *types.MooringInstrumentSet, report *types.ProcessingReport, logger *zap.SugaredLogger) {
	params := filter.DefaultParams()
	params.Variables = r.pipeline.Variables
	if r.pipeline.FilterCutoffDays > 0 {
		params.CutoffDays = r.pipeline.FilterCutoffDays
	}
	if r.pipeline.FilterOrder > 0 {
		params.Order = r.pipeline.FilterOrder
	}
	f := filter.NewFilter(params, logger)
	for i, inst := range set.Instruments {
		filtered, warnings, err := f.Instrument(inst)
		if err != nil {
			report.AddIssue(inst.Serial, StageFilter, err.Error())
			continue
		}
		for _, w := range warnings {
			report.AddIssue(inst.Serial, StageFilter, w)
		}
		set.Instruments[i] = filtered
	}
}

// gridStage interpolates the instruments onto the shared time axis
func (a *App) gridStage(r *run, mooring *config.MooringData, set *types.MooringInstrumentSet, report *types.ProcessingReport, logger *zap.SugaredLogger) *types.GriddedMooring {
	g, greport, err := timegrid.NewGridder(a.gridParams(r, mooring), logger).Grid(set)
	if err != nil {
		report.AddIssue("", StageGrid, err.Error())
		return nil
	}
	for _, w := range greport.Warnings {
		report.AddIssue("", StageGrid, w)
	}
	return g
}

// verticalStage builds full-depth profiles on the half-day product axis.
// Temperature and pressure are gridded onto 00:00/12:00 UTC boundaries
// first so the profiles land on the product grid rather than the mooring's
// native cadence.
func (a *App) verticalStage(r *run, mooring *config.MooringData, set *types.MooringInstrumentSet, report *types.ProcessingReport, logger *zap.SugaredLogger) []types.FullDepthProfile {
	start, end, ok := setSpan(set)
	if !ok {
		report.AddIssue("", StageVertical, "no samples to build profiles from")
		return nil
	}
	axis := vertical.TwelveHourly(start, end)
	if len(axis) == 0 {
		report.AddIssue("", StageVertical, "deployment too short for the half-day product grid")
		return nil
	}

	params := a.gridParams(r, mooring)
	params.Variables = []string{types.VarTemperature, types.VarPressure}
	g, _, err := timegrid.NewGridder(params, logger).GridAt(set, axis)
	if err != nil {
		report.AddIssue("", StageVertical, err.Error())
		return nil
	}

	if r.clim == nil && r.pipeline.ClimatologyPath != "" {
		report.AddIssue("", StageVertical, "climatology unavailable, interpolation degrades to linear")
	}
	vparams := vertical.DefaultParams()
	if r.pipeline.PressureStep > 0 {
		vparams.PressureStep = r.pipeline.PressureStep
	}
	if r.pipeline.MaxPressure > 0 {
		vparams.MaxPressure = r.pipeline.MaxPressure
	}
	profiles, err := vertical.NewInterpolator(r.clim, vparams, logger).Mooring(g)
	if err != nil {
		report.AddIssue("", StageVertical, err.Error())
		return nil
	}

	out := make([]types.FullDepthProfile, len(profiles))
	for i := range profiles {
		out[i] = *profiles[i]
	}
	logger.Infow("built full-depth profiles", "profiles", len(out), "climatology", r.clim != nil)
	return out
}

// gridParams builds gridding parameters from the pipeline configuration
func (a *App) gridParams(r *run, mooring *config.MooringData) timegrid.Params {
	params := timegrid.DefaultParams()
	params.Variables = r.pipeline.Variables
	params.ExpectedSerials = mooring.Serials()
	if r.pipeline.GridSpan != "" {
		params.Span = timegrid.SpanMode(r.pipeline.GridSpan)
	}
	if r.pipeline.GridIntervalSeconds > 0 {
		params.Interval = time.Duration(r.pipeline.GridIntervalSeconds * float64(time.Second))
	}
	return params
}

// land stores the run's products in every configured sink. Each sink write
// is attempted even when an earlier one fails, so a broken database does
// not also cost the archive snapshot.
func (a *App) land(r *run, p *products, logger *zap.SugaredLogger) error {
	var errs []error
	if r.sinks.results != nil {
		if err := r.sinks.results.StoreRun(p.report); err != nil {
			errs = append(errs, fmt.Errorf("failed to store run: %w", err))
		}
		if len(p.windows) > 0 {
			if err := r.sinks.results.StoreDeploymentWindows(p.report.RunID, p.report.Mooring, p.windows); err != nil {
				errs = append(errs, fmt.Errorf("failed to store deployment windows: %w", err))
			}
		}
		if p.offsets != nil {
			if err := r.sinks.results.StoreOffsetReport(p.report.RunID, p.offsets); err != nil {
				errs = append(errs, fmt.Errorf("failed to store offset report: %w", err))
			}
		}
		if p.gridded != nil {
			if err := r.sinks.results.StoreGridded(p.report.RunID, p.gridded); err != nil {
				errs = append(errs, fmt.Errorf("failed to store gridded product: %w", err))
			}
		}
		if len(p.profiles) > 0 {
			if err := r.sinks.results.StoreProfiles(p.report.RunID, p.report.Mooring, p.profiles); err != nil {
				errs = append(errs, fmt.Errorf("failed to store profiles: %w", err))
			}
		}
	}
	if r.sinks.archive != nil {
		if p.set != nil {
			if path, err := r.sinks.archive.WriteSet(p.report.RunID, p.set); err != nil {
				errs = append(errs, fmt.Errorf("failed to archive instrument set: %w", err))
			} else {
				logger.Debugf("archived instrument set to %v", path)
			}
		}
		if p.gridded != nil {
			if path, err := r.sinks.archive.WriteGridded(p.report.RunID, p.gridded); err != nil {
				errs = append(errs, fmt.Errorf("failed to archive gridded product: %w", err))
			} else {
				logger.Debugf("archived gridded product to %v", path)
			}
		}
	}
	return errors.Join(errs...)
}

// openSinks opens the configured result destinations. A configured sink
// that cannot be opened fails the run up front rather than after hours of
// processing.
func openSinks(ctx context.Context, storage *config.StorageData) (*sinks, error) {
	out := &sinks{}
	if storage.Postgres != nil && storage.Postgres.ConnectionString != "" {
		results, err := postgres.New(ctx, storage.Postgres.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to open results database: %w", err)
		}
		out.results = results
	}
	if storage.Archive != nil && storage.Archive.Directory != "" {
		arch, err := archive.New(storage.Archive.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
		out.archive = arch
	}
	return out, nil
}

// resolveStages validates the requested stage names and returns them in
// execution order
func resolveStages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return AllStages, nil
	}
	want := make(map[string]bool, len(requested))
	for _, s := range requested {
		name := strings.ToLower(strings.TrimSpace(s))
		if !stageRequested(AllStages, name) {
			return nil, fmt.Errorf("unknown stage %q (want one of %v)", s, strings.Join(AllStages, ", "))
		}
		want[name] = true
	}
	var stages []string
	for _, s := range AllStages {
		if want[s] {
			stages = append(stages, s)
		}
	}
	return stages, nil
}

// stageRequested reports whether name appears in stages
func stageRequested(stages []string, name string) bool {
	for _, s := range stages {
		if s == name {
			return true
		}
	}
	return false
}

// setSpan returns the union time span across every instrument with samples
func setSpan(set *types.MooringInstrumentSet) (time.Time, time.Time, bool) {
	var start, end time.Time
	found := false
	for _, inst := range set.Instruments {
		if inst.Len() == 0 {
			continue
		}
		first, last := inst.Span()
		if !found || first.Before(start) {
			start = first
		}
		if !found || last.After(end) {
			end = last
		}
		found = true
	}
	return start, end, found
}
