package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/pkg/responseformat"
)

// defaultRunLimit bounds the run listing when no limit is given
const defaultRunLimit = 20

// Handlers contains all HTTP handlers for the reporting API
type Handlers struct {
	server    *Server
	formatter *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(srv *Server) *Handlers {
	return &Handlers{
		server:    srv,
		formatter: responseformat.NewFormatter(),
	}
}

// GetMoorings lists the moorings with recorded processing runs, falling back
// to the raw store listing when no results database is configured
func (h *Handlers) GetMoorings(w http.ResponseWriter, req *http.Request) {
	var moorings []string
	var err error

	switch {
	case h.server.DBEnabled:
		moorings, err = h.server.Results.Moorings()
	case h.server.RawStore != nil:
		moorings, err = h.server.RawStore.Moorings()
	default:
		http.Error(w, "no results database or raw store configured", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		log.Errorf("error listing moorings: %v", err)
		http.Error(w, "error listing moorings", http.StatusInternalServerError)
		return
	}

	h.formatter.WriteResponse(w, req, MooringList{Moorings: moorings}, nil)
}

// GetMooringRuns lists recent processing runs for a mooring, newest first
func (h *Handlers) GetMooringRuns(w http.ResponseWriter, req *http.Request) {
	if !h.server.DBEnabled {
		http.Error(w, "results database not configured", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(req)
	mooring := vars["name"]

	limit := defaultRunLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "error: invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	rows, err := h.server.Results.Runs(mooring, limit)
	if err != nil {
		log.Errorf("error fetching runs for %v: %v", mooring, err)
		http.Error(w, "error fetching runs", http.StatusInternalServerError)
		return
	}

	runs := make([]RunSummary, 0, len(rows))
	for i := range rows {
		runs = append(runs, transformRun(&rows[i]))
	}
	h.formatter.WriteResponse(w, req, RunList{Mooring: mooring, Runs: runs}, nil)
}

// GetMooringReport returns the newest processing run for a mooring together
// with its clock-offset recommendations and detected deployment windows
func (h *Handlers) GetMooringReport(w http.ResponseWriter, req *http.Request) {
	if !h.server.DBEnabled {
		http.Error(w, "results database not configured", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(req)
	mooring := vars["name"]

	run, err := h.server.Results.LatestRun(mooring)
	if err != nil {
		log.Errorf("error fetching latest run for %v: %v", mooring, err)
		http.Error(w, "error fetching report", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "no processing runs recorded for mooring", http.StatusNotFound)
		return
	}

	offsets, err := h.server.Results.OffsetsForRun(run.RunID)
	if err != nil {
		log.Errorf("error fetching clock offsets for run %v: %v", run.RunID, err)
		http.Error(w, "error fetching report", http.StatusInternalServerError)
		return
	}

	windows, err := h.server.Results.DeploymentWindowsForRun(run.RunID)
	if err != nil {
		log.Errorf("error fetching deployment windows for run %v: %v", run.RunID, err)
		http.Error(w, "error fetching report", http.StatusInternalServerError)
		return
	}

	report := MooringReport{
		Mooring:           mooring,
		Run:               transformRun(run),
		ClockOffsets:      transformOffsets(offsets),
		DeploymentWindows: transformWindows(windows),
	}
	h.formatter.WriteResponse(w, req, report, nil)
}

// GetMooringGridded returns the gridded product for a mooring over a time window
func (h *Handlers) GetMooringGridded(w http.ResponseWriter, req *http.Request) {
	if !h.server.DBEnabled {
		http.Error(w, "results database not configured", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(req)
	mooring := vars["name"]

	from, to, err := parseWindow(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("error: %v", err), http.StatusBadRequest)
		return
	}

	rows, err := h.server.Results.GriddedWindow(mooring, from, to)
	if err != nil {
		log.Errorf("error fetching gridded samples for %v: %v", mooring, err)
		http.Error(w, "error fetching gridded product", http.StatusInternalServerError)
		return
	}

	h.formatter.WriteResponse(w, req, transformGridded(mooring, rows), nil)
}

// GetMooringProfiles returns the full-depth profiles for a mooring over a
// time window
func (h *Handlers) GetMooringProfiles(w http.ResponseWriter, req *http.Request) {
	if !h.server.DBEnabled {
		http.Error(w, "results database not configured", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(req)
	mooring := vars["name"]

	from, to, err := parseWindow(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("error: %v", err), http.StatusBadRequest)
		return
	}

	rows, err := h.server.Results.ProfilesWindow(mooring, from, to)
	if err != nil {
		log.Errorf("error fetching profiles for %v: %v", mooring, err)
		http.Error(w, "error fetching profiles", http.StatusInternalServerError)
		return
	}

	h.formatter.WriteResponse(w, req, transformProfiles(mooring, rows), nil)
}

// GetHealth reports liveness and the reachability of the configured backends
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	health := HealthResponse{Status: "ok", Time: time.Now()}

	if h.server.DBEnabled {
		health.ResultsDB = "ok"
		sqlDB, err := h.server.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			health.Status = "degraded"
			health.ResultsDB = "unreachable"
		}
	}

	if h.server.RawStore != nil {
		health.RawStore = "ok"
		if _, err := h.server.RawStore.Moorings(); err != nil {
			health.Status = "degraded"
			health.RawStore = "unreachable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

// parseWindow reads the from and to query parameters as RFC 3339 stamps.
// Absent bounds leave the window open on that side.
func parseWindow(req *http.Request) (time.Time, time.Time, error) {
	var from time.Time
	to := farFuture

	if v := req.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, fmt.Errorf("invalid from time %q", v)
		}
		from = parsed
	}
	if v := req.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, fmt.Errorf("invalid to time %q", v)
		}
		to = parsed
	}

	return from, to, nil
}
