package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/atsdesk/atsdesk/app/api"
	"github.com/atsdesk/atsdesk/app/batch"
	"github.com/atsdesk/atsdesk/app/export"
	"github.com/atsdesk/atsdesk/app/store"
)

// APIRun is a recorded run in JSON API response
type APIRun struct {
	ID         int64         `json:"id"`
	JobKey     string        `json:"job_key"`
	Label      string        `json:"label"`
	Detail     string        `json:"detail"`
	Status     store.Status  `json:"status"`
	Total      int           `json:"total"`
	Done       int           `json:"done"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Result     *batch.Result `json:"result,omitempty"`
}

func toAPIRun(r store.Run) (APIRun, error) {
	res := APIRun{ID: r.ID, JobKey: r.JobKey, Label: r.Label, Detail: r.Detail, Status: r.Status, Total: r.Total,
		Done: r.Done, Message: r.Message, Error: r.Error, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt}
	if len(r.Results) > 0 {
		var br batch.Result
		if err := json.Unmarshal(r.Results, &br); err != nil {
			return res, fmt.Errorf("can't decode results of run %d: %w", r.ID, err)
		}
		br.RunID = r.ID
		res.Result = &br
	}
	return res, nil
}

// handleCurrentJob returns active job snapshot or 204 if idle
func (s *Server) handleCurrentJob(w http.ResponseWriter, _ *http.Request) {
	info, ok := s.Runner.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleStartJob starts batch job from JSON request {label, jd, cvs, weights}. cvs may contain globs.
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req batch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid job request")
		return
	}
	cvs, err := batch.ExpandPaths("", req.CVs)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.CVs = cvs

	job, err := s.Runner.Start(s.ctx, req)
	switch {
	case errors.Is(err, batch.ErrBusy):
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, job.Info())
}

// handleCancelJob requests cancellation of the active job
func (s *Server) handleCancelJob(w http.ResponseWriter, _ *http.Request) {
	if !s.Runner.Cancel() {
		s.writeJSONError(w, http.StatusNotFound, "no running job")
		return
	}
	info, ok := s.Runner.Current()
	if !ok {
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": string(batch.StatusCancelling)})
		return
	}
	s.writeJSON(w, http.StatusAccepted, info)
}

// handleRuns returns recorded runs, newest first, without results
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.Runs == nil {
		s.writeJSONError(w, http.StatusNotFound, "run history disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = l
	}

	runs, err := s.Runs.List(r.Context(), limit)
	if err != nil {
		log.Printf("[ERROR] failed to list runs: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}
	res := make([]APIRun, 0, len(runs))
	for _, run := range runs {
		ar, _ := toAPIRun(run) // list has no results to decode
		res = append(res, ar)
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleRun returns a single run with ranked results
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	res, err := toAPIRun(run)
	if err != nil {
		log.Printf("[WARN] %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "broken run results")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleRunExport sends ranked candidates of a completed run as xlsx
func (s *Server) handleRunExport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	ar, err := toAPIRun(run)
	if err != nil || ar.Result == nil {
		s.writeJSONError(w, http.StatusConflict, "run has no results")
		return
	}

	tmpDir, err := os.MkdirTemp("", "atsdesk-export-")
	if err != nil {
		log.Printf("[ERROR] can't make temp dir: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "export failed")
		return
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck // best effort cleanup

	name := fmt.Sprintf("run-%d.xlsx", run.ID)
	path, err := export.ToExcel(ar.Result.Report(run.Label, run.FinishedAt), filepath.Join(tmpDir, name))
	if err != nil {
		log.Printf("[ERROR] can't export run %d: %v", run.ID, err)
		s.writeJSONError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (store.Run, bool) {
	if s.Runs == nil {
		s.writeJSONError(w, http.StatusNotFound, "run history disabled")
		return store.Run{}, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid run ID")
		return store.Run{}, false
	}
	run, err := s.Runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "run not found")
			return store.Run{}, false
		}
		log.Printf("[ERROR] failed to get run %d: %v", id, err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load run")
		return store.Run{}, false
	}
	return run, true
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.Cache == nil {
		s.writeJSONError(w, http.StatusNotFound, "parse cache disabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.Cache.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	if s.Cache == nil {
		s.writeJSONError(w, http.StatusNotFound, "parse cache disabled")
		return
	}
	s.Cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBackendSummary(w http.ResponseWriter, r *http.Request) {
	if s.Backend == nil {
		s.writeJSONError(w, http.StatusNotFound, "backend not configured")
		return
	}
	res, err := s.Backend.DashboardSummary(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBackendHistory(w http.ResponseWriter, r *http.Request) {
	if s.Backend == nil {
		s.writeJSONError(w, http.StatusNotFound, "backend not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = l
	}
	res, err := s.Backend.History(r.Context(), limit, r.URL.Query().Get("kind"))
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// writeBackendError keeps backend status for API errors, other failures are reported as 502
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		s.writeJSONError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	log.Printf("[WARN] backend request failed: %v", err)
	s.writeJSONError(w, http.StatusBadGateway, err.Error())
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}
