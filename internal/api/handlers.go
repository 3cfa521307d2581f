package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/config"
	"github.com/JakeFAU/linkrover/internal/controller"
	"github.com/JakeFAU/linkrover/internal/report"
	"github.com/JakeFAU/linkrover/internal/update"
)

type configResponse struct {
	Properties []config.Property `json:"properties"`
	Saved      bool              `json:"saved"`
}

type updateValueRequest struct {
	Value *string `json:"value"`
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, configResponse{
		Properties: s.cfg.Properties(),
		Saved:      s.cfg.Saved(),
	})
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req updateValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(s.logger, w, http.StatusBadRequest, "body must be a JSON object with a value field")
		return
	}
	if err := s.cfg.UpdateValue(key, *req.Value); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			writeError(s.logger, w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, configResponse{
		Properties: s.cfg.Properties(),
		Saved:      s.cfg.Saved(),
	})
}

func (s *Server) persistConfig(w http.ResponseWriter, _ *http.Request) {
	if err := s.cfg.Persist(); err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]bool{"saved": true})
}

func (s *Server) getLog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string][]string{"log": s.cfg.Log()})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	runID, err := s.ctrl.RequestRun(r.Context())
	if err != nil {
		if errors.Is(err, controller.ErrAlreadyRunning) {
			writeError(s.logger, w, http.StatusConflict, err.Error())
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) runStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, s.ctrl.Status())
}

// cancelRun always succeeds: cancelling an unknown or finished run is a
// no-op, so a retried cancel never surfaces as an error to the caller.
func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if err := s.ctrl.Cancel(runID); err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getReport(w http.ResponseWriter, _ *http.Request) {
	run, ok := s.ctrl.LastRun()
	if !ok {
		writeError(s.logger, w, http.StatusNotFound, "no completed run")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, report.Generate(run))
}

func (s *Server) writeReportArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(s.logger, w, http.StatusNotImplemented, "report storage is not configured")
		return
	}
	run, ok := s.ctrl.LastRun()
	if !ok {
		writeError(s.logger, w, http.StatusNotFound, "no completed run")
		return
	}
	artifacts, err := s.reports.Write(r.Context(), report.Generate(run))
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, artifacts)
}

func (s *Server) checkUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeError(s.logger, w, http.StatusNotImplemented, "update checks are not configured")
		return
	}
	result, err := s.updates.Check(r.Context())
	if err != nil {
		if errors.Is(err, update.ErrCheckInProgress) {
			writeError(s.logger, w, http.StatusConflict, err.Error())
			return
		}
		writeError(s.logger, w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, result)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
