package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MimeLyc/study-assistant/internal/config"
	"github.com/MimeLyc/study-assistant/internal/transfer"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "degraded",
			"backend": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": "ok",
	})
}

func (s *Server) handleListTracked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.List())
}

// handleJobStatus passes the backend status through. Concurrent requests
// for the same job share one backend query.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := routeID(r)
	job, err := s.queryStatus(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := s.backend.List(r.Context(), transfer.ListOptions{
		Limit:        parsePositiveIntWithDefault(query.Get("limit"), transfer.DefaultListLimit),
		StatusFilter: strings.TrimSpace(query.Get("status")),
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	id := routeID(r)
	ack, err := s.backend.Delete(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.tracker.Forget(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": ack,
	})
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	if s.inbox == nil {
		writeError(w, http.StatusNotFound, "inbox is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.inbox.Status())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	var req config.RuntimeSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.apply != nil {
		if err := s.apply(saved); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, saved)
}

// writeFailure reports err with its mapped status and the localized user
// message next to the technical one.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, statusCodeFor(err), map[string]any{
		"error":   err.Error(),
		"message": s.labels(nil).Error(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
