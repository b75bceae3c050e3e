package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/render"
	"github.com/MimeLyc/study-assistant/internal/transfer"
	"github.com/MimeLyc/study-assistant/pkg/file"
)

var errJobNotCompleted = errors.New("job is not completed")

// handleJobPage shows the pending, result or error view of a job. Unknown
// identifiers start being tracked, so a shared link polls like an upload.
func (s *Server) handleJobPage(w http.ResponseWriter, r *http.Request) {
	id := routeID(r)
	if id == "" {
		labels := s.labels(nil)
		s.renderView(w, http.StatusBadRequest, render.ViewError, render.Page{L: labels, Error: labels.Error(jobs.ErrMissingIdentifier)})
		return
	}

	job, ok := s.tracker.Get(id)
	if !ok {
		job, _ = s.tracker.Track(id, jobs.SourceLink)
	}

	switch job.Status {
	case jobs.StatusFinished:
		s.renderView(w, http.StatusOK, render.ViewResult, render.Page{Job: job, Result: job.Result})
	case jobs.StatusError:
		labels := s.labels(nil)
		s.renderView(w, http.StatusOK, render.ViewError, render.Page{L: labels, Job: job, Error: labels.Error(job.Failure())})
	default:
		s.renderView(w, http.StatusOK, render.ViewPending, render.Page{Job: job, RefreshSeconds: s.refreshSeconds()})
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := routeID(r)
	result, err := s.finishedResult(r.Context(), id)
	if err != nil {
		status := statusCodeFor(err)
		if errors.Is(err, errJobNotCompleted) {
			status = http.StatusConflict
		}
		http.Error(w, s.labels(nil).Error(err), status)
		return
	}

	data, err := render.ExportXLSX(result, s.labels(result))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := file.SafeBase("study-" + id + ".xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// finishedResult prefers the tracked snapshot and falls back to one status
// query for jobs this process never tracked.
func (s *Server) finishedResult(ctx context.Context, id string) (*jobs.Result, error) {
	if strings.TrimSpace(id) == "" {
		return nil, jobs.ErrMissingIdentifier
	}
	if job, ok := s.tracker.Get(id); ok && job.Status == jobs.StatusFinished {
		return job.Result, nil
	}

	job, err := s.queryStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case jobs.StatusFinished:
		if job.Result == nil {
			return &jobs.Result{}, nil
		}
		return job.Result, nil
	case jobs.StatusError:
		return nil, &jobs.ProcessingError{JobID: id, Message: job.ErrorMessage}
	default:
		return nil, errJobNotCompleted
	}
}

// queryStatus collapses concurrent status queries for the same job into one
// backend request.
func (s *Server) queryStatus(ctx context.Context, id string) (*jobs.Job, error) {
	v, err, _ := s.statusGroup.Do(id, func() (any, error) {
		return s.backend.Status(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	job := *v.(*jobs.Job)
	return &job, nil
}

// statusCodeFor maps an error to the HTTP status shown to the caller.
func statusCodeFor(err error) int {
	var transportErr *transfer.TransportError
	switch {
	case errors.Is(err, transfer.ErrNoFiles),
		errors.Is(err, transfer.ErrNotPDF),
		errors.Is(err, jobs.ErrMissingIdentifier):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		if transportErr.StatusCode >= 400 && transportErr.StatusCode < 500 {
			return transportErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parsePositiveIntWithDefault(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
