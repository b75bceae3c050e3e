package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/render"
	"github.com/MimeLyc/study-assistant/internal/transfer"
	"github.com/MimeLyc/study-assistant/pkg/log"
)

func (s *Server) renderView(w http.ResponseWriter, status int, name string, page render.Page) {
	if page.L == nil {
		page.L = s.labels(page.Result)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.views.Render(w, name, page); err != nil {
		log.Error("Failed to render %s: %v", name, err)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderView(w, http.StatusOK, render.ViewHome, render.Page{Active: render.ViewHome})
}

func (s *Server) handleHowItWorks(w http.ResponseWriter, r *http.Request) {
	s.renderView(w, http.StatusOK, render.ViewHowItWorks, render.Page{Active: render.ViewHowItWorks})
}

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	s.renderView(w, http.StatusOK, render.ViewUpload, render.Page{Active: render.ViewUpload})
}

func (s *Server) handleUploadRejected(w http.ResponseWriter, r *http.Request) {
	labels := s.labels(nil)
	s.renderView(w, http.StatusTooManyRequests, render.ViewUpload, render.Page{
		L:      labels,
		Active: render.ViewUpload,
		Error:  labels.T("Too many uploads, slow down."),
	})
}

// handleUpload submits the selected files as one job and redirects to the
// job page. Zero files re-renders the form without contacting the backend.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	labels := s.labels(nil)
	fail := func(status int, err error) {
		s.renderView(w, status, render.ViewUpload, render.Page{
			L:      labels,
			Active: render.ViewUpload,
			Error:  labels.Error(err),
		})
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.Warn("Invalid upload form: %v", err)
		fail(http.StatusBadRequest, transfer.ErrNoFiles)
		return
	}

	var files []transfer.File
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		for _, header := range r.MultipartForm.File["files"] {
			if header.Filename == "" {
				continue
			}
			src, err := header.Open()
			if err != nil {
				fail(http.StatusBadRequest, err)
				return
			}
			f, err := transfer.NewFile(header.Filename, src)
			_ = src.Close()
			if err != nil {
				fail(http.StatusBadRequest, err)
				return
			}
			files = append(files, f)
		}
	}

	if len(files) == 0 {
		fail(http.StatusBadRequest, transfer.ErrNoFiles)
		return
	}

	receipt, err := s.backend.Submit(r.Context(), files)
	if err != nil {
		fail(statusCodeFor(err), err)
		return
	}

	s.tracker.Track(receipt.UUID, jobs.SourceUpload)
	http.Redirect(w, r, "/jobs/"+url.PathEscape(receipt.UUID), http.StatusSeeOther)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), transfer.DefaultListLimit)

	page := render.Page{Active: render.ViewHistory, StatusFilter: status}
	page.L = s.labels(nil)
	if deleted := r.URL.Query().Get("deleted"); deleted != "" {
		page.Message = page.L.T("Deleted: %s", deleted)
	}

	list, err := s.backend.List(r.Context(), transfer.ListOptions{Limit: limit, StatusFilter: status})
	if err != nil {
		page.Error = page.L.Error(err)
		s.renderView(w, statusCodeFor(err), render.ViewHistory, page)
		return
	}
	page.Summaries = list.Summaries
	s.renderView(w, http.StatusOK, render.ViewHistory, page)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := routeID(r)
	if _, err := s.backend.Delete(r.Context(), id); err != nil {
		labels := s.labels(nil)
		s.renderView(w, statusCodeFor(err), render.ViewError, render.Page{L: labels, Error: labels.Error(err)})
		return
	}
	s.tracker.Forget(id)
	http.Redirect(w, r, "/summaries?deleted="+url.QueryEscape(id), http.StatusSeeOther)
}
