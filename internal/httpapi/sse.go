package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MimeLyc/study-assistant/internal/jobs"
)

type jobEvent struct {
	ID           string      `json:"uuid"`
	Status       jobs.Status `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// handleJobEvents streams the tracked status of one job until it is
// terminal or the client goes away.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := routeID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if _, tracked := s.tracker.Get(id); !tracked {
		s.tracker.Track(id, jobs.SourceLink)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last jobs.Status
	// send reports whether the stream should continue.
	send := func() bool {
		job, ok := s.tracker.Get(id)
		if !ok {
			return false
		}
		if job.Status == last {
			return true
		}
		last = job.Status
		payload, err := json.Marshal(jobEvent{ID: job.ID, Status: job.Status, ErrorMessage: job.ErrorMessage})
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return !job.Status.IsTerminal()
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(s.sseInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}

// sseInterval checks the tracker twice per poll interval so a status
// change reaches the page well before the next query.
func (s *Server) sseInterval() time.Duration {
	return max(s.pollInterval/2, 10*time.Millisecond)
}
