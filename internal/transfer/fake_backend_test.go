package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeBackend mimics the processing backend: uploads become jobs that
// report "processing" for a few status queries, then "finished".
type fakeBackend struct {
	t *testing.T

	mu          sync.Mutex
	jobs        map[string]*fakeJob
	order       []string
	requests    int
	requestIDs  []string
	uploads     [][]string
	lastQuery   string
	pollsToDone int
}

type fakeJob struct {
	id     string
	status string
	polls  int
	files  []string
	errMsg string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{t: t, jobs: make(map[string]*fakeJob), pollsToDone: 2}
	server := httptest.NewServer(b)
	t.Cleanup(server.Close)
	return b, server
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	b.requestIDs = append(b.requestIDs, r.Header.Get(RequestIDHeader))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/process-pdfs":
		b.handleUpload(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/status/"):
		b.handleStatus(w, strings.TrimPrefix(r.URL.Path, "/status/"))
	case r.Method == http.MethodGet && r.URL.Path == "/summaries":
		b.lastQuery = r.URL.RawQuery
		b.handleList(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/summaries/"):
		b.handleDelete(w, strings.TrimPrefix(r.URL.Path, "/summaries/"))
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
	}
}

func (b *fakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"No files provided"}`)
		return
	}
	headers := r.MultipartForm.File["files"]
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		names = append(names, h.Filename)
	}
	b.uploads = append(b.uploads, names)

	id := uuid.NewString()
	b.jobs[id] = &fakeJob{id: id, status: "processing", files: names}
	b.order = append(b.order, id)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uuid":    id,
		"status":  "processing",
		"message": fmt.Sprintf("Processing started for %d files", len(names)),
	})
}

func (b *fakeBackend) handleStatus(w http.ResponseWriter, id string) {
	job, ok := b.jobs[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Summary not found"}`)
		return
	}
	job.polls++
	if job.status == "processing" && job.polls > b.pollsToDone {
		job.status = "finished"
	}

	body := map[string]any{"uuid": id, "status": job.status, "error_message": nil}
	switch job.status {
	case "finished":
		body["result"] = map[string]any{
			"bullet_points":  []any{map[string]any{"point": "Cells are units of life", "importance_level": "high"}},
			"quiz_questions": []any{map[string]any{"question": "Unit of life?", "option_a": "Atom", "option_b": "Cell", "option_c": "Organ", "option_d": "Tissue", "correct_answer": "B", "explanation": "Cells."}},
			"flashcards":     []any{map[string]any{"front": "Cell", "back": "Unit of life", "category": "biology"}},
		}
	case "error":
		body["error_message"] = job.errMsg
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (b *fakeBackend) handleList(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("status_filter")
	summaries := make([]map[string]any, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		job := b.jobs[b.order[i]]
		if filter != "" && job.status != filter {
			continue
		}
		summaries = append(summaries, map[string]any{
			"uuid":        job.id,
			"status":      job.status,
			"files_count": len(job.files),
			"files_names": job.files,
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"summaries":       summaries,
		"total_returned":  len(summaries),
		"filters_applied": map[string]any{"status": filter},
	})
}

func (b *fakeBackend) handleDelete(w http.ResponseWriter, id string) {
	if _, ok := b.jobs[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Summary not found"}`)
		return
	}
	delete(b.jobs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"message": fmt.Sprintf("Summary %s deleted successfully", id)})
}

func (b *fakeBackend) Requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func (b *fakeBackend) failJob(id, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[id].status = "error"
	b.jobs[id].errMsg = msg
}

func (b *fakeBackend) Uploads() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.uploads...)
}

func (b *fakeBackend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

func (b *fakeBackend) LastQuery() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastQuery
}
