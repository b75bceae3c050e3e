package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/study-assistant/internal/config"
	"github.com/MimeLyc/study-assistant/internal/inbox"
	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/render"
	"github.com/MimeLyc/study-assistant/internal/transfer"
)

// Backend is the part of the transfer client the shell needs.
type Backend interface {
	Submit(ctx context.Context, files []transfer.File) (*jobs.SubmitReceipt, error)
	Status(ctx context.Context, id string) (*jobs.Job, error)
	Delete(ctx context.Context, id string) (string, error)
	List(ctx context.Context, opts transfer.ListOptions) (*jobs.SummaryList, error)
	Health(ctx context.Context) error
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type inboxReporter interface {
	Status() inbox.Status
}

type Server struct {
	backend  Backend
	tracker  *jobs.Tracker
	views    *render.Views
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier
	inbox    inboxReporter

	uiEnabled      bool
	language       func() string
	pollInterval   time.Duration
	uploadRPS      int
	maxUploadBytes int64

	statusGroup singleflight.Group

	// baseCtx parents every request and is cancelled on Shutdown so that
	// open event streams return.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	router chi.Router
	server *http.Server
}

type Option func(*Server)

func WithUI(enabled bool) Option {
	return func(s *Server) {
		s.uiEnabled = enabled
	}
}

// WithLanguage sets the source of the label language setting. It is read
// on every request so runtime settings changes apply immediately.
func WithLanguage(fn func() string) Option {
	return func(s *Server) {
		s.language = fn
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithUploadLimits sets the per-IP upload rate (0 disables limiting) and
// the maximum multipart body size in megabytes.
func WithUploadLimits(rps, maxMB int) Option {
	return func(s *Server) {
		s.uploadRPS = rps
		if maxMB > 0 {
			s.maxUploadBytes = int64(maxMB) << 20
		}
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func WithInbox(reporter inboxReporter) Option {
	return func(s *Server) {
		s.inbox = reporter
	}
}

func NewServer(backend Backend, tracker *jobs.Tracker, opts ...Option) (*Server, error) {
	views, err := render.NewViews()
	if err != nil {
		return nil, err
	}
	s := &Server{
		backend:        backend,
		tracker:        tracker,
		views:          views,
		uiEnabled:      false,
		language:       func() string { return "es" },
		pollInterval:   jobs.DefaultInterval,
		maxUploadBytes: 50 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", s.handleListTracked)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Get("/summaries", s.handleListSummaries)
		r.Delete("/summaries/{id}", s.handleDeleteSummary)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/inbox", s.handleInbox)
	})

	if s.uiEnabled {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(render.Static())))
		r.Get("/", s.handleHome)
		r.Get("/how-it-works", s.handleHowItWorks)
		r.Get("/upload", s.handleUploadForm)
		r.With(rateLimit(s.uploadRPS, s.handleUploadRejected)).Post("/upload", s.handleUpload)
		r.Get("/jobs/{id}", s.handleJobPage)
		r.Get("/jobs/{id}/events", s.handleJobEvents)
		r.Get("/jobs/{id}/export.xlsx", s.handleExport)
		r.Get("/summaries", s.handleHistory)
		r.Post("/summaries/{id}/delete", s.handleHistoryDelete)
	}

	s.router = r
}

func (s *Server) labels(result *jobs.Result) *render.Labels {
	return render.LabelsFor(s.language(), result)
}

func (s *Server) refreshSeconds() int {
	secs := int(s.pollInterval / time.Second)
	return max(secs, 1)
}

func routeID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
