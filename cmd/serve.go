package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/study-assistant/internal/config"
	"github.com/MimeLyc/study-assistant/internal/httpapi"
	"github.com/MimeLyc/study-assistant/internal/inbox"
	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/pkg/log"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type watcher interface {
	Watch(ctx context.Context) error
}

type cronRunner interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

const shutdownTimeout = 10 * time.Second

func newServeCmd(current func() *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web shell, the job tracker and the inbox scanner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	tracker := jobs.NewTracker(a.poller(), a.store)
	tracker.Start()
	defer tracker.Stop()

	settingsStore, err := config.NewRuntimeSettingsStore(config.RuntimeSettingsFilePath(), cfg.RuntimeSettings())
	if err != nil {
		return fmt.Errorf("runtime settings: %w", err)
	}

	var language atomic.Value
	language.Store(cfg.System.Language)

	cronEngine := cron.New()
	var (
		inboxSvc *inbox.Inbox
		sched    scheduler
		watch    watcher
	)
	if cfg.Inbox.Enabled() {
		inboxSvc, err = inbox.New(inbox.Config{
			Dir:         cfg.Inbox.Dir,
			CronExpr:    cfg.Inbox.CronExpr,
			Concurrency: cfg.Inbox.Concurrency,
		}, a.backend, tracker, a.store, cronEngine)
		if err != nil {
			return err
		}
		sched = inboxSvc
		if cfg.Inbox.Watch {
			watch = inboxSvc
		}
	}

	// backend_url and poll_interval_seconds take effect on the next start
	apply := func(next config.RuntimeSettings) error {
		language.Store(next.Language)
		if inboxSvc != nil {
			return inboxSvc.Reschedule(ctx, next.InboxCron)
		}
		return nil
	}

	opts := []httpapi.Option{
		httpapi.WithUI(cfg.HTTP.UIEnabled),
		httpapi.WithLanguage(func() string { return language.Load().(string) }),
		httpapi.WithPollInterval(cfg.Poll.Interval),
		httpapi.WithUploadLimits(cfg.HTTP.UploadRPS, cfg.HTTP.MaxUploadMB),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(apply),
	}
	if inboxSvc != nil {
		opts = append(opts, httpapi.WithInbox(inboxSvc))
	}
	srv, err := httpapi.NewServer(a.backend, tracker, opts...)
	if err != nil {
		return err
	}

	return runWithComponents(ctx, cfg, sched, watch, cronEngine, srv)
}

// runWithComponents schedules the inbox, starts cron, the optional folder
// watcher and the HTTP server, and shuts everything down when ctx is done.
// sched and watch may be nil.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, watch watcher, cronEngine cronRunner, httpSrv httpServer) error {
	if sched != nil {
		if err := sched.Schedule(ctx); err != nil {
			return fmt.Errorf("schedule inbox: %w", err)
		}
	}

	cronEngine.Start()
	defer func() {
		stopCtx := cronEngine.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(shutdownTimeout):
			log.Warn("Timed out waiting for running inbox scans")
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()
	if watch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch.Watch(runCtx); err != nil {
				log.Error("Inbox watcher stopped: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
