package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MimeLyc/study-assistant/internal/config"
	"github.com/MimeLyc/study-assistant/internal/httpapi"
	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/persistence"
	"github.com/MimeLyc/study-assistant/internal/render"
	"github.com/MimeLyc/study-assistant/internal/transfer"
	"github.com/MimeLyc/study-assistant/pkg/log"
)

// stateStore is the local database: the current job hand-off and the
// tracked job snapshots.
type stateStore interface {
	jobs.Store
	Recent(ctx context.Context, prefix string, limit int) ([]persistence.Entry, error)
	Close() error
}

// app is what every command works with once configuration is loaded.
type app struct {
	cfg     *config.Config
	backend httpapi.Backend
	store   stateStore

	stdout io.Writer
	stderr io.Writer
}

type opener func(ctx context.Context, envFile string, stdout, stderr io.Writer) (*app, error)

// openApp loads configuration (env file, environment, runtime settings
// file) and opens the backend client and the local store.
func openApp(_ context.Context, envFile string, stdout, stderr io.Writer) (*app, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	var opts []config.Option
	settings, err := config.LoadRuntimeSettingsFile(config.RuntimeSettingsFilePath())
	switch {
	case err == nil:
		opts = append(opts, config.WithRuntimeSettings(settings))
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))
	// stdout is reserved for command output
	log.GetLogger().SetOutput(stderr)

	client, err := transfer.NewClient(&transfer.Config{
		BaseURL:   cfg.Backend.URL,
		Timeout:   cfg.Backend.Timeout,
		UserAgent: "study-assistant/" + version,
	})
	if err != nil {
		return nil, err
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		backend: client,
		store:   store,
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *app) labels(result *jobs.Result) *render.Labels {
	return render.LabelsFor(a.cfg.System.Language, result)
}

func (a *app) poller(opts ...jobs.PollerOption) *jobs.Poller {
	opts = append([]jobs.PollerOption{jobs.WithMaxAttempts(a.cfg.Poll.MaxAttempts)}, opts...)
	return jobs.NewPoller(a.backend, a.cfg.Poll.Interval, opts...)
}

// reportedError wraps an error whose user message was already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// fail prints the localized message for err and marks it as reported.
func (a *app) fail(err error) error {
	log.Debug("Command failed: %v", err)
	fmt.Fprintln(a.stderr, a.labels(nil).Error(err))
	return &reportedError{err: err}
}
