package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/study-assistant/internal/config"
)

type fakeScheduler struct {
	called bool
	err    error
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.called = true
	return f.err
}

type fakeWatcher struct {
	started chan struct{}
	stopped chan struct{}
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{started: make(chan struct{}), stopped: make(chan struct{})}
}

func (f *fakeWatcher) Watch(ctx context.Context) error {
	close(f.started)
	<-ctx.Done()
	close(f.stopped)
	return nil
}

type fakeCron struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeCron) Start() {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
}

func (f *fakeCron) Stop() context.Context {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func (f *fakeCron) state() (started, stopped bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

type fakeHTTP struct {
	listenCalled chan struct{}
	listenErr    error
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func testServeConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Addr:      "127.0.0.1:0",
			UIEnabled: true,
		},
	}
}

func TestRunWithComponents_StartsCronWatcherAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := &fakeScheduler{}
	watch := newFakeWatcher()
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, testServeConfig(), scheduler, watch, cronEngine, httpSrv)
	}()

	for name, ch := range map[string]chan struct{}{"http server": httpSrv.listenCalled, "watcher": watch.started} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s did not start", name)
		}
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, scheduler.called)
	started, stopped := cronEngine.state()
	assert.True(t, started)
	assert.True(t, stopped)
	select {
	case <-watch.stopped:
	default:
		t.Fatal("watcher still running")
	}
}

func TestRunWithComponents_WithoutInbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, testServeConfig(), nil, nil, &fakeCron{}, httpSrv)
	}()
	<-httpSrv.listenCalled
	cancel()
	require.NoError(t, <-doneCh)
}

func TestRunWithComponents_ScheduleErrorStopsStartup(t *testing.T) {
	scheduler := &fakeScheduler{err: errors.New("bad cron")}
	cronEngine := &fakeCron{}

	err := runWithComponents(context.Background(), testServeConfig(), scheduler, nil, cronEngine, newFakeHTTP())
	require.ErrorContains(t, err, "bad cron")
	started, _ := cronEngine.state()
	assert.False(t, started)
}

func TestRunWithComponents_ListenError(t *testing.T) {
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address in use")
	watch := newFakeWatcher()

	err := runWithComponents(context.Background(), testServeConfig(), nil, watch, &fakeCron{}, httpSrv)
	require.ErrorContains(t, err, "address in use")
	<-watch.stopped
}
