package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/study-assistant/pkg/log"
)

// DefaultInterval is the fixed delay between status queries.
const DefaultInterval = 2 * time.Second

// StatusQuerier fetches the current state of a job.
type StatusQuerier interface {
	Status(ctx context.Context, id string) (*Job, error)
}

// Outcome is the single terminal result of a poll cycle. On success Err is
// nil and Job carries a non-nil Result. On a backend error Job is set and Err
// is a *ProcessingError.
type Outcome struct {
	Job *Job
	Err error
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Job != nil && o.Job.Status == StatusFinished
}

type PollerOption func(*Poller)

// WithObserver registers a callback for every observed status change of
// every poll cycle run by this poller.
func WithObserver(fn func(Job)) PollerOption {
	return func(p *Poller) {
		p.observer = fn
	}
}

// WithMaxAttempts bounds the number of status queries. Zero means unbounded.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n >= 0 {
			p.maxAttempts = n
		}
	}
}

// Poller repeatedly queries a job until it reaches a terminal status.
type Poller struct {
	querier     StatusQuerier
	interval    time.Duration
	maxAttempts int
	observer    func(Job)
}

func NewPoller(querier StatusQuerier, interval time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{querier: querier, interval: interval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Poll blocks until the job is terminal, ctx is done, or the attempt limit
// is hit. The first query is issued one interval after the call.
func (p *Poller) Poll(ctx context.Context, id string) Outcome {
	return p.Watch(ctx, id, nil)
}

// Watch is Poll with an observer that sees every status transition,
// including the first observed status.
func (p *Poller) Watch(ctx context.Context, id string, observe func(*Job)) Outcome {
	id = strings.TrimSpace(id)
	if id == "" {
		return Outcome{Err: ErrMissingIdentifier}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		attempts int
		last     Status
	)
	for {
		select {
		case <-ctx.Done():
			return Outcome{Err: ctx.Err()}
		case <-ticker.C:
		}

		attempts++
		job, err := p.querier.Status(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{Err: ctxErr}
			}
			log.Warn("Status query for job %s failed: %v", id, err)
			return Outcome{Err: fmt.Errorf("query status of job %s: %w", id, err)}
		}
		if job == nil {
			return Outcome{Err: fmt.Errorf("query status of job %s: empty response", id)}
		}
		if job.ID == "" {
			job.ID = id
		}

		if job.Status != last {
			log.Debug("Job %s is %s (attempt %d)", id, job.Status, attempts)
			last = job.Status
			if p.observer != nil {
				p.observer(*job)
			}
			if observe != nil {
				observe(job)
			}
		}

		switch job.Status {
		case StatusFinished:
			if job.Result == nil {
				job.Result = &Result{}
			}
			return Outcome{Job: job}
		case StatusError:
			return Outcome{Job: job, Err: newProcessingError(job)}
		}

		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			return Outcome{Job: job, Err: ErrPollLimit}
		}
	}
}

// Start runs Poll in the background and hands the outcome to deliver. The
// returned cancel stops polling and waits for an in-flight delivery, so no
// delivery happens after cancel returns. deliver must not call cancel.
// An outcome caused by cancellation is never delivered.
func (p *Poller) Start(ctx context.Context, id string, deliver func(Outcome)) (cancel func()) {
	ctx, stop := context.WithCancel(ctx)

	var (
		mu        sync.Mutex
		cancelled bool
	)
	go func() {
		out := p.Poll(ctx, id)
		if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if cancelled || deliver == nil {
			return
		}
		deliver(out)
	}()

	return func() {
		mu.Lock()
		cancelled = true
		mu.Unlock()
		stop()
	}
}
