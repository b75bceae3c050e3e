package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/study-assistant/pkg/log"
)

const defaultMaxTrackedJobs = 200

// Job sources. Every source except SourceLink is a fresh submission and
// becomes the current job.
const (
	SourceUpload = "upload"
	SourceInbox  = "inbox"
	SourceCLI    = "cli"
	SourceLink   = "link"
)

// Tracker follows many jobs at once, one poll cycle per identifier, and
// keeps the latest snapshot of each for the web views.
type Tracker struct {
	poller  *Poller
	store   Store
	maxJobs int

	mu      sync.RWMutex
	jobs    map[string]*TrackedJob
	cancels map[string]context.CancelFunc
	started bool

	// storeMu orders snapshot writes against deletes so a forgotten job is
	// never written back.
	storeMu sync.Mutex

	ctx      context.Context
	stop     context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTracker loads persisted snapshots from store, if any. Polling starts
// with Start.
func NewTracker(poller *Poller, store Store) *Tracker {
	ctx, stop := context.WithCancel(context.Background())
	t := &Tracker{
		poller:  poller,
		store:   store,
		maxJobs: defaultMaxTrackedJobs,
		jobs:    make(map[string]*TrackedJob),
		cancels: make(map[string]context.CancelFunc),
		ctx:     ctx,
		stop:    stop,
	}
	t.hydrateFromStore(context.Background())
	return t
}

// Track begins following id. The bool is false when id is already tracked;
// the existing snapshot is returned and no second poll cycle starts.
func (t *Tracker) Track(id, source string) (*TrackedJob, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	now := time.Now()

	t.mu.Lock()
	if existing, ok := t.jobs[id]; ok {
		snapshot := cloneTracked(existing)
		t.mu.Unlock()
		return snapshot, false
	}
	job := &TrackedJob{
		Job:       Job{ID: id, Status: StatusPending},
		Source:    source,
		StartedAt: now,
		CheckedAt: now,
	}
	t.jobs[id] = job
	started := t.started
	if started {
		t.launchLocked(id)
	}
	snapshot := cloneTracked(job)
	t.mu.Unlock()

	t.persist(snapshot)
	if source != SourceLink && t.store != nil {
		if err := RememberSubmitted(context.Background(), t.store, id); err != nil {
			log.Error("Failed to record current job %s: %v", id, err)
		}
	}
	return snapshot, true
}

func (t *Tracker) Get(id string) (*TrackedJob, bool) {
	t.mu.RLock()
	job, ok := t.jobs[id]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneTracked(job), true
}

// List returns snapshots, most recently started first.
func (t *Tracker) List() []*TrackedJob {
	t.mu.RLock()
	ret := make([]*TrackedJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		ret = append(ret, cloneTracked(job))
	}
	t.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].StartedAt.Equal(ret[j].StartedAt) {
			return ret[i].ID < ret[j].ID
		}
		return ret[i].StartedAt.After(ret[j].StartedAt)
	})
	return ret
}

// Forget stops polling id and drops its snapshot.
func (t *Tracker) Forget(id string) bool {
	t.mu.Lock()
	_, ok := t.jobs[id]
	if cancel, polling := t.cancels[id]; polling {
		cancel()
		delete(t.cancels, id)
	}
	delete(t.jobs, id)
	t.mu.Unlock()

	if ok {
		t.deleteFromStore([]string{id})
	}
	return ok
}

// Start resumes polling for every pending job and lets Track poll
// immediately from now on.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	for id, job := range t.jobs {
		if !job.Status.IsTerminal() {
			t.launchLocked(id)
		}
	}
}

// Stop cancels all poll cycles and waits for them to exit.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		t.stop()
		t.wg.Wait()
	})
}

func (t *Tracker) launchLocked(id string) {
	if t.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.cancels[id] = cancel
	t.wg.Add(1)
	go t.follow(ctx, id)
}

func (t *Tracker) follow(ctx context.Context, id string) {
	defer t.wg.Done()

	out := t.poller.Watch(ctx, id, func(job *Job) {
		t.update(id, job)
	})
	if ctx.Err() != nil {
		return
	}
	t.finish(id, out)
}

func (t *Tracker) update(id string, latest *Job) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	job.Job = *latest
	job.CheckedAt = time.Now()
	snapshot := cloneTracked(job)
	t.mu.Unlock()

	t.persist(snapshot)
}

func (t *Tracker) finish(id string, out Outcome) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.cancels, id)
	if out.Job != nil {
		job.Job = *out.Job
	}
	job.err = out.Err
	job.Notice = NoticeFor(out.Err)
	var procErr *ProcessingError
	switch {
	case out.Err == nil:
	case errors.As(out.Err, &procErr):
		job.Status = StatusError
		job.ErrorMessage = procErr.Message
	case errors.Is(out.Err, ErrPollLimit):
		job.Status = StatusError
		job.ErrorMessage = out.Err.Error()
	default:
		// transport failures end the cycle like a backend error
		job.Status = StatusError
		job.ErrorMessage = out.Err.Error()
	}
	job.CheckedAt = time.Now()
	pruned := t.pruneTerminalJobsLocked()
	snapshot := cloneTracked(job)
	t.mu.Unlock()

	if out.Err != nil {
		log.Warn("Job %s ended with error: %v", id, out.Err)
	} else {
		log.Info("Job %s finished", id)
	}
	t.persist(snapshot)
	t.deleteFromStore(pruned)
}

func (t *Tracker) pruneTerminalJobsLocked() []string {
	if t.maxJobs <= 0 || len(t.jobs) <= t.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(t.jobs))
	for id, job := range t.jobs {
		if job == nil || !job.Status.IsTerminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.CheckedAt})
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := min(len(t.jobs)-t.maxJobs, len(terminal))
	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		delete(t.jobs, terminal[i].id)
		pruned = append(pruned, terminal[i].id)
	}
	return pruned
}

func (t *Tracker) hydrateFromStore(ctx context.Context) {
	if t.store == nil {
		return
	}
	raw, err := t.store.ListPrefix(ctx, TrackedJobPrefix)
	if err != nil {
		log.Error("Failed to load tracked jobs: %v", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, value := range raw {
		var job TrackedJob
		if err := json.Unmarshal([]byte(value), &job); err != nil {
			log.Warn("Skipping unreadable tracked job %s: %v", key, err)
			continue
		}
		if job.ID == "" {
			continue
		}
		t.jobs[job.ID] = &job
	}
}

func (t *Tracker) persist(job *TrackedJob) {
	if t.store == nil || job == nil {
		return
	}
	t.storeMu.Lock()
	defer t.storeMu.Unlock()

	t.mu.RLock()
	_, tracked := t.jobs[job.ID]
	t.mu.RUnlock()
	if !tracked {
		return
	}
	if err := SaveTracked(context.Background(), t.store, job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func (t *Tracker) deleteFromStore(ids []string) {
	if t.store == nil {
		return
	}
	t.storeMu.Lock()
	defer t.storeMu.Unlock()
	for _, id := range ids {
		if err := t.store.Delete(context.Background(), TrackedJobPrefix+id); err != nil {
			log.Error("Failed to delete tracked job %s: %v", id, err)
		}
	}
}
