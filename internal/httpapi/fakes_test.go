package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/MimeLyc/study-assistant/internal/config"
	"github.com/MimeLyc/study-assistant/internal/inbox"
	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/transfer"
)

// fakeBackend answers status queries from a per-job script; the last
// step repeats.
type fakeBackend struct {
	mu sync.Mutex

	scripts     map[string][]*jobs.Job
	statusErr   error
	statusCalls map[string]int
	gate        chan struct{}

	submitted [][]transfer.File
	submitErr error
	nextID    string

	deleted   []string
	deleteErr error

	summaries *jobs.SummaryList
	listErr   error
	lastList  transfer.ListOptions

	healthErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		scripts:     make(map[string][]*jobs.Job),
		statusCalls: make(map[string]int),
		nextID:      "job-new",
		summaries:   &jobs.SummaryList{},
	}
}

func (f *fakeBackend) script(id string, steps ...*jobs.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, step := range steps {
		step.ID = id
	}
	f.scripts[id] = steps
}

func (f *fakeBackend) Submit(_ context.Context, files []transfer.File) (*jobs.SubmitReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, files)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &jobs.SubmitReceipt{UUID: f.nextID, Status: jobs.StatusPending}, nil
}

func (f *fakeBackend) Status(ctx context.Context, id string) (*jobs.Job, error) {
	f.mu.Lock()
	gate := f.gate
	n := f.statusCalls[id]
	f.statusCalls[id] = n + 1
	err := f.statusErr
	steps := f.scripts[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return &jobs.Job{ID: id, Status: jobs.StatusPending}, nil
	}
	step := *steps[min(n, len(steps)-1)]
	return &step, nil
}

func (f *fakeBackend) Delete(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return "", f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return "Summary " + id + " deleted successfully", nil
}

func (f *fakeBackend) List(_ context.Context, opts transfer.ListOptions) (*jobs.SummaryList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.summaries, nil
}

func (f *fakeBackend) Health(context.Context) error {
	return f.healthErr
}

func (f *fakeBackend) StatusCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[id]
}

func (f *fakeBackend) Submitted() [][]transfer.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]transfer.File(nil), f.submitted...)
}

func (f *fakeBackend) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeBackend) LastList() transfer.ListOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastList
}

type fakeSettingsStore struct {
	mu      sync.Mutex
	current config.RuntimeSettings
	updates int
}

func (s *fakeSettingsStore) GetRuntimeSettings() (config.RuntimeSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *fakeSettingsStore) UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
	s.updates++
	return next, nil
}

type fakeInbox struct{ status inbox.Status }

func (f fakeInbox) Status() inbox.Status { return f.status }

func pendingStep() *jobs.Job { return &jobs.Job{Status: jobs.StatusPending} }

func finishedStep(r *jobs.Result) *jobs.Job {
	return &jobs.Job{Status: jobs.StatusFinished, Result: r}
}

func failedStep(msg string) *jobs.Job {
	return &jobs.Job{Status: jobs.StatusError, ErrorMessage: msg}
}

func sampleResult() *jobs.Result {
	return &jobs.Result{
		BulletPoints: []jobs.BulletPoint{
			{Point: "Cells are the basic unit of life", ImportanceLevel: "high"},
			{Point: "Mitochondria produce energy", ImportanceLevel: "medium"},
		},
		QuizQuestions: []jobs.QuizQuestion{{
			Question:      "What produces energy in the cell?",
			OptionA:       "Nucleus",
			OptionB:       "Mitochondria",
			OptionC:       "Ribosome",
			OptionD:       "Membrane",
			CorrectAnswer: "B",
			Explanation:   "Mitochondria run cellular respiration.",
		}},
		Flashcards: []jobs.Flashcard{{Front: "Cell", Back: "Basic unit of life", Category: "biology"}},
	}
}

const testPollInterval = 5 * time.Millisecond
