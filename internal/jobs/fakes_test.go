package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type scriptedStep struct {
	job *Job
	err error
}

// scriptedQuerier replays steps in order and repeats the last one.
type scriptedQuerier struct {
	mu    sync.Mutex
	steps []scriptedStep
	calls int
	ids   []string
}

func newScriptedQuerier(steps ...scriptedStep) *scriptedQuerier {
	return &scriptedQuerier{steps: steps}
}

func (q *scriptedQuerier) Status(_ context.Context, id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	idx := min(q.calls, len(q.steps)-1)
	q.calls++
	step := q.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	job := *step.job
	return &job, nil
}

func (q *scriptedQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func pending() scriptedStep {
	return scriptedStep{job: &Job{Status: StatusPending}}
}

func finished(result *Result) scriptedStep {
	return scriptedStep{job: &Job{Status: StatusFinished, Result: result}}
}

func failed(msg string) scriptedStep {
	return scriptedStep{job: &Job{Status: StatusError, ErrorMessage: msg}}
}

func broken(msg string) scriptedStep {
	return scriptedStep{err: errors.New(msg)}
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	puts int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.puts++
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memoryStore) ListPrefix(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[string]string)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			ret[k] = v
		}
	}
	return ret, nil
}

// gatedStore blocks Put once armed until release is closed.
type gatedStore struct {
	*memoryStore
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		memoryStore: newMemoryStore(),
		armed:       make(chan struct{}),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (s *gatedStore) arm() { close(s.armed) }

func (s *gatedStore) Put(ctx context.Context, key, value string) error {
	select {
	case <-s.armed:
		select {
		case s.entered <- struct{}{}:
		default:
		}
		<-s.release
	default:
	}
	return s.memoryStore.Put(ctx, key, value)
}
