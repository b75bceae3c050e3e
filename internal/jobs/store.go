package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CurrentJobKey holds the identifier of the most recent submission.
const CurrentJobKey = "current_job"

// TrackedJobPrefix namespaces tracked job snapshots in the store.
const TrackedJobPrefix = "job:"

// Store is the small key-value surface the tracker needs: the current job
// hand-off and tracked job snapshots for restart recovery.
type Store interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) (map[string]string, error)
}

// RememberSubmitted records id as the current job, replacing any previous one.
func RememberSubmitted(ctx context.Context, store Store, id string) error {
	if store == nil {
		return errors.New("no hand-off store configured")
	}
	if strings.TrimSpace(id) == "" {
		return ErrMissingIdentifier
	}
	return store.Put(ctx, CurrentJobKey, id)
}

// LastSubmitted returns the current job identifier, or ErrMissingIdentifier
// when nothing has been submitted yet.
func LastSubmitted(ctx context.Context, store Store) (string, error) {
	if store == nil {
		return "", ErrMissingIdentifier
	}
	id, ok, err := store.Get(ctx, CurrentJobKey)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(id) == "" {
		return "", ErrMissingIdentifier
	}
	return id, nil
}

// SaveTracked writes a tracked job snapshot under TrackedJobPrefix.
func SaveTracked(ctx context.Context, store Store, job *TrackedJob) error {
	if store == nil || job == nil {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return store.Put(ctx, TrackedJobPrefix+job.ID, string(data))
}

// LoadTracked reads one tracked job snapshot.
func LoadTracked(ctx context.Context, store Store, id string) (*TrackedJob, bool, error) {
	if store == nil {
		return nil, false, nil
	}
	raw, ok, err := store.Get(ctx, TrackedJobPrefix+id)
	if err != nil || !ok {
		return nil, false, err
	}
	var job TrackedJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, false, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, true, nil
}
