package persistence

import "time"

// Entry is one stored key with its last write time.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
