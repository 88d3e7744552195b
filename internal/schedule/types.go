package schedule

import (
	"context"
	"time"
)

// Job is a named recurring task.
type Job struct {
	Name    string
	Pattern string
	Run     func(ctx context.Context) error
}

// Entry describes a registered job for the admin console and logs.
type Entry struct {
	Name    string    `json:"name"`
	Pattern string    `json:"pattern"`
	Next    time.Time `json:"next"`
	Prev    time.Time `json:"prev"`
}
