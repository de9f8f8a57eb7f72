// Package jobs runs long operations in the background. Callers submit a job,
// then poll it or subscribe to its websocket topic until it reaches a
// terminal state.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type Job struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedBy string          `json:"submitted_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

func (j *Job) clone() *Job {
	cp := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

var (
	ErrJobNotFound = errors.New("job not found")
	ErrUnknownKind = errors.New("unknown job kind")
	ErrJobFinished = errors.New("job already finished")
	ErrQueueFull   = errors.New("job queue is full")
)

// Reporter lets a runner publish progress. Percentages are clamped to
// 0..99 while running and never move backwards.
type Reporter interface {
	Progress(percent int, message string)
}

// Runner executes one kind of job.
type Runner interface {
	// Validate checks the input at submit time, before anything is queued.
	Validate(ctx context.Context, input json.RawMessage) error
	// Run does the work. It should return promptly once ctx is done.
	Run(ctx context.Context, input json.RawMessage, report Reporter) (result interface{}, err error)
}

// ListOptions filters job listings.
type ListOptions struct {
	Kind   string
	Status Status
	Limit  int
	Offset int
}

func (o ListOptions) matches(j *Job) bool {
	return (o.Kind == "" || j.Kind == o.Kind) && (o.Status == "" || j.Status == o.Status)
}

// page slices a filtered, newest-first list.
func (o ListOptions) page(all []*Job) []*Job {
	start := o.Offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if o.Limit > 0 && start+o.Limit < end {
		end = start + o.Limit
	}
	return all[start:end]
}

// Topic is the websocket topic carrying a job's events.
func Topic(id uuid.UUID) string {
	return "job:" + id.String()
}
