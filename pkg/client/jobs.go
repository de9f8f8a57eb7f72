package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// Job mirrors the server's job document.
type Job struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
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

func (j *Job) RecordID() string { return j.ID }

// Terminal reports whether the job will not change again.
func (j *Job) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed || j.Status == JobCancelled
}

type JobRequest struct {
	Kind  string      `json:"kind"`
	Input interface{} `json:"input,omitempty"`
}

// JobEvent is one frame of a job's event stream.
type JobEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Job       Job       `json:"-"`
}

// Jobs is the client for /jobs.
type Jobs struct {
	c *Client
	// PollInitial and PollMax bound Wait's backoff interval.
	PollInitial time.Duration
	PollMax     time.Duration
}

func (c *Client) Jobs() *Jobs {
	return &Jobs{c: c, PollInitial: 250 * time.Millisecond, PollMax: 5 * time.Second}
}

func (j *Jobs) url(parts ...string) string {
	u := j.c.BaseURL("jobs") + "/jobs"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (j *Jobs) Submit(ctx context.Context, req JobRequest) (*Job, error) {
	var out Job
	if err := j.c.doJSON(ctx, http.MethodPost, j.url(), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (j *Jobs) Get(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := j.c.doJSON(ctx, http.MethodGet, j.url(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (j *Jobs) List(ctx context.Context, filters Filters, page Page) (*PageResult[*Job], error) {
	return NewResource[*Job](j.c, "jobs").ListPage(ctx, filters, page)
}

// Cancel requests cancellation. A running job settles asynchronously.
func (j *Jobs) Cancel(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := j.c.doJSON(ctx, http.MethodDelete, j.url(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var errJobPending = errors.New("job still pending")

// Wait polls with exponential backoff until the job is terminal or ctx is
// done. API errors other than transient server failures end the wait.
func (j *Jobs) Wait(ctx context.Context, id string) (*Job, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = j.PollInitial
	b.MaxInterval = j.PollMax
	b.MaxElapsedTime = 0

	var last *Job
	op := func() error {
		job, err := j.Get(ctx, id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		last = job
		if !job.Terminal() {
			return errJobPending
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errJobPending) && ctx.Err() != nil {
			return last, ctx.Err()
		}
		return last, err
	}
	return last, nil
}

// Subscribe streams the job's events. The first event is a snapshot of its
// current state. The channel closes after a terminal event, when ctx is
// done or when the connection drops.
func (j *Jobs) Subscribe(ctx context.Context, id string) (<-chan JobEvent, error) {
	wsURL, err := toWebsocketURL(j.url(id, "events"))
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if j.c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+j.c.cfg.Token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeResponse(resp, nil)
		}
		return nil, &NetworkError{Method: http.MethodGet, URL: wsURL, Err: err}
	}

	events := make(chan JobEvent, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame struct {
				Type      string          `json:"type"`
				Timestamp time.Time       `json:"timestamp"`
				Data      json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(msg, &frame); err != nil {
				j.c.logger.Warn().Err(err).Msg("undecodable job event")
				continue
			}
			ev := JobEvent{Type: frame.Type, Timestamp: frame.Timestamp}
			if err := json.Unmarshal(frame.Data, &ev.Job); err != nil {
				j.c.logger.Warn().Err(err).Str("type", frame.Type).Msg("undecodable job payload")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Job.Terminal() {
				return
			}
		}
	}()
	return events, nil
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String(), nil
}
