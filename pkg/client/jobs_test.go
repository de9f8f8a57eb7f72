package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/carehub/internal/platform/jobs"
	"github.com/ehr/carehub/internal/platform/websocket"
)

type gateRunner struct {
	release chan struct{}
}

func (r *gateRunner) Validate(context.Context, json.RawMessage) error { return nil }

func (r *gateRunner) Run(ctx context.Context, _ json.RawMessage, report jobs.Reporter) (interface{}, error) {
	report.Progress(50, "waiting")
	select {
	case <-r.release:
		return map[string]int{"claims": 3}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newJobsClient(t *testing.T) (*Jobs, *gateRunner) {
	t.Helper()
	hub := websocket.NewHub(zerolog.Nop())
	mgr := jobs.NewManager(jobs.NewMemoryStore(), hub, zerolog.Nop(), 1)
	gate := &gateRunner{release: make(chan struct{})}
	mgr.Register("claims.batch", gate)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	jobs.NewHandler(mgr, hub).RegisterRoutes(e.Group("/api/v1"))
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})

	j := New(Config{BaseURL: srv.URL + "/api/v1"}).Jobs()
	j.PollInitial = 10 * time.Millisecond
	j.PollMax = 50 * time.Millisecond
	return j, gate
}

func TestJobs_SubmitAndWait(t *testing.T) {
	j, gate := newJobsClient(t)
	ctx := context.Background()

	job, err := j.Submit(ctx, JobRequest{Kind: "claims.batch", Input: map[string]string{"upload_id": "u-1"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != JobQueued {
		t.Errorf("status = %s", job.Status)
	}
	close(gate.release)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	done, err := j.Wait(waitCtx, job.ID)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != JobSucceeded || done.Progress != 100 || string(done.Result) != `{"claims":3}` {
		t.Errorf("finished job = %+v", done)
	}
}

func TestJobs_WaitHonoursContext(t *testing.T) {
	j, _ := newJobsClient(t)
	job, err := j.Submit(context.Background(), JobRequest{Kind: "claims.batch"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	last, err := j.Wait(ctx, job.ID)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if last == nil || last.Terminal() {
		t.Errorf("expected the last non-terminal state, got %+v", last)
	}
}

func TestJobs_Errors(t *testing.T) {
	j, _ := newJobsClient(t)
	ctx := context.Background()

	_, err := j.Submit(ctx, JobRequest{Kind: "assistant.reply"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Errorf("unknown kind: expected 400, got %v", err)
	}
	if _, err := j.Wait(ctx, "6b1d3c1e-2f0a-4e44-9c1c-0d8f0b7c1a11"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wait on missing job: expected ErrNotFound, got %v", err)
	}
	if _, err := j.Subscribe(ctx, "6b1d3c1e-2f0a-4e44-9c1c-0d8f0b7c1a11"); !errors.Is(err, ErrNotFound) {
		t.Errorf("subscribe to missing job: expected ErrNotFound, got %v", err)
	}
}

func TestJobs_CancelRunning(t *testing.T) {
	j, _ := newJobsClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job, _ := j.Submit(ctx, JobRequest{Kind: "claims.batch"})
	for {
		cur, err := j.Get(ctx, job.ID)
		if err != nil {
			t.Fatal(err)
		}
		if cur.Status == JobRunning {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := j.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	done, err := j.Wait(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != JobCancelled {
		t.Errorf("status = %s", done.Status)
	}
}

func TestJobs_Subscribe(t *testing.T) {
	j, gate := newJobsClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	job, err := j.Submit(ctx, JobRequest{Kind: "claims.batch"})
	if err != nil {
		t.Fatal(err)
	}
	events, err := j.Subscribe(ctx, job.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	first := <-events
	if first.Type != "job.snapshot" || first.Job.ID != job.ID {
		t.Fatalf("first event = %+v", first)
	}
	close(gate.release)

	var last JobEvent
	for ev := range events {
		last = ev
	}
	if last.Type != "job.succeeded" || last.Job.Status != JobSucceeded {
		t.Errorf("last event = %s / %s", last.Type, last.Job.Status)
	}
}
