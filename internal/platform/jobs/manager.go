package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carehub/internal/platform/websocket"
)

// Notifier receives job events. *websocket.Hub satisfies it.
type Notifier interface {
	Publish(ctx context.Context, event websocket.Event) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, websocket.Event) error { return nil }

// Manager owns the queue and the worker pool.
type Manager struct {
	store    Store
	notifier Notifier
	logger   zerolog.Logger
	workers  int
	queue    chan uuid.UUID
	now      func() time.Time
	bootAt   time.Time

	mu        sync.Mutex
	runners   map[string]Runner
	running   map[uuid.UUID]context.CancelFunc
	cancelled map[uuid.UUID]bool

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewManager builds a manager. workers below 1 becomes 1; notifier may be nil.
func NewManager(store Store, notifier Notifier, logger zerolog.Logger, workers int) *Manager {
	if workers < 1 {
		workers = 1
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Manager{
		store:     store,
		notifier:  notifier,
		logger:    logger.With().Str("component", "jobs").Logger(),
		workers:   workers,
		queue:     make(chan uuid.UUID, workers*32),
		now:       time.Now,
		bootAt:    time.Now().UTC(),
		runners:   make(map[string]Runner),
		running:   make(map[uuid.UUID]context.CancelFunc),
		cancelled: make(map[uuid.UUID]bool),
	}
}

// Register binds a runner to a job kind. A second registration replaces the first.
func (m *Manager) Register(kind string, r Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runners[kind] = r
}

// Kinds lists registered job kinds in sorted order.
func (m *Manager) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]string, 0, len(m.runners))
	for k := range m.runners {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (m *Manager) runner(kind string) (Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[kind]
	return r, ok
}

// Start launches the workers. Jobs a previous process left queued or
// running are marked failed first; their work cannot be resumed.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("jobs: manager already started")
	}
	m.started = true
	m.baseCtx, m.stop = context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Unlock()

	if err := m.failInterrupted(ctx); err != nil {
		return err
	}
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.work()
	}
	m.logger.Info().Int("workers", m.workers).Strs("kinds", m.Kinds()).Msg("job workers started")
	return nil
}

func (m *Manager) failInterrupted(ctx context.Context) error {
	for _, status := range []Status{StatusQueued, StatusRunning} {
		stale, _, err := m.store.List(ctx, ListOptions{Status: status})
		if err != nil {
			return fmt.Errorf("list interrupted jobs: %w", err)
		}
		for _, j := range stale {
			if !j.CreatedAt.Before(m.bootAt) {
				continue
			}
			if _, err := m.transition(ctx, j.ID, func(j *Job) error {
				m.finish(j, StatusFailed)
				j.Error = "interrupted by server restart"
				return nil
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Shutdown cancels running jobs and waits for the workers to exit or ctx
// to expire. Jobs still queued stay queued and are failed on the next Start.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.stop()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates input with the kind's runner and queues a new job.
func (m *Manager) Submit(ctx context.Context, kind string, input json.RawMessage, submittedBy string) (*Job, error) {
	r, ok := m.runner(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := r.Validate(ctx, input); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	job := &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Status:      StatusQueued,
		Input:       input,
		SubmittedBy: submittedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == cap(m.queue) {
		return nil, ErrQueueFull
	}
	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	m.queue <- job.ID
	m.notify(ctx, "job.queued", job)
	m.logger.Info().Str("job_id", job.ID.String()).Str("kind", kind).Msg("job queued")
	return job.clone(), nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, opts ListOptions) ([]*Job, int, error) {
	return m.store.List(ctx, opts)
}

// Cancel stops a job. A queued job is cancelled immediately; a running job
// has its context cancelled and settles once the runner returns.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*Job, error) {
	return m.transition(ctx, id, func(j *Job) error {
		switch {
		case j.Status.Terminal():
			return ErrJobFinished
		case j.Status == StatusQueued:
			m.finish(j, StatusCancelled)
			j.Message = "cancelled before start"
		default:
			m.cancelled[id] = true
			j.Message = "cancellation requested"
			if cancel, ok := m.running[id]; ok {
				cancel()
			}
		}
		return nil
	})
}

// transition applies fn to the stored job under the manager lock, saves the
// result and announces it.
func (m *Manager) transition(ctx context.Context, id uuid.UUID, fn func(*Job) error) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := job.Status
	if err := fn(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", id, err)
	}

	eventType := "job.progress"
	if job.Status != before {
		eventType = "job." + string(job.Status)
	}
	m.notify(ctx, eventType, job)
	return job.clone(), nil
}

func (m *Manager) finish(j *Job, status Status) {
	now := m.now().UTC()
	j.Status = status
	j.FinishedAt = &now
	if status == StatusSucceeded {
		j.Progress = 100
	}
}

func (m *Manager) notify(ctx context.Context, eventType string, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("encode job event")
		return
	}
	ev := websocket.Event{Type: eventType, Topic: Topic(job.ID), Data: data}
	if err := m.notifier.Publish(ctx, ev); err != nil {
		m.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("publish job event")
	}
}

func (m *Manager) work() {
	defer m.wg.Done()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case id := <-m.queue:
			m.run(id)
		}
	}
}

var errSkip = errors.New("skip")

func (m *Manager) run(id uuid.UUID) {
	ctx, cancel := context.WithCancel(m.baseCtx)
	defer cancel()
	store := context.WithoutCancel(ctx)

	job, err := m.transition(store, id, func(j *Job) error {
		if j.Status != StatusQueued {
			return errSkip
		}
		j.Status = StatusRunning
		j.Message = "started"
		m.running[id] = cancel
		return nil
	})
	if err != nil {
		if !errors.Is(err, errSkip) {
			m.logger.Error().Err(err).Str("job_id", id.String()).Msg("start job")
		}
		return
	}

	log := m.logger.With().Str("job_id", id.String()).Str("kind", job.Kind).Logger()
	r, ok := m.runner(job.Kind)
	var (
		result interface{}
		runErr error
	)
	if !ok {
		runErr = fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	} else {
		result, runErr = m.invoke(ctx, r, job.Input, &reporter{m: m, ctx: store, id: id})
	}

	var encoded json.RawMessage
	if runErr == nil && result != nil {
		if encoded, err = json.Marshal(result); err != nil {
			runErr = fmt.Errorf("encode result: %w", err)
		}
	}

	final, err := m.transition(store, id, func(j *Job) error {
		delete(m.running, id)
		userCancel := m.cancelled[id]
		delete(m.cancelled, id)
		switch {
		case runErr == nil:
			m.finish(j, StatusSucceeded)
			j.Result = encoded
			j.Message = "completed"
		case userCancel && ctx.Err() != nil:
			m.finish(j, StatusCancelled)
			j.Message = "cancelled"
		case ctx.Err() != nil:
			m.finish(j, StatusFailed)
			j.Error = "server shutting down"
		default:
			m.finish(j, StatusFailed)
			j.Error = runErr.Error()
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("finish job")
		return
	}
	log.Info().Str("status", string(final.Status)).Dur("duration", final.UpdatedAt.Sub(final.CreatedAt)).Msg("job finished")
}

func (m *Manager) invoke(ctx context.Context, r Runner, input json.RawMessage, rep Reporter) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("runner panic: %v", p)
		}
	}()
	return r.Run(ctx, input, rep)
}

type reporter struct {
	m   *Manager
	ctx context.Context
	id  uuid.UUID
}

func (r *reporter) Progress(percent int, message string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 99 {
		percent = 99
	}
	_, err := r.m.transition(r.ctx, r.id, func(j *Job) error {
		if j.Status != StatusRunning {
			return errSkip
		}
		if percent > j.Progress {
			j.Progress = percent
		}
		if message != "" {
			j.Message = message
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSkip) {
		r.m.logger.Warn().Err(err).Str("job_id", r.id.String()).Msg("report progress")
	}
}
