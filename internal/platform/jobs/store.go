package jobs

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists jobs.
type Store interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	List(ctx context.Context, opts ListOptions) ([]*Job, int, error)
}

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *MemoryStore) Save(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.clone(), nil
}

func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Job, int, error) {
	s.mu.RLock()
	var all []*Job
	for _, j := range s.jobs {
		if opts.matches(j) {
			all = append(all, j.clone())
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(all)
	return opts.page(all), len(all), nil
}

func sortNewestFirst(jobs []*Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID.String() < jobs[k].ID.String()
		}
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
}
