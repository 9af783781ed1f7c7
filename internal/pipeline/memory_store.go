package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a JobStore for single-process deployments and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("%s: %w", job.ID, ErrJobNotFound)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, from, to JobStatus) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if job.Status != from {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrInvalidTransition)
	}
	job.Status = to
	job.UpdatedAt = time.Now().UTC()
	return job.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	delete(s.jobs, id)
	return nil
}
