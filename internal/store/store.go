// Package store holds the in-memory job registry. It is the single source
// of truth for job state; all access goes through its synchronized methods
// and no I/O happens under its lock.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/stemsplit/api/internal/model"
)

var (
	ErrNotFound    = errors.New("job not found")
	ErrDuplicateID = errors.New("job id already exists")
)

// Store is a concurrency-safe registry of jobs keyed by job id.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func New() *Store {
	return &Store{jobs: make(map[string]*model.Job)}
}

// Create inserts a new job record. Fails only on an id collision.
func (s *Store) Create(job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrDuplicateID
	}
	j := job.Clone()
	s.jobs[job.ID] = &j
	return nil
}

// Get returns a copy of the job, so callers never observe partial writes.
func (s *Store) Get(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return job.Clone(), nil
}

// Update applies mutate to the stored record under the lock.
func (s *Store) Update(id string, mutate func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	mutate(job)
	return nil
}

// TryTransition atomically moves the job from one status to another. It
// returns false when the job is absent or not in the expected status; this
// check-and-set is what prevents two callers from starting the same job.
func (s *Store) TryTransition(id string, from, to model.JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != from {
		return false
	}
	job.Status = to
	return true
}

// Delete removes the record. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// ExpiredBefore returns the ids of jobs created before the cutoff.
func (s *Store) ExpiredBefore(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of registered jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
