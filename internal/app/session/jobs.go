package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/qna-labs/qna-service/internal/domain"
)

// Job is a deferred streaming request: the message is held until the
// client fetches the stream.
type Job struct {
	SessionID domain.SessionID
	Message   string
}

// JobStore registers streaming jobs. Fetching a job consumes it, so a job
// identifier is valid for exactly one stream fetch. The store has its own
// lock, independent of the session registry and of any session guard.
type JobStore struct {
	mu   sync.Mutex
	jobs map[domain.JobID]Job
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[domain.JobID]Job),
	}
}

// Put registers a job and returns its identifier.
func (s *JobStore) Put(job Job) domain.JobID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.JobID("job-" + uuid.NewString())
	for _, exists := s.jobs[id]; exists; _, exists = s.jobs[id] {
		id = domain.JobID("job-" + uuid.NewString())
	}
	s.jobs[id] = job
	return id
}

// Take removes and returns the job, failing with ErrNotFound if it does
// not exist or was already fetched.
func (s *JobStore) Take(id domain.JobID) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	delete(s.jobs, id)
	return job, nil
}

// Len reports how many jobs are pending.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
