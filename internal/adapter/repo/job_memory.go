package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"imagequeue/internal/domain"
)

// MemoryJobRepository keeps jobs in process memory. It backs local runs and
// tests; each method copies records in and out so callers never share state
// with the store, mirroring what a remote document store would do.
type MemoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
	now  func() time.Time
}

// NewMemoryJobRepository creates an empty store. A nil clock uses time.Now.
func NewMemoryJobRepository(now func() time.Time) *MemoryJobRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryJobRepository{jobs: make(map[string]domain.Job), now: now}
}

func (m *MemoryJobRepository) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	job.Version = 1
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryJobRepository) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (m *MemoryJobRepository) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, fields domain.JobFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	m.write(&job, status, fields)
	return nil
}

func (m *MemoryJobRepository) TransitionStatus(_ context.Context, jobID string, from domain.JobStatus, version int64, to domain.JobStatus, fields domain.JobFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != from || job.Version != version {
		return false, nil
	}
	m.write(&job, to, fields)
	return true, nil
}

func (m *MemoryJobRepository) Heartbeat(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	m.write(&job, job.Status, domain.JobFields{})
	return true, nil
}

func (m *MemoryJobRepository) ListByStatus(_ context.Context, status domain.JobStatus) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, job := range m.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out, nil
}

func (m *MemoryJobRepository) MostRecentlyCompleted(_ context.Context) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Job
	for _, job := range m.jobs {
		if job.Status != domain.JobStatusCompleted {
			continue
		}
		if latest == nil || job.UpdatedAt.After(latest.UpdatedAt) {
			j := job
			latest = &j
		}
	}
	return latest, nil
}

func (m *MemoryJobRepository) CountPendingBefore(_ context.Context, createdAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusPending && job.CreatedAt.Before(createdAt) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryJobRepository) FailAllPending(_ context.Context, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, job := range m.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		m.write(&job, domain.JobStatusFailed, domain.WithError(reason))
		count++
	}
	return count, nil
}

func (m *MemoryJobRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, job := range m.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(m.jobs, id)
			count++
		}
	}
	return count, nil
}

// Put stores job verbatim, including its timestamps and version. Tests use
// it to stage records such as stale processing jobs.
func (m *MemoryJobRepository) Put(job domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.Version == 0 {
		job.Version = 1
	}
	m.jobs[job.ID] = job
}

// write must be called with mu held.
func (m *MemoryJobRepository) write(job *domain.Job, status domain.JobStatus, fields domain.JobFields) {
	job.Status = status
	fields.Apply(job)
	job.Version++
	job.UpdatedAt = m.now()
	m.jobs[job.ID] = *job
}

var _ domain.JobRepository = (*MemoryJobRepository)(nil)
