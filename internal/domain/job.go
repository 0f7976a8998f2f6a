package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ZombieError is stored on processing jobs whose heartbeat expired.
const ZombieError = "timeout: processing heartbeat expired"

// ClearedError is stored on pending jobs failed in bulk by an administrator.
const ClearedError = "cleared by administrator"

// Terminal reports whether no further transition is expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Job is a unit of requested image generation. UpdatedAt doubles as the
// heartbeat while the job is processing; Version increases on every write and
// backs the conditional transitions.
type Job struct {
	ID         string
	SubjectRef string
	OwnerRef   string
	Prompt     string
	Status     JobStatus
	ResultRef  string
	Error      string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// JobFields lists the optional columns written together with a status change.
// Nil pointers leave the stored value untouched.
type JobFields struct {
	ResultRef *string
	Error     *string
}

// WithResult returns fields setting the result reference.
func WithResult(ref string) JobFields {
	return JobFields{ResultRef: &ref}
}

// WithError returns fields setting the error text.
func WithError(msg string) JobFields {
	return JobFields{Error: &msg}
}

// Apply copies the set fields onto job.
func (f JobFields) Apply(job *Job) {
	if f.ResultRef != nil {
		job.ResultRef = *f.ResultRef
	}
	if f.Error != nil {
		job.Error = *f.Error
	}
}

// Fresh reports whether a processing job's heartbeat is younger than timeout.
func (j *Job) Fresh(now time.Time, timeout time.Duration) bool {
	return now.Sub(j.UpdatedAt) < timeout
}

// Before orders jobs by creation time, breaking ties by id.
func (j *Job) Before(other *Job) bool {
	if j.CreatedAt.Equal(other.CreatedAt) {
		return j.ID < other.ID
	}
	return j.CreatedAt.Before(other.CreatedAt)
}
