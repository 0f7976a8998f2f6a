package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job records. No multi-document
// transaction is assumed; TransitionStatus is the only conditional write.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// UpdateStatus writes status and fields unconditionally, stamping UpdatedAt.
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, fields JobFields) error
	// TransitionStatus applies the write only when the stored status equals
	// from and the stored version equals version. It reports whether it won.
	TransitionStatus(ctx context.Context, jobID string, from JobStatus, version int64, to JobStatus, fields JobFields) (bool, error)
	// Heartbeat refreshes UpdatedAt while the job is still processing.
	Heartbeat(ctx context.Context, jobID string) (bool, error)
	// ListByStatus returns jobs ordered by CreatedAt then ID.
	ListByStatus(ctx context.Context, status JobStatus) ([]Job, error)
	// MostRecentlyCompleted returns nil without error when nothing completed yet.
	MostRecentlyCompleted(ctx context.Context) (*Job, error)
	CountPendingBefore(ctx context.Context, createdAt time.Time) (int, error)
	FailAllPending(ctx context.Context, reason string) (int, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SubjectStore updates denormalized fields on the external subject record.
type SubjectStore interface {
	SetField(ctx context.Context, subjectRef, field, value string) error
}
