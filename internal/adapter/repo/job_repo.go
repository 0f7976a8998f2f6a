package repo

import (
	"context"
	"fmt"
	"time"

	"imagequeue/internal/domain"
	"imagequeue/internal/infra"
	"imagequeue/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. Timestamps
// come from the database clock so every caller orders jobs the same way.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// EnsureSchema creates the jobs table and its indexes when missing.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QEnsureImageJobsSchema)
	return err
}

// Create inserts a new job record and fills in the store-assigned columns.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertImageJob,
		job.ID,
		job.SubjectRef,
		job.OwnerRef,
		job.Prompt,
		string(job.Status),
	)
	if err := row.Scan(&job.Version, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectImageJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// UpdateStatus updates job status and optionally error/result fields.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, fields domain.JobFields) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateImageJobStatus, jobID, string(status), fields.ResultRef, fields.Error)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionStatus performs the conditional status write.
func (r *JobRepositoryPG) TransitionStatus(ctx context.Context, jobID string, from domain.JobStatus, version int64, to domain.JobStatus, fields domain.JobFields) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QTransitionImageJobStatus,
		jobID,
		string(from),
		version,
		string(to),
		fields.ResultRef,
		fields.Error,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Heartbeat refreshes updated_at of a processing job.
func (r *JobRepositoryPG) Heartbeat(ctx context.Context, jobID string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QHeartbeatImageJob, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByStatus returns jobs in FIFO order.
func (r *JobRepositoryPG) ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListImageJobsByStatus, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MostRecentlyCompleted returns the completed job with the latest update.
func (r *JobRepositoryPG) MostRecentlyCompleted(ctx context.Context) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectLatestCompletedImageJob))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// CountPendingBefore counts pending jobs created strictly before createdAt.
func (r *JobRepositoryPG) CountPendingBefore(ctx context.Context, createdAt time.Time) (int, error) {
	var count int64
	if err := r.sql.QueryRow(ctx, sqlinline.QCountPendingImageJobsBefore, createdAt).Scan(&count); err != nil {
		return 0, err
	}
	return int(count), nil
}

// FailAllPending marks every pending job as failed with reason.
func (r *JobRepositoryPG) FailAllPending(ctx context.Context, reason string) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailPendingImageJobs, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteCreatedBefore removes jobs created before cutoff regardless of status.
func (r *JobRepositoryPG) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteImageJobsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	if err := row.Scan(
		&job.ID,
		&job.SubjectRef,
		&job.OwnerRef,
		&job.Prompt,
		&status,
		&job.ResultRef,
		&job.Error,
		&job.Version,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
