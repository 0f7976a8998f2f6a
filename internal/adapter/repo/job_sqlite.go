package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"imagequeue/internal/domain"
	"imagequeue/internal/infra"
	"imagequeue/internal/sqlinline"
)

// JobRepositorySQLite implements domain.JobRepository on a single-node
// SQLite file. Timestamps are written by the repository clock as Unix
// nanoseconds.
type JobRepositorySQLite struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewSQLiteJobRepository wraps an opened database. A nil clock uses time.Now.
func NewSQLiteJobRepository(db *sql.DB, logger zerolog.Logger, now func() time.Time) *JobRepositorySQLite {
	if now == nil {
		now = time.Now
	}
	return &JobRepositorySQLite{db: db, logger: logger, now: now}
}

// EnsureSchema creates the jobs table and its indexes when missing.
func (r *JobRepositorySQLite) EnsureSchema(ctx context.Context) error {
	_, err := r.exec(ctx, sqlinline.QSQLiteEnsureImageJobsSchema)
	return err
}

func (r *JobRepositorySQLite) Create(ctx context.Context, job *domain.Job) error {
	now := r.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	job.Version = 1
	_, err := r.exec(ctx, sqlinline.QSQLiteInsertImageJob,
		job.ID,
		job.SubjectRef,
		job.OwnerRef,
		job.Prompt,
		string(job.Status),
		job.CreatedAt.UnixNano(),
		job.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepositorySQLite) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	body, err := r.body(sqlinline.QSQLiteSelectImageJob)
	if err != nil {
		return nil, err
	}
	job, err := scanSQLiteJob(r.db.QueryRowContext(ctx, body, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositorySQLite) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, fields domain.JobFields) error {
	n, err := r.exec(ctx, sqlinline.QSQLiteUpdateImageJobStatus,
		string(status),
		nullString(fields.ResultRef),
		nullString(fields.Error),
		r.now().UnixNano(),
		jobID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositorySQLite) TransitionStatus(ctx context.Context, jobID string, from domain.JobStatus, version int64, to domain.JobStatus, fields domain.JobFields) (bool, error) {
	n, err := r.exec(ctx, sqlinline.QSQLiteTransitionImageJobStatus,
		string(to),
		nullString(fields.ResultRef),
		nullString(fields.Error),
		r.now().UnixNano(),
		jobID,
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *JobRepositorySQLite) Heartbeat(ctx context.Context, jobID string) (bool, error) {
	n, err := r.exec(ctx, sqlinline.QSQLiteHeartbeatImageJob, r.now().UnixNano(), jobID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *JobRepositorySQLite) ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	body, err := r.body(sqlinline.QSQLiteListImageJobsByStatus)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, body, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepositorySQLite) MostRecentlyCompleted(ctx context.Context) (*domain.Job, error) {
	body, err := r.body(sqlinline.QSQLiteSelectLatestCompletedImageJob)
	if err != nil {
		return nil, err
	}
	job, err := scanSQLiteJob(r.db.QueryRowContext(ctx, body))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositorySQLite) CountPendingBefore(ctx context.Context, createdAt time.Time) (int, error) {
	body, err := r.body(sqlinline.QSQLiteCountPendingImageJobsBefore)
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.QueryRowContext(ctx, body, createdAt.UnixNano()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *JobRepositorySQLite) FailAllPending(ctx context.Context, reason string) (int, error) {
	n, err := r.exec(ctx, sqlinline.QSQLiteFailPendingImageJobs, reason, r.now().UnixNano())
	return int(n), err
}

func (r *JobRepositorySQLite) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := r.exec(ctx, sqlinline.QSQLiteDeleteImageJobsBefore, cutoff.UnixNano())
	return int(n), err
}

func (r *JobRepositorySQLite) body(query string) (string, error) {
	marker, body, err := infra.SplitMarker(query)
	if err != nil {
		return "", err
	}
	r.logger.Debug().Msgf("sql[%s] query", marker)
	return body, nil
}

func (r *JobRepositorySQLite) exec(ctx context.Context, query string, args ...any) (int64, error) {
	marker, body, err := infra.SplitMarker(query)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, body, args...)
	if err != nil {
		r.logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	r.logger.Debug().Int64("rows", n).Msgf("sql[%s] ok", marker)
	return n, nil
}

func scanSQLiteJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&job.ID,
		&job.SubjectRef,
		&job.OwnerRef,
		&job.Prompt,
		&status,
		&job.ResultRef,
		&job.Error,
		&job.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.CreatedAt = time.Unix(0, createdAt)
	job.UpdatedAt = time.Unix(0, updatedAt)
	return &job, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ domain.JobRepository = (*JobRepositorySQLite)(nil)
