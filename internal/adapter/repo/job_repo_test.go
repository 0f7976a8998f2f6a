package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"imagequeue/internal/domain"
	"imagequeue/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

type stubSQL struct {
	execs    []execCall
	tag      pgconn.CommandTag
	execErr  error
	rowScan  func(dest ...any) error
	rowQuery string
	rows     []domain.Job
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	return s.tag, s.execErr
}

func (s *stubSQL) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	s.rowQuery = query
	return stubRow{scan: s.rowScan}
}

func (s *stubSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	if query != sqlinline.QListImageJobsByStatus {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	return &stubRows{jobs: s.rows}, nil
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubRows struct {
	jobs []domain.Job
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, errors.New("not supported") }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.jobs) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return scanInto(r.jobs[r.idx-1], dest)
}

func scanInto(job domain.Job, dest []any) error {
	if len(dest) != 10 {
		return fmt.Errorf("unexpected scan args: %d", len(dest))
	}
	*dest[0].(*string) = job.ID
	*dest[1].(*string) = job.SubjectRef
	*dest[2].(*string) = job.OwnerRef
	*dest[3].(*string) = job.Prompt
	*dest[4].(*string) = string(job.Status)
	*dest[5].(*string) = job.ResultRef
	*dest[6].(*string) = job.Error
	*dest[7].(*int64) = job.Version
	*dest[8].(*time.Time) = job.CreatedAt
	*dest[9].(*time.Time) = job.UpdatedAt
	return nil
}

func TestJobRepositoryPGGetByIDNotFound(t *testing.T) {
	r := NewJobRepository(&stubSQL{})
	if _, err := r.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID error = %v, want ErrNotFound", err)
	}
}

func TestJobRepositoryPGGetByIDScansRow(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	want := domain.Job{
		ID:        "job-1",
		Prompt:    "a red fox",
		Status:    domain.JobStatusProcessing,
		Version:   4,
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
	}
	stub := &stubSQL{rowScan: func(dest ...any) error { return scanInto(want, dest) }}
	got, err := NewJobRepository(stub).GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stub.rowQuery != sqlinline.QSelectImageJob {
		t.Fatalf("query = %q, want QSelectImageJob", stub.rowQuery)
	}
	if *got != want {
		t.Fatalf("job = %#v, want %#v", *got, want)
	}
}

func TestJobRepositoryPGMostRecentlyCompletedEmpty(t *testing.T) {
	job, err := NewJobRepository(&stubSQL{}).MostRecentlyCompleted(context.Background())
	if err != nil || job != nil {
		t.Fatalf("MostRecentlyCompleted = %v, %v; want nil, nil", job, err)
	}
}

func TestJobRepositoryPGTransitionArgs(t *testing.T) {
	stub := &stubSQL{tag: pgconn.NewCommandTag("UPDATE 1")}
	r := NewJobRepository(stub)
	ok, err := r.TransitionStatus(context.Background(), "job-1", domain.JobStatusPending, 3, domain.JobStatusProcessing, domain.JobFields{})
	if err != nil || !ok {
		t.Fatalf("TransitionStatus = %v, %v; want true, nil", ok, err)
	}
	call := stub.execs[0]
	if call.query != sqlinline.QTransitionImageJobStatus {
		t.Fatalf("query = %q, want QTransitionImageJobStatus", call.query)
	}
	if call.args[0] != "job-1" || call.args[1] != "pending" || call.args[2] != int64(3) || call.args[3] != "processing" {
		t.Fatalf("unexpected args: %#v", call.args)
	}
	if p, _ := call.args[4].(*string); p != nil {
		t.Fatalf("result arg = %v, want nil", *p)
	}
}

func TestJobRepositoryPGTransitionLost(t *testing.T) {
	stub := &stubSQL{tag: pgconn.NewCommandTag("UPDATE 0")}
	ok, err := NewJobRepository(stub).TransitionStatus(context.Background(), "job-1", domain.JobStatusPending, 3, domain.JobStatusProcessing, domain.JobFields{})
	if err != nil || ok {
		t.Fatalf("TransitionStatus = %v, %v; want false, nil", ok, err)
	}
}

func TestJobRepositoryPGUpdateStatusMissing(t *testing.T) {
	stub := &stubSQL{tag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewJobRepository(stub).UpdateStatus(context.Background(), "job-1", domain.JobStatusFailed, domain.WithError("boom"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("UpdateStatus error = %v, want ErrNotFound", err)
	}
	if msg, _ := stub.execs[0].args[3].(*string); msg == nil || *msg != "boom" {
		t.Fatalf("error arg = %#v, want boom", stub.execs[0].args[3])
	}
}

func TestJobRepositoryPGListByStatus(t *testing.T) {
	stub := &stubSQL{rows: []domain.Job{{ID: "a"}, {ID: "b"}}}
	jobs, err := NewJobRepository(stub).ListByStatus(context.Background(), domain.JobStatusPending)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "a" || jobs[1].ID != "b" {
		t.Fatalf("jobs = %v, want [a b]", ids(jobs))
	}
}

func TestJobRepositoryPGFailAllPending(t *testing.T) {
	stub := &stubSQL{tag: pgconn.NewCommandTag("UPDATE 5")}
	n, err := NewJobRepository(stub).FailAllPending(context.Background(), domain.ClearedError)
	if err != nil || n != 5 {
		t.Fatalf("FailAllPending = %d, %v; want 5, nil", n, err)
	}
	if stub.execs[0].args[0] != domain.ClearedError {
		t.Fatalf("reason arg = %#v", stub.execs[0].args[0])
	}
}

func TestSubjectRepositoryPGSetField(t *testing.T) {
	stub := &stubSQL{tag: pgconn.NewCommandTag("UPDATE 1")}
	if err := NewSubjectRepository(stub).SetField(context.Background(), "user-1", "avatar_url", "https://cdn/x.png"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	call := stub.execs[0]
	if call.query != sqlinline.QSetSubjectProperty {
		t.Fatalf("query = %q, want QSetSubjectProperty", call.query)
	}
	if call.args[0] != "user-1" || call.args[1] != "avatar_url" || call.args[2] != "https://cdn/x.png" {
		t.Fatalf("unexpected args: %#v", call.args)
	}

	stub.tag = pgconn.NewCommandTag("UPDATE 0")
	if err := NewSubjectRepository(stub).SetField(context.Background(), "ghost", "avatar_url", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SetField(ghost) error = %v, want ErrNotFound", err)
	}
}
