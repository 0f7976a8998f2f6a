package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"imagequeue/internal/domain"
)

// JobsCollection is the collection name used for job documents.
const JobsCollection = "image_jobs"

type jobDocument struct {
	ID         string    `bson:"_id"`
	SubjectRef string    `bson:"subjectRef"`
	OwnerRef   string    `bson:"ownerRef"`
	Prompt     string    `bson:"prompt"`
	Status     string    `bson:"status"`
	ResultRef  string    `bson:"resultRef,omitempty"`
	Error      string    `bson:"error,omitempty"`
	Version    int64     `bson:"version"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// JobRepositoryMongo implements domain.JobRepository on a MongoDB collection.
// Conditional transitions are single-document UpdateOne calls whose filter
// carries the expected status and version.
type JobRepositoryMongo struct {
	col *mongo.Collection
	now func() time.Time
}

// NewMongoJobRepository wraps the jobs collection. A nil clock uses time.Now.
func NewMongoJobRepository(db *mongo.Database, now func() time.Time) *JobRepositoryMongo {
	if now == nil {
		now = time.Now
	}
	return &JobRepositoryMongo{col: db.Collection(JobsCollection), now: now}
}

// EnsureIndexes creates the FIFO and retention indexes.
func (r *JobRepositoryMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create job indexes: %w", err)
	}
	return nil
}

func (r *JobRepositoryMongo) Create(ctx context.Context, job *domain.Job) error {
	now := r.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	job.Version = 1
	if _, err := r.col.InsertOne(ctx, toJobDocument(job)); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepositoryMongo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var doc jobDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": jobID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *JobRepositoryMongo) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, fields domain.JobFields) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": jobID}, statusUpdate(status, fields, r.now()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryMongo) TransitionStatus(ctx context.Context, jobID string, from domain.JobStatus, version int64, to domain.JobStatus, fields domain.JobFields) (bool, error) {
	res, err := r.col.UpdateOne(ctx, transitionFilter(jobID, from, version), statusUpdate(to, fields, r.now()))
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *JobRepositoryMongo) Heartbeat(ctx context.Context, jobID string) (bool, error) {
	filter := bson.M{"_id": jobID, "status": string(domain.JobStatusProcessing)}
	update := bson.M{
		"$set": bson.M{"updatedAt": r.now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *JobRepositoryMongo) ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"status": string(status)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, 0, len(docs))
	for _, doc := range docs {
		jobs = append(jobs, *doc.toDomain())
	}
	return jobs, nil
}

func (r *JobRepositoryMongo) MostRecentlyCompleted(ctx context.Context) (*domain.Job, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	var doc jobDocument
	err := r.col.FindOne(ctx, bson.M{"status": string(domain.JobStatusCompleted)}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *JobRepositoryMongo) CountPendingBefore(ctx context.Context, createdAt time.Time) (int, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{
		"status":    string(domain.JobStatusPending),
		"createdAt": bson.M{"$lt": createdAt.UTC()},
	})
	return int(n), err
}

func (r *JobRepositoryMongo) FailAllPending(ctx context.Context, reason string) (int, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"status": string(domain.JobStatusPending)},
		statusUpdate(domain.JobStatusFailed, domain.WithError(reason), r.now()),
	)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (r *JobRepositoryMongo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func transitionFilter(jobID string, from domain.JobStatus, version int64) bson.M {
	return bson.M{"_id": jobID, "status": string(from), "version": version}
}

func statusUpdate(status domain.JobStatus, fields domain.JobFields, now time.Time) bson.M {
	set := bson.M{
		"status":    string(status),
		"updatedAt": now.UTC(),
	}
	if fields.ResultRef != nil {
		set["resultRef"] = *fields.ResultRef
	}
	if fields.Error != nil {
		set["error"] = *fields.Error
	}
	return bson.M{"$set": set, "$inc": bson.M{"version": 1}}
}

func toJobDocument(job *domain.Job) jobDocument {
	return jobDocument{
		ID:         job.ID,
		SubjectRef: job.SubjectRef,
		OwnerRef:   job.OwnerRef,
		Prompt:     job.Prompt,
		Status:     string(job.Status),
		ResultRef:  job.ResultRef,
		Error:      job.Error,
		Version:    job.Version,
		CreatedAt:  job.CreatedAt.UTC(),
		UpdatedAt:  job.UpdatedAt.UTC(),
	}
}

func (d jobDocument) toDomain() *domain.Job {
	return &domain.Job{
		ID:         d.ID,
		SubjectRef: d.SubjectRef,
		OwnerRef:   d.OwnerRef,
		Prompt:     d.Prompt,
		Status:     domain.JobStatus(d.Status),
		ResultRef:  d.ResultRef,
		Error:      d.Error,
		Version:    d.Version,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

var _ domain.JobRepository = (*JobRepositoryMongo)(nil)
