package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"imagequeue/internal/domain"
	"imagequeue/internal/infra"
	"imagequeue/internal/sqlinline"
)

// SubjectRepositoryPG writes denormalized fields into users.properties.
type SubjectRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewSubjectRepository(sql infra.SQLExecutor) *SubjectRepositoryPG {
	return &SubjectRepositoryPG{sql: sql}
}

func (r *SubjectRepositoryPG) SetField(ctx context.Context, subjectRef, field, value string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetSubjectProperty, subjectRef, field, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subject %s: %w", subjectRef, domain.ErrNotFound)
	}
	return nil
}

// SubjectRepositoryMongo sets a field on the subject document.
type SubjectRepositoryMongo struct {
	col *mongo.Collection
}

func NewMongoSubjectRepository(db *mongo.Database, collection string) *SubjectRepositoryMongo {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = "users"
	}
	return &SubjectRepositoryMongo{col: db.Collection(collection)}
}

func (r *SubjectRepositoryMongo) SetField(ctx context.Context, subjectRef, field, value string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": subjectRef},
		bson.M{"$set": bson.M{field: value, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("subject %s: %w", subjectRef, domain.ErrNotFound)
	}
	return nil
}

var (
	_ domain.SubjectStore = (*SubjectRepositoryPG)(nil)
	_ domain.SubjectStore = (*SubjectRepositoryMongo)(nil)
)
