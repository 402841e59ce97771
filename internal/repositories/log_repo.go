package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"maclink/internal/apperrors"
	"maclink/internal/models"
)

// LogRepository stores request and error logs. Logs are not soft-deleted;
// the TTL index on expiresAt removes them.
type LogRepository interface {
	Create(ctx context.Context, entry *models.Log) error
}

type logRepo struct {
	coll Collection
}

func NewLogRepository(db *mongo.Database) LogRepository {
	return NewLogRepositoryFromCollection(db.Collection(models.LogsCollection))
}

func NewLogRepositoryFromCollection(coll Collection) LogRepository {
	return &logRepo{coll: coll}
}

// LogIndexModels returns the TTL index on expiresAt and the
// (timestamp desc, type) listing index.
func LogIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "type", Value: 1}},
		},
	}
}

func (r *logRepo) Create(ctx context.Context, entry *models.Log) error {
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return apperrors.Internal(err.Error(), err)
	}
	return nil
}
