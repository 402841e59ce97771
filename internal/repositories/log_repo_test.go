package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"maclink/internal/apperrors"
	"maclink/internal/models"
	"maclink/internal/testsupport"
)

func TestLogRepository_Create(t *testing.T) {
	coll := testsupport.NewCollection(models.LogsCollection)
	repo := NewLogRepositoryFromCollection(coll)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &models.Log{Type: models.LogTypeRequest, Level: models.LogLevelInfo, Message: "GET /api/v1/health", Timestamp: now, ExpiresAt: now.Add(models.RequestLogRetention)}))
	require.NoError(t, repo.Create(ctx, &models.Log{Type: models.LogTypeError, Level: models.LogLevelError, Message: "boom", Timestamp: now, ExpiresAt: now.Add(models.ErrorLogRetention)}))

	docs := coll.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "request", docs[0]["type"])
	assert.Equal(t, "boom", docs[1]["message"])
	// logs carry no soft-delete flag
	for _, doc := range docs {
		_, has := doc["isDeleted"]
		assert.False(t, has)
		assert.NotNil(t, doc["_id"])
	}
}

func TestLogRepository_CreateWrapsErrors(t *testing.T) {
	coll := testsupport.NewCollection(models.LogsCollection)
	coll.Err = errors.New("not primary")
	repo := NewLogRepositoryFromCollection(coll)

	err := repo.Create(context.Background(), &models.Log{Message: "x"})
	var internal *apperrors.InternalError
	assert.ErrorAs(t, err, &internal)
}

func TestLogIndexModels(t *testing.T) {
	idx := LogIndexModels()
	require.Len(t, idx, 2)

	assert.Equal(t, bson.D{{Key: "expiresAt", Value: 1}}, idx[0].Keys)
	require.NotNil(t, idx[0].Options.ExpireAfterSeconds)
	assert.Equal(t, int32(0), *idx[0].Options.ExpireAfterSeconds)
	assert.Equal(t, bson.D{{Key: "timestamp", Value: -1}, {Key: "type", Value: 1}}, idx[1].Keys)
}

type recordingIndexCreator struct {
	created [][]string
}

func (r *recordingIndexCreator) CreateMany(_ context.Context, indexes []mongo.IndexModel, _ ...*options.CreateIndexesOptions) ([]string, error) {
	var names []string
	for _, i := range indexes {
		for _, k := range i.Keys.(bson.D) {
			names = append(names, k.Key)
		}
	}
	r.created = append(r.created, names)
	return names, nil
}

func TestCreateIndexes_SkipsEmptyAndCreatesUnique(t *testing.T) {
	rec := &recordingIndexCreator{}
	require.NoError(t, createIndexes(context.Background(), rec, nil))
	assert.Empty(t, rec.created)

	accounts := IndexModels()[models.AccountsCollection]
	require.NoError(t, createIndexes(context.Background(), rec, accounts))
	assert.Equal(t, [][]string{{"email"}}, rec.created)
	assert.True(t, *accounts[0].Options.Unique)
}
