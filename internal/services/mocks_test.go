package services

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"maclink/internal/models"
	"maclink/internal/repositories"
)

type MockRepository[T any] struct {
	mock.Mock
}

func (m *MockRepository[T]) Create(ctx context.Context, doc *T) (*T, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockRepository[T]) FindOneByFilter(ctx context.Context, filter bson.M) (*T, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockRepository[T]) FindOneWithHidden(ctx context.Context, filter bson.M) (*T, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockRepository[T]) FindManyByFilter(ctx context.Context, filter bson.M, opts repositories.FindOptions) ([]T, error) {
	args := m.Called(ctx, filter, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]T), args.Error(1)
}

func (m *MockRepository[T]) FindOneByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions) (models.Page[T], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(models.Page[T]), args.Error(1)
}

func (m *MockRepository[T]) FindManyByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions, sort bson.D) (models.Page[T], error) {
	args := m.Called(ctx, filter, page, sort)
	return args.Get(0).(models.Page[T]), args.Error(1)
}

func (m *MockRepository[T]) UpdateOneByFilter(ctx context.Context, filter, set, inc, push bson.M) (*T, error) {
	args := m.Called(ctx, filter, set, inc, push)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockRepository[T]) UpdateManyByFilter(ctx context.Context, filter, set, inc, push bson.M) (int64, error) {
	args := m.Called(ctx, filter, set, inc, push)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository[T]) PullByFilter(ctx context.Context, filter, pull bson.M) (*T, error) {
	args := m.Called(ctx, filter, pull)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockRepository[T]) Aggregate(ctx context.Context, pipeline []bson.D) ([]bson.M, error) {
	args := m.Called(ctx, pipeline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bson.M), args.Error(1)
}

func (m *MockRepository[T]) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Upload(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, reader, objectSize, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

func (m *MockObjectStore) EnsureBucketExists(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockObjectStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
