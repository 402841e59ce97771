package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/caching"
	"maclink/internal/models"
	"maclink/internal/repositories"
)

// EntityService puts a look-aside cache in front of a Repository. Reads are
// served from one Redis hash per entity; every write drops that hash.
type EntityService[T any] interface {
	Name() string
	Create(ctx context.Context, doc *T) (*T, error)
	FindOneByFilter(ctx context.Context, filter bson.M) (*T, error)
	// FindOneWithHidden bypasses the cache so hidden fields never reach Redis.
	FindOneWithHidden(ctx context.Context, filter bson.M) (*T, error)
	FindManyByFilter(ctx context.Context, filter bson.M, opts repositories.FindOptions) ([]T, error)
	FindOneByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions) (models.Page[T], error)
	FindManyByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions, sort bson.D) (models.Page[T], error)
	UpdateOneByFilter(ctx context.Context, filter, set, inc, push bson.M) (*T, error)
	UpdateManyByFilter(ctx context.Context, filter, set, inc, push bson.M) (int64, error)
	PullByFilter(ctx context.Context, filter, pull bson.M) (*T, error)
	// Delete soft-deletes the first document matching filter.
	Delete(ctx context.Context, filter bson.M) (*T, error)
	Aggregate(ctx context.Context, pipeline []bson.D) ([]bson.M, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	Invalidate(ctx context.Context)
}

// entityCache is the per-entity hash shared by every read of that entity.
type entityCache struct {
	name   string
	cache  caching.CacheService
	ttl    time.Duration
	logger *zap.Logger
}

type entityService[T any] struct {
	entityCache
	repo repositories.Repository[T]
}

// NewEntityService caches reads of repo under the hash called name. A
// positive ttl bounds how long the hash survives without a write.
func NewEntityService[T any](name string, repo repositories.Repository[T], cache caching.CacheService, ttl time.Duration, logger *zap.Logger) EntityService[T] {
	return &entityService[T]{
		entityCache: entityCache{
			name:   name,
			cache:  cache,
			ttl:    ttl,
			logger: logger.With(zap.String("cache", name)),
		},
		repo: repo,
	}
}

type envelope[R any] struct {
	Value R `bson:"value"`
}

func badRequest(err error) error {
	return apperrors.BadRequest(err.Error(), 0, err)
}

// readThrough returns the cached value for field, or loads, stores and
// returns it. Cache failures degrade to a direct load. Values for which keep
// returns false are not stored.
func readThrough[R any](ctx context.Context, c *entityCache, field string, load func() (R, error), keep func(R) bool) (R, error) {
	raw, err := c.cache.HGet(ctx, c.name, field)
	switch {
	case err == nil:
		var env envelope[R]
		decodeErr := bson.UnmarshalExtJSON([]byte(raw), true, &env)
		if decodeErr == nil {
			return env.Value, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("field", field), zap.Error(decodeErr))
	case !errors.Is(err, caching.ErrCacheMiss):
		c.logger.Warn("cache read failed", zap.String("field", field), zap.Error(err))
	}

	value, err := load()
	if err != nil {
		var zero R
		return zero, badRequest(err)
	}
	if keep != nil && !keep(value) {
		return value, nil
	}
	c.store(ctx, field, envelope[R]{Value: value})
	return value, nil
}

func (c *entityCache) store(ctx context.Context, field string, env any) {
	data, err := bson.MarshalExtJSON(env, true, false)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("field", field), zap.Error(err))
		return
	}
	if err := c.cache.HSet(ctx, c.name, field, string(data)); err != nil {
		c.logger.Warn("cache write failed", zap.String("field", field), zap.Error(err))
		return
	}
	if c.ttl > 0 {
		// the first field starts the window; later misses must not extend it
		if err := c.cache.ExpireNX(ctx, c.name, c.ttl); err != nil {
			c.logger.Warn("cache expire failed", zap.Error(err))
		}
	}
}

// Invalidate drops every cached read of the entity.
func (c *entityCache) Invalidate(ctx context.Context) {
	if err := c.cache.Delete(ctx, c.name); err != nil {
		c.logger.Error("cache invalidation failed", zap.Error(err))
	}
}

func (c *entityCache) field(op string, parts ...any) (string, bool) {
	key, err := caching.FieldKey(op, parts...)
	if err != nil {
		c.logger.Warn("cache key build failed", zap.String("op", op), zap.Error(err))
		return "", false
	}
	return key, true
}

func (s *entityService[T]) Name() string { return s.name }

func (s *entityService[T]) Create(ctx context.Context, doc *T) (*T, error) {
	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		return nil, badRequest(err)
	}
	s.Invalidate(ctx)
	return created, nil
}

func nonNil[T any](v *T) bool { return v != nil }

func (s *entityService[T]) FindOneByFilter(ctx context.Context, filter bson.M) (*T, error) {
	load := func() (*T, error) { return s.repo.FindOneByFilter(ctx, filter) }
	field, ok := s.field(caching.OpOne, filter)
	if !ok {
		return wrapLoad(load)
	}
	return readThrough(ctx, &s.entityCache, field, load, nonNil[T])
}

func (s *entityService[T]) FindOneWithHidden(ctx context.Context, filter bson.M) (*T, error) {
	return wrapLoad(func() (*T, error) { return s.repo.FindOneWithHidden(ctx, filter) })
}

func (s *entityService[T]) FindManyByFilter(ctx context.Context, filter bson.M, opts repositories.FindOptions) ([]T, error) {
	load := func() ([]T, error) { return s.repo.FindManyByFilter(ctx, filter, opts) }
	field, ok := s.field(caching.OpMany, filter, opts)
	if !ok {
		return wrapLoad(load)
	}
	return readThrough(ctx, &s.entityCache, field, load, nil)
}

func (s *entityService[T]) FindOneByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions) (models.Page[T], error) {
	load := func() (models.Page[T], error) { return s.repo.FindOneByFilterPagination(ctx, filter, page) }
	field, ok := s.field(caching.OpOnePaginate, filter, page)
	if !ok {
		return wrapLoad(load)
	}
	return readThrough(ctx, &s.entityCache, field, load, nil)
}

func (s *entityService[T]) FindManyByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions, sort bson.D) (models.Page[T], error) {
	load := func() (models.Page[T], error) { return s.repo.FindManyByFilterPagination(ctx, filter, page, sort) }
	field, ok := s.field(caching.OpManyPaginate, filter, page, sort)
	if !ok {
		return wrapLoad(load)
	}
	return readThrough(ctx, &s.entityCache, field, load, nil)
}

func (s *entityService[T]) UpdateOneByFilter(ctx context.Context, filter, set, inc, push bson.M) (*T, error) {
	updated, err := s.repo.UpdateOneByFilter(ctx, filter, set, inc, push)
	if err != nil {
		return nil, badRequest(err)
	}
	s.Invalidate(ctx)
	return updated, nil
}

func (s *entityService[T]) UpdateManyByFilter(ctx context.Context, filter, set, inc, push bson.M) (int64, error) {
	n, err := s.repo.UpdateManyByFilter(ctx, filter, set, inc, push)
	if err != nil {
		return 0, badRequest(err)
	}
	s.Invalidate(ctx)
	return n, nil
}

func (s *entityService[T]) PullByFilter(ctx context.Context, filter, pull bson.M) (*T, error) {
	updated, err := s.repo.PullByFilter(ctx, filter, pull)
	if err != nil {
		return nil, badRequest(err)
	}
	s.Invalidate(ctx)
	return updated, nil
}

func (s *entityService[T]) Delete(ctx context.Context, filter bson.M) (*T, error) {
	return s.UpdateOneByFilter(ctx, filter, bson.M{"isDeleted": true}, nil, nil)
}

func (s *entityService[T]) Aggregate(ctx context.Context, pipeline []bson.D) ([]bson.M, error) {
	load := func() ([]bson.M, error) { return s.repo.Aggregate(ctx, pipeline) }
	field, ok := s.field(caching.OpAggregate, pipeline)
	if !ok {
		return wrapLoad(load)
	}
	return readThrough(ctx, &s.entityCache, field, load, nil)
}

func (s *entityService[T]) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	load := func() (int64, error) { return s.repo.CountDocuments(ctx, filter) }
	field, ok := s.field(caching.OpCount, filter)
	if !ok {
		return wrapLoad(load)
	}
	return readThrough(ctx, &s.entityCache, field, load, nil)
}

func wrapLoad[R any](load func() (R, error)) (R, error) {
	v, err := load()
	if err != nil {
		var zero R
		return zero, badRequest(err)
	}
	return v, nil
}
