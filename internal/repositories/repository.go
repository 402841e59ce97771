package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"maclink/internal/apperrors"
	"maclink/internal/models"
)

const softDeleteField = "isDeleted"

// Collection is the subset of *mongo.Collection the repositories use.
type Collection interface {
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOneAndUpdate(ctx context.Context, filter any, update any, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	UpdateMany(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	Aggregate(ctx context.Context, pipeline any, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error)
}

// FindOptions controls ordering and windowing of FindManyByFilter.
type FindOptions struct {
	Sort  bson.D `bson:"sort,omitempty"`
	Skip  int64  `bson:"skip,omitempty"`
	Limit int64  `bson:"limit,omitempty"`
}

// DefaultSort orders newest first.
var DefaultSort = bson.D{{Key: "createdAt", Value: -1}}

// Repository is the soft-delete aware data access contract shared by every
// entity. All reads, updates, counts and aggregations only see documents
// with isDeleted=false.
type Repository[T any] interface {
	Create(ctx context.Context, doc *T) (*T, error)
	FindOneByFilter(ctx context.Context, filter bson.M) (*T, error)
	// FindOneWithHidden also returns fields normally excluded from reads,
	// such as password hashes.
	FindOneWithHidden(ctx context.Context, filter bson.M) (*T, error)
	FindManyByFilter(ctx context.Context, filter bson.M, opts FindOptions) ([]T, error)
	FindOneByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions) (models.Page[T], error)
	FindManyByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions, sort bson.D) (models.Page[T], error)
	UpdateOneByFilter(ctx context.Context, filter, set, inc, push bson.M) (*T, error)
	UpdateManyByFilter(ctx context.Context, filter, set, inc, push bson.M) (int64, error)
	PullByFilter(ctx context.Context, filter, pull bson.M) (*T, error)
	Aggregate(ctx context.Context, pipeline []bson.D) ([]bson.M, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}

type repository[T any] struct {
	coll       Collection
	projection bson.M
	now        func() time.Time
}

// NewRepository binds T to coll. hidden lists dotted paths stripped from
// every read.
func NewRepository[T any](coll Collection, hidden ...string) Repository[T] {
	projection := bson.M{softDeleteField: 0}
	for _, h := range hidden {
		projection[h] = 0
	}
	return &repository[T]{
		coll:       coll,
		projection: projection,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// scoped copies filter and pins isDeleted=false over whatever the caller set.
func scoped(filter bson.M) bson.M {
	out := make(bson.M, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	out[softDeleteField] = false
	return out
}

func wrap(err error) error {
	return apperrors.Internal(err.Error(), err)
}

func (r *repository[T]) Create(ctx context.Context, doc *T) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, wrap(err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, wrap(err)
	}

	if id, ok := m["_id"]; !ok || id == primitive.NilObjectID {
		m["_id"] = primitive.NewObjectID()
	}
	now := r.now()
	m["createdAt"] = now
	m["updatedAt"] = now
	m[softDeleteField] = false

	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return nil, wrap(err)
	}

	stored, err := bson.Marshal(m)
	if err != nil {
		return nil, wrap(err)
	}
	out := new(T)
	if err := bson.Unmarshal(stored, out); err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

func (r *repository[T]) FindOneByFilter(ctx context.Context, filter bson.M) (*T, error) {
	return r.findOne(ctx, filter, options.FindOne().SetProjection(r.projection))
}

func (r *repository[T]) FindOneWithHidden(ctx context.Context, filter bson.M) (*T, error) {
	return r.findOne(ctx, filter, options.FindOne())
}

func (r *repository[T]) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*T, error) {
	out := new(T)
	err := r.coll.FindOne(ctx, scoped(filter), opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

func (r *repository[T]) FindManyByFilter(ctx context.Context, filter bson.M, opts FindOptions) ([]T, error) {
	sort := opts.Sort
	if len(sort) == 0 {
		sort = DefaultSort
	}
	findOpts := options.Find().SetSort(sort).SetProjection(r.projection)
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := r.coll.Find(ctx, scoped(filter), findOpts)
	if err != nil {
		return nil, wrap(err)
	}
	defer cursor.Close(ctx)

	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrap(err)
	}
	return items, nil
}

func (r *repository[T]) FindOneByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions) (models.Page[T], error) {
	page.Limit = 1
	return r.FindManyByFilterPagination(ctx, filter, page, nil)
}

func (r *repository[T]) FindManyByFilterPagination(ctx context.Context, filter bson.M, page models.PageOptions, sort bson.D) (models.Page[T], error) {
	page = page.Normalize()

	total, err := r.CountDocuments(ctx, filter)
	if err != nil {
		return models.Page[T]{}, err
	}
	items, err := r.FindManyByFilter(ctx, filter, FindOptions{Sort: sort, Skip: page.Skip(), Limit: page.Limit})
	if err != nil {
		return models.Page[T]{}, err
	}
	return models.NewPage(items, page, total), nil
}

// buildUpdate assembles $set/$inc/$push, omitting empty operators. updatedAt
// is always refreshed.
func (r *repository[T]) buildUpdate(set, inc, push bson.M) bson.M {
	setDoc := bson.M{"updatedAt": r.now()}
	for k, v := range set {
		setDoc[k] = v
	}
	update := bson.M{"$set": setDoc}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(push) > 0 {
		update["$push"] = push
	}
	return update
}

func (r *repository[T]) UpdateOneByFilter(ctx context.Context, filter, set, inc, push bson.M) (*T, error) {
	return r.updateOne(ctx, filter, r.buildUpdate(set, inc, push))
}

// PullByFilter removes matching array elements with $pull, so concurrent
// $push updates on the same array are not overwritten.
func (r *repository[T]) PullByFilter(ctx context.Context, filter, pull bson.M) (*T, error) {
	update := bson.M{"$set": bson.M{"updatedAt": r.now()}, "$pull": pull}
	return r.updateOne(ctx, filter, update)
}

func (r *repository[T]) updateOne(ctx context.Context, filter, update bson.M) (*T, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(r.projection)

	out := new(T)
	err := r.coll.FindOneAndUpdate(ctx, scoped(filter), update, opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

func (r *repository[T]) UpdateManyByFilter(ctx context.Context, filter, set, inc, push bson.M) (int64, error) {
	res, err := r.coll.UpdateMany(ctx, scoped(filter), r.buildUpdate(set, inc, push))
	if err != nil {
		return 0, wrap(err)
	}
	return res.ModifiedCount, nil
}

func (r *repository[T]) Aggregate(ctx context.Context, pipeline []bson.D) ([]bson.M, error) {
	full := make(mongo.Pipeline, 0, len(pipeline)+1)
	full = append(full, bson.D{{Key: "$match", Value: bson.D{{Key: softDeleteField, Value: false}}}})
	full = append(full, pipeline...)

	cursor, err := r.coll.Aggregate(ctx, full)
	if err != nil {
		return nil, wrap(err)
	}
	defer cursor.Close(ctx)

	results := []bson.M{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, wrap(err)
	}
	return results, nil
}

func (r *repository[T]) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, scoped(filter))
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}
