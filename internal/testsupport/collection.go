// Package testsupport provides an in-memory stand-in for a Mongo collection.
// It understands the subset of query, update and aggregation syntax the
// repositories issue.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection keeps documents in insertion order.
type Collection struct {
	mu     sync.Mutex
	name   string
	docs   []bson.Raw
	unique []string

	// Err, when set, is returned by every operation.
	Err error
}

func NewCollection(name string, uniqueFields ...string) *Collection {
	return &Collection{name: name, unique: uniqueFields}
}

// Documents returns every stored document, soft-deleted ones included.
func (c *Collection) Documents() []bson.M {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bson.M, 0, len(c.docs))
	for _, d := range c.docs {
		var m bson.M
		_ = bson.Unmarshal(d, &m)
		out = append(out, m)
	}
	return out
}

// Seed stores docs as-is, bypassing unique checks.
func (c *Collection) Seed(docs ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		raw, err := bson.Marshal(d)
		if err != nil {
			panic(err)
		}
		c.docs = append(c.docs, raw)
	}
}

func (c *Collection) InsertOne(_ context.Context, document any, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	raw, err := toRaw(document)
	if err != nil {
		return nil, err
	}
	id, err := raw.LookupErr("_id")
	if err != nil {
		oid := primitive.NewObjectID()
		var d bson.D
		if err := bson.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		d = append(bson.D{{Key: "_id", Value: oid}}, d...)
		if raw, err = toRaw(d); err != nil {
			return nil, err
		}
		id = raw.Lookup("_id")
	}
	if err := c.checkUnique(raw, -1); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, raw)

	var insertedID any
	_ = id.Unmarshal(&insertedID)
	return &mongo.InsertOneResult{InsertedID: insertedID}, nil
}

func (c *Collection) FindOne(_ context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, c.Err, nil)
	}
	fo := options.MergeFindOneOptions(opts...)
	matched, err := c.match(filter)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	sortDocs(matched, fo.Sort)
	if fo.Skip != nil {
		matched = skip(matched, *fo.Skip)
	}
	if len(matched) == 0 {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	doc, err := project(matched[0], fo.Projection)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (c *Collection) Find(_ context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	fo := options.MergeFindOptions(opts...)
	matched, err := c.match(filter)
	if err != nil {
		return nil, err
	}
	sortDocs(matched, fo.Sort)
	if fo.Skip != nil {
		matched = skip(matched, *fo.Skip)
	}
	if fo.Limit != nil && *fo.Limit > 0 && int64(len(matched)) > *fo.Limit {
		matched = matched[:*fo.Limit]
	}
	out := make([]any, 0, len(matched))
	for _, m := range matched {
		doc, err := project(m, fo.Projection)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return mongo.NewCursorFromDocuments(out, nil, nil)
}

func (c *Collection) FindOneAndUpdate(_ context.Context, filter any, update any, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, c.Err, nil)
	}
	fo := options.MergeFindOneAndUpdateOptions(opts...)
	idx, err := c.matchIndexes(filter)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	if len(idx) == 0 {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	before := c.docs[idx[0]]
	after, err := applyUpdate(before, update)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	if err := c.checkUnique(after, idx[0]); err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	c.docs[idx[0]] = after

	result := before
	if fo.ReturnDocument != nil && *fo.ReturnDocument == options.After {
		result = after
	}
	doc, err := project(result, fo.Projection)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (c *Collection) UpdateMany(_ context.Context, filter any, update any, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	idx, err := c.matchIndexes(filter)
	if err != nil {
		return nil, err
	}
	var modified int64
	for _, i := range idx {
		after, err := applyUpdate(c.docs[i], update)
		if err != nil {
			return nil, err
		}
		if !bytesEqual(after, c.docs[i]) {
			modified++
		}
		c.docs[i] = after
	}
	return &mongo.UpdateResult{MatchedCount: int64(len(idx)), ModifiedCount: modified}, nil
}

func (c *Collection) CountDocuments(_ context.Context, filter any, _ ...*options.CountOptions) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	matched, err := c.match(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Aggregate supports $match, $sort, $skip, $limit, $count and $group with
// $sum accumulators.
func (c *Collection) Aggregate(_ context.Context, pipeline any, _ ...*options.AggregateOptions) (*mongo.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	stages, err := toStages(pipeline)
	if err != nil {
		return nil, err
	}
	docs := append([]bson.Raw(nil), c.docs...)
	for _, st := range stages {
		elems, err := st.Elements()
		if err != nil || len(elems) != 1 {
			return nil, fmt.Errorf("invalid pipeline stage")
		}
		op, arg := elems[0].Key(), elems[0].Value()
		switch op {
		case "$match":
			var kept []bson.Raw
			for _, d := range docs {
				ok, err := matches(d, arg.Document())
				if err != nil {
					return nil, err
				}
				if ok {
					kept = append(kept, d)
				}
			}
			docs = kept
		case "$sort":
			var spec bson.D
			if err := arg.Unmarshal(&spec); err != nil {
				return nil, err
			}
			sortDocs(docs, spec)
		case "$skip":
			docs = skip(docs, asInt(arg))
		case "$limit":
			if n := asInt(arg); int64(len(docs)) > n {
				docs = docs[:n]
			}
		case "$count":
			raw, _ := bson.Marshal(bson.D{{Key: arg.StringValue(), Value: int32(len(docs))}})
			docs = []bson.Raw{raw}
		case "$group":
			if docs, err = group(docs, arg.Document()); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported pipeline stage %s", op)
		}
	}
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return mongo.NewCursorFromDocuments(out, nil, nil)
}

func (c *Collection) match(filter any) ([]bson.Raw, error) {
	idx, err := c.matchIndexes(filter)
	if err != nil {
		return nil, err
	}
	out := make([]bson.Raw, len(idx))
	for i, j := range idx {
		out[i] = c.docs[j]
	}
	return out, nil
}

func (c *Collection) matchIndexes(filter any) ([]int, error) {
	f, err := toRaw(filter)
	if err != nil {
		return nil, err
	}
	var idx []int
	for i, d := range c.docs {
		ok, err := matches(d, f)
		if err != nil {
			return nil, err
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func (c *Collection) checkUnique(doc bson.Raw, self int) error {
	for _, field := range c.unique {
		v, err := doc.LookupErr(strings.Split(field, ".")...)
		if err != nil {
			continue
		}
		for i, other := range c.docs {
			if i == self {
				continue
			}
			ov, err := other.LookupErr(strings.Split(field, ".")...)
			if err == nil && valuesEqual(v, ov) {
				return mongo.WriteException{WriteErrors: []mongo.WriteError{{
					Code:    11000,
					Message: fmt.Sprintf("E11000 duplicate key error collection: test.%s index: %s_1 dup key: { %s: %s }", c.name, field, field, v.String()),
				}}}
			}
		}
	}
	return nil
}

func toRaw(v any) (bson.Raw, error) {
	if v == nil {
		return bson.Marshal(bson.D{})
	}
	if r, ok := v.(bson.Raw); ok {
		return r, nil
	}
	return bson.Marshal(v)
}

func toStages(pipeline any) ([]bson.Raw, error) {
	raw, err := toRaw(bson.D{{Key: "p", Value: pipeline}})
	if err != nil {
		return nil, err
	}
	arr, ok := raw.Lookup("p").ArrayOK()
	if !ok {
		return nil, errors.New("pipeline must be an array")
	}
	vals, err := arr.Values()
	if err != nil {
		return nil, err
	}
	out := make([]bson.Raw, len(vals))
	for i, v := range vals {
		out[i] = v.Document()
	}
	return out, nil
}

func skip(docs []bson.Raw, n int64) []bson.Raw {
	if n <= 0 {
		return docs
	}
	if n >= int64(len(docs)) {
		return nil
	}
	return docs[n:]
}

func asInt(v bson.RawValue) int64 {
	f, _ := number(v)
	return int64(f)
}

func bytesEqual(a, b bson.Raw) bool {
	return string(a) == string(b)
}

func sortDocs(docs []bson.Raw, spec any) {
	if spec == nil {
		return
	}
	raw, err := toRaw(spec)
	if err != nil {
		return
	}
	elems, err := raw.Elements()
	if err != nil || len(elems) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, e := range elems {
			dir := asInt(e.Value())
			path := strings.Split(e.Key(), ".")
			a, _ := docs[i].LookupErr(path...)
			b, _ := docs[j].LookupErr(path...)
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// project applies an exclusion projection such as {"password": 0}.
func project(doc bson.Raw, projection any) (bson.D, error) {
	var d bson.D
	if err := bson.Unmarshal(doc, &d); err != nil {
		return nil, err
	}
	if projection == nil {
		return d, nil
	}
	raw, err := toRaw(projection)
	if err != nil {
		return nil, err
	}
	elems, err := raw.Elements()
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		if asInt(e.Value()) != 0 {
			return nil, errors.New("only exclusion projections are supported")
		}
		d = unsetPath(d, strings.Split(e.Key(), "."))
	}
	return d, nil
}

func group(docs []bson.Raw, spec bson.Raw) ([]bson.Raw, error) {
	elems, err := spec.Elements()
	if err != nil {
		return nil, err
	}
	type bucket struct {
		id   bson.RawValue
		sums map[string]float64
		ints map[string]bool
	}
	var order []*bucket
	for _, d := range docs {
		var id bson.RawValue
		for _, e := range elems {
			if e.Key() == "_id" {
				id = resolve(d, e.Value())
			}
		}
		var b *bucket
		for _, existing := range order {
			if valuesEqual(existing.id, id) {
				b = existing
				break
			}
		}
		if b == nil {
			b = &bucket{id: id, sums: map[string]float64{}, ints: map[string]bool{}}
			order = append(order, b)
		}
		for _, e := range elems {
			if e.Key() == "_id" {
				continue
			}
			acc, ok := e.Value().DocumentOK()
			if !ok {
				return nil, fmt.Errorf("invalid accumulator %s", e.Key())
			}
			sumArg, err := acc.LookupErr("$sum")
			if err != nil {
				return nil, fmt.Errorf("unsupported accumulator for %s", e.Key())
			}
			v := resolve(d, sumArg)
			n, isNum := number(v)
			if isNum {
				b.sums[e.Key()] += n
			}
			if _, seen := b.ints[e.Key()]; !seen {
				b.ints[e.Key()] = true
			}
			if v.Type == bson.TypeDouble {
				b.ints[e.Key()] = false
			}
		}
	}
	out := make([]bson.Raw, 0, len(order))
	for _, b := range order {
		d := bson.D{{Key: "_id", Value: rawToValue(b.id)}}
		for _, e := range elems {
			if e.Key() == "_id" {
				continue
			}
			if b.ints[e.Key()] {
				d = append(d, bson.E{Key: e.Key(), Value: int32(b.sums[e.Key()])})
			} else {
				d = append(d, bson.E{Key: e.Key(), Value: b.sums[e.Key()]})
			}
		}
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// resolve evaluates "$path" references against doc.
func resolve(doc bson.Raw, v bson.RawValue) bson.RawValue {
	if s, ok := v.StringValueOK(); ok && strings.HasPrefix(s, "$") {
		rv, err := doc.LookupErr(strings.Split(s[1:], ".")...)
		if err != nil {
			return bson.RawValue{Type: bson.TypeNull}
		}
		return rv
	}
	return v
}

func rawToValue(v bson.RawValue) any {
	if v.Type == 0 || v.Type == bson.TypeNull {
		return nil
	}
	var out any
	_ = v.Unmarshal(&out)
	return out
}
