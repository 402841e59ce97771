package caching

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// Operation tags prefixed to every entity cache field.
const (
	OpOne          = "one"
	OpMany         = "many"
	OpOnePaginate  = "one-paginate"
	OpManyPaginate = "many-paginate"
	OpAggregate    = "aggregate"
	OpCount        = "count"
)

// FieldKey builds the hash field for a cached read. Maps are serialized with
// sorted keys so filters that differ only in key order share a field; ordered
// documents and pipelines keep their order.
func FieldKey(op string, parts ...any) (string, error) {
	canon := make(bson.A, len(parts))
	for i, p := range parts {
		canon[i] = Canonical(p)
	}
	data, err := bson.MarshalExtJSON(bson.D{{Key: "q", Value: canon}}, true, false)
	if err != nil {
		return "", fmt.Errorf("serialize cache key: %w", err)
	}
	return fmt.Sprintf("%s-%016x", op, xxhash.Sum64(data)), nil
}

// Canonical rewrites unordered maps into key-sorted documents, recursively.
func Canonical(v any) any {
	switch t := v.(type) {
	case bson.M:
		return sortedDoc(t)
	case map[string]any:
		return sortedDoc(t)
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: Canonical(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = Canonical(e)
		}
		return out
	case []any:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = Canonical(e)
		}
		return out
	case []bson.M:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = sortedDoc(e)
		}
		return out
	case []bson.D:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = Canonical(e)
		}
		return out
	default:
		return v
	}
}

func sortedDoc(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: Canonical(m[k])})
	}
	return out
}
