package testsupport

import (
	"bytes"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func matches(doc, filter bson.Raw) (bool, error) {
	elems, err := filter.Elements()
	if err != nil {
		return false, err
	}
	for _, e := range elems {
		key, val := e.Key(), e.Value()
		switch key {
		case "$or", "$and":
			arr, ok := val.ArrayOK()
			if !ok {
				return false, fmt.Errorf("%s expects an array", key)
			}
			subs, err := arr.Values()
			if err != nil {
				return false, err
			}
			anyOK := false
			all := true
			for _, s := range subs {
				ok, err := matches(doc, s.Document())
				if err != nil {
					return false, err
				}
				anyOK = anyOK || ok
				all = all && ok
			}
			if (key == "$or" && !anyOK) || (key == "$and" && !all) {
				return false, nil
			}
			continue
		}

		dv, present := lookupPath(bson.RawValue{Type: bson.TypeEmbeddedDocument, Value: doc}, strings.Split(key, "."))
		if ops, ok := operatorDoc(val); ok {
			matched, err := matchOperators(dv, present, ops)
			if err != nil || !matched {
				return false, err
			}
			continue
		}
		if !equalOrContains(dv, present, val) {
			return false, nil
		}
	}
	return true, nil
}

// lookupPath resolves a dotted path. A numeric segment indexes an array; any
// other segment crossing an array fans out over its elements and yields the
// collected values as an array.
func lookupPath(v bson.RawValue, path []string) (bson.RawValue, bool) {
	if len(path) == 0 {
		return v, true
	}
	if doc, ok := v.DocumentOK(); ok {
		next, err := doc.LookupErr(path[0])
		if err != nil {
			return bson.RawValue{}, false
		}
		return lookupPath(next, path[1:])
	}
	arr, ok := v.ArrayOK()
	if !ok {
		return bson.RawValue{}, false
	}
	if next, err := arr.LookupErr(path[0]); err == nil {
		return lookupPath(next, path[1:])
	}
	vals, err := arr.Values()
	if err != nil {
		return bson.RawValue{}, false
	}
	var found primitive.A
	for _, elem := range vals {
		if hit, ok := lookupPath(elem, path); ok {
			found = append(found, rawToValue(hit))
		}
	}
	if len(found) == 0 {
		return bson.RawValue{}, false
	}
	out, err := toRawValue(found)
	if err != nil {
		return bson.RawValue{}, false
	}
	return out, true
}

func operatorDoc(v bson.RawValue) (bson.Raw, bool) {
	d, ok := v.DocumentOK()
	if !ok {
		return nil, false
	}
	elems, err := d.Elements()
	if err != nil || len(elems) == 0 || !strings.HasPrefix(elems[0].Key(), "$") {
		return nil, false
	}
	return d, true
}

func matchOperators(dv bson.RawValue, present bool, ops bson.Raw) (bool, error) {
	elems, err := ops.Elements()
	if err != nil {
		return false, err
	}
	for _, op := range elems {
		arg := op.Value()
		var ok bool
		switch op.Key() {
		case "$eq":
			ok = equalOrContains(dv, present, arg)
		case "$ne":
			ok = !equalOrContains(dv, present, arg)
		case "$in", "$nin":
			arr, isArr := arg.ArrayOK()
			if !isArr {
				return false, fmt.Errorf("%s expects an array", op.Key())
			}
			vals, err := arr.Values()
			if err != nil {
				return false, err
			}
			for _, v := range vals {
				if equalOrContains(dv, present, v) {
					ok = true
					break
				}
			}
			if op.Key() == "$nin" {
				ok = !ok
			}
		case "$gt":
			ok = present && sameKind(dv, arg) && compare(dv, arg) > 0
		case "$gte":
			ok = present && sameKind(dv, arg) && compare(dv, arg) >= 0
		case "$lt":
			ok = present && sameKind(dv, arg) && compare(dv, arg) < 0
		case "$lte":
			ok = present && sameKind(dv, arg) && compare(dv, arg) <= 0
		case "$exists":
			want, _ := arg.BooleanOK()
			ok = present == want
		default:
			return false, fmt.Errorf("unsupported query operator %s", op.Key())
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// equalOrContains follows Mongo equality: arrays match when any element does,
// and a missing field matches null.
func equalOrContains(dv bson.RawValue, present bool, want bson.RawValue) bool {
	if !present {
		return want.Type == bson.TypeNull
	}
	if valuesEqual(dv, want) {
		return true
	}
	if arr, ok := dv.ArrayOK(); ok && want.Type != bson.TypeArray {
		vals, _ := arr.Values()
		for _, v := range vals {
			if valuesEqual(v, want) {
				return true
			}
		}
	}
	return false
}

func valuesEqual(a, b bson.RawValue) bool {
	if an, ok := number(a); ok {
		bn, ok := number(b)
		return ok && an == bn
	}
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bson.TypeInt32:
		return float64(v.Int32()), true
	case bson.TypeInt64:
		return float64(v.Int64()), true
	case bson.TypeDouble:
		return v.Double(), true
	}
	return 0, false
}

func sameKind(a, b bson.RawValue) bool {
	_, an := number(a)
	_, bn := number(b)
	return (an && bn) || a.Type == b.Type
}

// compare orders two values of the same kind. Missing values sort first.
func compare(a, b bson.RawValue) int {
	if a.Type == 0 || b.Type == 0 {
		switch {
		case a.Type == b.Type:
			return 0
		case a.Type == 0:
			return -1
		default:
			return 1
		}
	}
	if an, ok := number(a); ok {
		if bn, ok := number(b); ok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			return 0
		}
	}
	switch a.Type {
	case bson.TypeDateTime:
		at, bt := a.Time(), b.Time()
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		}
		return 0
	case bson.TypeString:
		return strings.Compare(a.StringValue(), b.StringValue())
	case bson.TypeObjectID:
		ao, bo := a.ObjectID(), b.ObjectID()
		return bytes.Compare(ao[:], bo[:])
	case bson.TypeBoolean:
		ab, bb := a.Boolean(), b.Boolean()
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	}
	return bytes.Compare(a.Value, b.Value)
}

func applyUpdate(doc bson.Raw, update any) (bson.Raw, error) {
	u, err := toRaw(update)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(doc, &d); err != nil {
		return nil, err
	}
	ops, err := u.Elements()
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		fields, ok := op.Value().DocumentOK()
		if !ok {
			return nil, fmt.Errorf("%s expects a document", op.Key())
		}
		elems, err := fields.Elements()
		if err != nil {
			return nil, err
		}
		for _, f := range elems {
			path := strings.Split(f.Key(), ".")
			val := rawToValue(f.Value())
			switch op.Key() {
			case "$set":
				d = setPath(d, path, val)
			case "$inc":
				cur := getPath(d, path)
				d = setPath(d, path, addNumbers(cur, val))
			case "$push":
				cur := getPath(d, path)
				var arr primitive.A
				switch t := cur.(type) {
				case primitive.A:
					arr = append(arr, t...)
				case nil:
				default:
					return nil, fmt.Errorf("cannot push to non-array field %s", f.Key())
				}
				d = setPath(d, path, append(arr, val))
			case "$pull":
				arr, _ := getPath(d, path).(primitive.A)
				kept := primitive.A{}
				for _, item := range arr {
					hit, err := pullMatches(item, f.Value())
					if err != nil {
						return nil, err
					}
					if !hit {
						kept = append(kept, item)
					}
				}
				d = setPath(d, path, kept)
			default:
				return nil, fmt.Errorf("unsupported update operator %s", op.Key())
			}
		}
	}
	return bson.Marshal(d)
}

func addNumbers(a, b any) any {
	af, aFloat := toFloat(a)
	bf, bFloat := toFloat(b)
	if aFloat || bFloat {
		return af + bf
	}
	return int64(af + bf)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int32:
		return float64(t), false
	case int64:
		return float64(t), false
	case int:
		return float64(t), false
	case float64:
		return t, true
	}
	return 0, false
}

func getPath(d bson.D, path []string) any {
	for _, e := range d {
		if e.Key != path[0] {
			continue
		}
		if len(path) == 1 {
			return e.Value
		}
		if sub, ok := asD(e.Value); ok {
			return getPath(sub, path[1:])
		}
		return nil
	}
	return nil
}

func setPath(d bson.D, path []string, val any) bson.D {
	for i, e := range d {
		if e.Key != path[0] {
			continue
		}
		if len(path) == 1 {
			d[i].Value = val
			return d
		}
		sub, _ := asD(e.Value)
		d[i].Value = setPath(sub, path[1:], val)
		return d
	}
	if len(path) == 1 {
		return append(d, bson.E{Key: path[0], Value: val})
	}
	return append(d, bson.E{Key: path[0], Value: setPath(bson.D{}, path[1:], val)})
}

func unsetPath(d bson.D, path []string) bson.D {
	for i, e := range d {
		if e.Key != path[0] {
			continue
		}
		if len(path) == 1 {
			return append(d[:i:i], d[i+1:]...)
		}
		if sub, ok := asD(e.Value); ok {
			d[i].Value = unsetPath(sub, path[1:])
		}
		return d
	}
	return d
}

func asD(v any) (bson.D, bool) {
	switch t := v.(type) {
	case bson.D:
		return t, true
	case bson.M:
		out := make(bson.D, 0, len(t))
		for k, val := range t {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, true
	}
	return nil, false
}

// pullMatches reports whether an array element satisfies a $pull condition:
// a query document for embedded documents, plain equality otherwise.
func pullMatches(item any, cond bson.RawValue) (bool, error) {
	if q, ok := cond.DocumentOK(); ok {
		elem, err := toRaw(item)
		if err != nil {
			return false, nil
		}
		return matches(elem, q)
	}
	v, err := toRawValue(item)
	if err != nil {
		return false, err
	}
	return valuesEqual(v, cond), nil
}

func toRawValue(v any) (bson.RawValue, error) {
	raw, err := toRaw(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return bson.RawValue{}, err
	}
	return raw.Lookup("v"), nil
}
