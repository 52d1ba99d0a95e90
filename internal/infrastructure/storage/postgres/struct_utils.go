package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns the column names of T's "db" tags in field
// order, descending into embedded structs.
//
//	cols := ExtractDBColumns[lineRow]()
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := metadataFor(reflect.TypeOf(zero))
	return append([]string(nil), meta.columns...)
}

type fieldPath struct {
	index  []int
	column string
}

type typeMetadata struct {
	fields  []fieldPath
	columns []string
}

var typeCache sync.Map // reflect.Type -> *typeMetadata

func metadataFor(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		collectFields(t, nil, meta)
	}
	typeCache.Store(t, meta)
	return meta
}

func collectFields(t reflect.Type, prefix []int, meta *typeMetadata) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, path, meta)
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldPath{index: path, column: tag})
		meta.columns = append(meta.columns, tag)
	}
}

// StructToMap converts a struct to column -> value using "db" tags. It is
// the input of squirrel's SetMap for inserts.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta.fields))
	for _, f := range meta.fields {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}

// StructValues returns the values of v in ExtractDBColumns order, the row
// shape pgx.CopyFromRows expects.
func StructValues(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())
	out := make([]any, len(meta.fields))
	for i, f := range meta.fields {
		out[i] = rv.FieldByIndex(f.index).Interface()
	}
	return out
}
