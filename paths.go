package redux

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// FieldDescriptor describes a selectable path and the inferred type of the
// value found there.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Describe lists the leaf paths of state in sorted order. Maps with string
// keys and structs are walked; slices, scalars and empty maps are leaves.
// Struct fields are reported under their json name when they carry one.
func Describe(state any) []FieldDescriptor {
	fields := describe(reflect.ValueOf(state), "", 0)
	if fields == nil {
		return []FieldDescriptor{}
	}
	return fields
}

const maxDescribeDepth = 32

func describe(rv reflect.Value, prefix string, depth int) []FieldDescriptor {
	if !rv.IsValid() || depth > maxDescribeDepth {
		return nil
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return leaf(prefix, "nil")
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.Len() == 0 {
			return leaf(prefix, rv.Type().String())
		}
		keys := make([]string, 0, rv.Len())
		for _, key := range rv.MapKeys() {
			keys = append(keys, key.String())
		}
		slices.Sort(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			fields = append(fields, describe(value, joinPath(prefix, key), depth+1)...)
		}
		return fields
	case reflect.Struct:
		var fields []FieldDescriptor
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			name := jsonName(field)
			if name == "" {
				if field.Tag.Get("json") == "-" {
					continue
				}
				name = field.Name
			}
			fields = append(fields, describe(rv.Field(i), joinPath(prefix, name), depth+1)...)
		}
		if len(fields) == 0 {
			return leaf(prefix, rt.String())
		}
		return fields
	case reflect.Slice, reflect.Array:
		element := rv.Type().Elem().String()
		if element == "interface {}" && rv.Len() > 0 {
			element = typeName(rv.Index(0).Interface())
		}
		return leaf(prefix, "[]"+element)
	default:
		return leaf(prefix, fmt.Sprintf("%T", rv.Interface()))
	}
}

func leaf(path, kind string) []FieldDescriptor {
	if path == "" {
		return nil
	}
	return []FieldDescriptor{{Path: path, Type: kind}}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	var b strings.Builder
	b.Grow(len(prefix) + 1 + len(key))
	b.WriteString(prefix)
	b.WriteByte('.')
	b.WriteString(key)
	return b.String()
}
