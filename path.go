package redux

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Path is an ordered list of lookup segments. Segments are strings (map
// keys, struct fields) or ints (slice indexes, integer map keys).
type Path []any

// Pathable lets a snapshot type take over path lookups for itself.
type Pathable interface {
	GetIn(path Path) (any, bool)
}

// ParsePath splits a dotted path. Segments made only of digits become int
// indexes; everything else stays a string key.
func ParsePath(dotted string) Path {
	dotted = strings.TrimSpace(dotted)
	if dotted == "" {
		return Path{}
	}
	parts := strings.Split(dotted, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if idx, err := strconv.Atoi(part); err == nil && idx >= 0 {
			path = append(path, idx)
			continue
		}
		path = append(path, part)
	}
	return path
}

// String renders the path in dotted form.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, segment := range p {
		parts[i] = fmt.Sprint(segment)
	}
	return strings.Join(parts, ".")
}

func (p Path) clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// GetIn walks value following path. It reports false as soon as a segment
// cannot be resolved. An empty path returns value itself.
func GetIn(value any, path Path) (any, bool) {
	current := value
	for i, segment := range path {
		if p, ok := current.(Pathable); ok {
			return p.GetIn(path[i:])
		}
		next, ok := step(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// LookupPath is GetIn with an error describing the missing path.
func LookupPath(value any, path Path) (any, error) {
	out, ok := GetIn(value, path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return out, nil
}

func step(current any, segment any) (any, bool) {
	if current == nil {
		return nil, false
	}

	switch typed := current.(type) {
	case map[string]any:
		key, ok := segmentKey(segment)
		if !ok {
			return nil, false
		}
		out, found := typed[key]
		return out, found
	case []any:
		idx, ok := segmentIndex(segment)
		if !ok || idx >= len(typed) {
			return nil, false
		}
		return typed[idx], true
	}

	rv := reflect.ValueOf(current)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		key, ok := mapKey(rv.Type().Key(), segment)
		if !ok {
			return nil, false
		}
		out := rv.MapIndex(key)
		if !out.IsValid() {
			return nil, false
		}
		return out.Interface(), true
	case reflect.Struct:
		name, ok := segment.(string)
		if !ok {
			return nil, false
		}
		field, ok := structField(rv, name)
		if !ok {
			return nil, false
		}
		return field.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, ok := segmentIndex(segment)
		if !ok || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	default:
		return nil, false
	}
}

func segmentKey(segment any) (string, bool) {
	switch typed := segment.(type) {
	case string:
		return typed, true
	case int:
		return strconv.Itoa(typed), true
	default:
		return "", false
	}
}

func segmentIndex(segment any) (int, bool) {
	switch typed := segment.(type) {
	case int:
		return typed, typed >= 0
	case string:
		idx, err := strconv.Atoi(typed)
		if err != nil || idx < 0 {
			return 0, false
		}
		return idx, true
	default:
		return 0, false
	}
}

func mapKey(keyType reflect.Type, segment any) (reflect.Value, bool) {
	switch keyType.Kind() {
	case reflect.String:
		key, ok := segmentKey(segment)
		if !ok {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(key).Convert(keyType), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		idx, ok := segmentIndex(segment)
		if !ok {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(idx).Convert(keyType), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		idx, ok := segmentIndex(segment)
		if !ok {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(uint64(idx)).Convert(keyType), true
	case reflect.Interface:
		if segment == nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(segment), true
	default:
		return reflect.Value{}, false
	}
}

// structField resolves name against exported fields: Go name first, then
// the json tag name, then a case-insensitive match.
func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	rt := rv.Type()
	if field, ok := rt.FieldByName(name); ok && field.IsExported() {
		out, err := rv.FieldByIndexErr(field.Index)
		if err != nil {
			return reflect.Value{}, false
		}
		return out, true
	}
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		if jsonName(field) == name {
			return rv.Field(i), true
		}
	}
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.IsExported() && strings.EqualFold(field.Name, name) {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "-" {
		return ""
	}
	return name
}
