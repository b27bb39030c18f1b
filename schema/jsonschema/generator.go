// Package jsonschema infers a JSON Schema document from a state snapshot.
package jsonschema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Draft202012 is the default $schema identifier.
const Draft202012 = "https://json-schema.org/draft/2020-12/schema"

const maxDepth = 32

type config struct {
	draft       string
	title       string
	description string
	strict      bool
}

// Option customises the generated document.
type Option func(*config)

// WithDraft overrides the $schema identifier.
func WithDraft(draft string) Option {
	return func(c *config) {
		c.draft = strings.TrimSpace(draft)
	}
}

// WithTitle sets the root title.
func WithTitle(title string) Option {
	return func(c *config) {
		c.title = strings.TrimSpace(title)
	}
}

// WithDescription sets the root description.
func WithDescription(description string) Option {
	return func(c *config) {
		c.description = strings.TrimSpace(description)
	}
}

// WithStrictObjects marks every object schema additionalProperties=false.
func WithStrictObjects() Option {
	return func(c *config) {
		c.strict = true
	}
}

// Generator builds schemas from values.
type Generator struct {
	cfg config
}

// NewGenerator constructs a Generator.
func NewGenerator(opts ...Option) *Generator {
	cfg := config{draft: Draft202012}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{cfg: cfg}
}

// Generate infers a schema from value. Map and slice element schemas are
// inferred from the values present, so an empty slice yields an empty items
// schema.
func (g *Generator) Generate(value any) (map[string]any, error) {
	schema, err := g.build(reflect.ValueOf(value), 0)
	if err != nil {
		return nil, err
	}
	if g.cfg.draft != "" {
		schema["$schema"] = g.cfg.draft
	}
	if g.cfg.title != "" {
		schema["title"] = g.cfg.title
	}
	if g.cfg.description != "" {
		schema["description"] = g.cfg.description
	}
	return schema, nil
}

// Generate is NewGenerator(opts...).Generate(value).
func Generate(value any, opts ...Option) (map[string]any, error) {
	return NewGenerator(opts...).Generate(value)
}

func (g *Generator) build(rv reflect.Value, depth int) (map[string]any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("jsonschema: value nested deeper than %d levels", maxDepth)
	}
	if !rv.IsValid() {
		return map[string]any{"type": "null"}, nil
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return map[string]any{"type": "null"}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			return map[string]any{"type": "string", "format": "date-time"}, nil
		}
		return g.object(rv, depth)
	case reflect.Map:
		return g.mapObject(rv, depth)
	case reflect.Slice, reflect.Array:
		return g.array(rv, depth)
	default:
		return nil, fmt.Errorf("jsonschema: unsupported kind %s", rv.Kind())
	}
}

func (g *Generator) mapObject(rv reflect.Value, depth int) (map[string]any, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("jsonschema: map key type %s unsupported", rv.Type().Key())
	}

	names := make([]string, 0, rv.Len())
	for _, key := range rv.MapKeys() {
		names = append(names, key.String())
	}
	sort.Strings(names)

	properties := make(map[string]any, len(names))
	for _, name := range names {
		child, err := g.build(rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key())), depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		properties[name] = child
	}
	return g.finishObject(properties, nil), nil
}

func (g *Generator) object(rv reflect.Value, depth int) (map[string]any, error) {
	rt := rv.Type()
	properties := map[string]any{}
	var required []string

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := fieldName(field)
		if skip {
			continue
		}
		child, err := g.build(rv.Field(i), depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		properties[name] = child
		if !omitEmpty {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return g.finishObject(properties, required), nil
}

func (g *Generator) finishObject(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	if g.cfg.strict {
		schema["additionalProperties"] = false
	}
	return schema
}

func (g *Generator) array(rv reflect.Value, depth int) (map[string]any, error) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return map[string]any{"type": "string", "contentEncoding": "base64"}, nil
	}
	items := map[string]any{}
	if rv.Len() > 0 {
		schema, err := g.build(rv.Index(0), depth+1)
		if err != nil {
			return nil, err
		}
		items = schema
	}
	return map[string]any{
		"type":  "array",
		"items": items,
	}, nil
}

func fieldName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	name = field.Name
	tag := field.Tag.Get("json")
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "-" && len(parts) == 1 {
		return "", false, true
	}
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}
