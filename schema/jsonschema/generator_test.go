package jsonschema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name     string         `json:"name"`
	Email    string         `json:"email,omitempty"`
	Tags     []string       `json:"tags"`
	Created  time.Time      `json:"created"`
	Settings map[string]any `json:"settings,omitempty"`
	Ignored  string         `json:"-"`
	internal int
}

func TestGenerateStruct(t *testing.T) {
	schema, err := Generate(profile{Tags: []string{"a"}, Settings: map[string]any{"dark": true}}, WithTitle("profile"))
	require.NoError(t, err)

	assert.Equal(t, Draft202012, schema["$schema"])
	assert.Equal(t, "profile", schema["title"])
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"created", "name", "tags"}, schema["required"])

	properties := schema["properties"].(map[string]any)
	assert.Len(t, properties, 5)
	assert.NotContains(t, properties, "Ignored")
	assert.Equal(t, map[string]any{"type": "string", "format": "date-time"}, properties["created"])
	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, properties["tags"])

	settings := properties["settings"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "boolean"}, settings["properties"].(map[string]any)["dark"])
}

func TestGenerateDynamicState(t *testing.T) {
	schema, err := Generate(map[string]any{
		"count": 3,
		"ratio": 0.5,
		"user":  map[string]any{"name": "ada"},
		"list":  []any{},
		"none":  nil,
		"raw":   []byte("x"),
	}, WithStrictObjects(), WithDraft(""))
	require.NoError(t, err)

	assert.NotContains(t, schema, "$schema")
	assert.Equal(t, false, schema["additionalProperties"])
	properties := schema["properties"].(map[string]any)
	assert.Equal(t, "integer", properties["count"].(map[string]any)["type"])
	assert.Equal(t, "number", properties["ratio"].(map[string]any)["type"])
	assert.Equal(t, "null", properties["none"].(map[string]any)["type"])
	assert.Equal(t, map[string]any{}, properties["list"].(map[string]any)["items"])
	assert.Equal(t, "base64", properties["raw"].(map[string]any)["contentEncoding"])
	assert.Equal(t, false, properties["user"].(map[string]any)["additionalProperties"])
}

func TestGenerateRejectsUnsupportedValues(t *testing.T) {
	_, err := Generate(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ch")

	_, err = Generate(map[int]string{1: "a"})
	require.Error(t, err)
}
