package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/auk/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type axis struct {
	Label string `json:"label" jsonschema:"title=Label,description=Axis label"`
	Field string `json:"field" jsonschema:"title=Field,description=Data field"`
}

type chart struct {
	Title  string           `json:"title" jsonschema:"title=Title,description=Chart title"`
	Kind   string           `json:"kind,omitempty" jsonschema:"enum=line,enum=bar,default=line"`
	Points []map[string]any `json:"points"`
	X      *axis            `json:"x,omitempty"`
	Axes   []axis           `json:"axes,omitempty"`
}

func TestSchema(t *testing.T) {
	t.Parallel()

	t.Run("Flat", func(t *testing.T) {
		t.Parallel()
		s, err := schema.New(reflect.TypeOf(axis{}))
		require.NoError(t, err)
		exp := `{
	"properties": {
		"label": {
			"type": "string",
			"title": "Label",
			"description": "Axis label"
		},
		"field": {
			"type": "string",
			"title": "Field",
			"description": "Data field"
		}
	},
	"type": "object",
	"required": [
		"label",
		"field"
	]
}`
		assert.Equal(t, exp, s.String())
	})

	t.Run("Nested", func(t *testing.T) {
		t.Parallel()
		s, err := schema.For[chart]()
		require.NoError(t, err)
		p := s.Parameters
		assert.Equal(t, "object", p.Type)
		assert.Equal(t, []string{"title", "points"}, p.Required)
		assert.Empty(t, p.Version)
		assert.Equal(t, schema.Draft, s.RawSchema.Version)

		kind, ok := p.Properties.Get("kind")
		require.True(t, ok)
		assert.Equal(t, []any{"line", "bar"}, kind.Enum)
		assert.Equal(t, "line", kind.Default)

		points, ok := p.Properties.Get("points")
		require.True(t, ok)
		assert.Equal(t, "array", points.Type)
		require.NotNil(t, points.Items)
		assert.Equal(t, "object", points.Items.Type)

		x, ok := p.Properties.Get("x")
		require.True(t, ok)
		assert.Equal(t, "object", x.Type)
		assert.Equal(t, []string{"label", "field"}, x.Required)

		axes, ok := p.Properties.Get("axes")
		require.True(t, ok)
		require.NotNil(t, axes.Items)
		assert.Equal(t, "object", axes.Items.Type)
	})

	t.Run("Pointer", func(t *testing.T) {
		t.Parallel()
		s1, err := schema.New(reflect.TypeOf(&axis{}))
		require.NoError(t, err)
		s2 := schema.MustFor[axis]()
		assert.Equal(t, s1.String(), s2.String())
	})

	t.Run("Scalar", func(t *testing.T) {
		t.Parallel()
		s, err := schema.For[string]()
		require.NoError(t, err)
		assert.Equal(t, "string", s.Parameters.Type)

		s, err = schema.For[[]string]()
		require.NoError(t, err)
		assert.Equal(t, "array", s.Parameters.Type)
		assert.Empty(t, s.Parameters.Version)
	})

	t.Run("NonStruct", func(t *testing.T) {
		t.Parallel()
		s, err := schema.For[map[string]any]()
		require.NoError(t, err)
		assert.Equal(t, "object", s.Parameters.Type)

		s, err = schema.For[[]axis]()
		require.NoError(t, err)
		assert.Equal(t, "array", s.Parameters.Type)
		require.NotNil(t, s.Parameters.Items)
		assert.Equal(t, "object", s.Parameters.Items.Type)
		_, ok := s.Parameters.Items.Properties.Get("label")
		assert.True(t, ok)

		s, err = schema.For[*int]()
		require.NoError(t, err)
		assert.Equal(t, "integer", s.Parameters.Type)
	})

	t.Run("Cached", func(t *testing.T) {
		t.Parallel()
		s1 := schema.MustFor[chart]()
		s2 := schema.MustFor[chart]()
		assert.Same(t, s1, s2)
	})
}

func TestSchemaFromAny(t *testing.T) {
	t.Parallel()

	sc, err := schema.FromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type": "string",
			},
		},
		"required": []string{"query"},
	})
	require.NoError(t, err)
	assert.Equal(t, "object", sc.Type)
	assert.Equal(t, []string{"query"}, sc.Required)

	_, err = schema.FromAny(map[string]any{"type": func() {}})
	assert.Error(t, err)

	assert.Panics(t, func() {
		schema.MustFromAny(map[string]any{"type": 1})
	})
}

func TestSchemaNewResponseFormat(t *testing.T) {
	t.Parallel()

	rf, err := schema.NewResponseFormat(reflect.TypeOf(axis{}), true)
	require.NoError(t, err)
	assert.Equal(t, "json_schema", rf.Type)
	assert.Equal(t, "axis", rf.JSONSchema.Name)
	assert.True(t, rf.JSONSchema.Strict)

	js, err := json.Marshal(rf.JSONSchema.Schema)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"object","properties":{"label":{"type":"string","title":"Label","description":"Axis label"},"field":{"type":"string","title":"Field","description":"Data field"}},"additionalProperties":false,"required":["label","field"]}`, string(js))

	t.Run("strict", func(t *testing.T) {
		t.Parallel()
		rf, err := schema.NewResponseFormat(reflect.TypeOf(chart{}), true)
		require.NoError(t, err)
		sc := rf.JSONSchema.Schema
		assert.Equal(t, []string{"title", "kind", "points", "x", "axes"}, sc.Required)

		kind, ok := sc.Properties.Get("kind")
		require.True(t, ok)
		assert.Nil(t, kind.Default)
		assert.Equal(t, []any{"line", "bar"}, kind.Enum)

		x, ok := sc.Properties.Get("x")
		require.True(t, ok)
		assert.Equal(t, []string{"label", "field"}, x.Required)
		require.NotNil(t, x.AdditionalProperties)
		assert.False(t, *x.AdditionalProperties)
	})

	t.Run("relaxed", func(t *testing.T) {
		t.Parallel()
		rf, err := schema.NewResponseFormat(reflect.TypeOf(chart{}), false)
		require.NoError(t, err)
		sc := rf.JSONSchema.Schema
		assert.Equal(t, []string{"title", "points"}, sc.Required)

		kind, ok := sc.Properties.Get("kind")
		require.True(t, ok)
		assert.Equal(t, "line", kind.Default)

		axes, ok := sc.Properties.Get("axes")
		require.True(t, ok)
		assert.Equal(t, "array", axes.Type)
		require.NotNil(t, axes.Items)
		assert.Equal(t, "object", axes.Items.Type)
	})
}
