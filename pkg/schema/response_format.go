package schema

import (
	"reflect"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ResponseFormat is the structured output format of a chat request.
type ResponseFormat struct {
	Type       string                    `json:"type"`
	JSONSchema *ResponseFormatJSONSchema `json:"json_schema,omitempty"`
}

type ResponseFormatJSONSchema struct {
	Name   string                            `json:"name"`
	Strict bool                              `json:"strict"`
	Schema *ResponseFormatJSONSchemaProperty `json:"schema"`
}

// Properties keeps the order of the struct fields
type Properties = orderedmap.OrderedMap[string, *ResponseFormatJSONSchemaProperty]

type ResponseFormatJSONSchemaProperty struct {
	Type                 string                            `json:"type"`
	Title                string                            `json:"title,omitempty"`
	Description          string                            `json:"description,omitempty"`
	Enum                 []any                             `json:"enum,omitempty"`
	Default              any                               `json:"default,omitempty"`
	Examples             []any                             `json:"examples,omitempty"`
	Items                *ResponseFormatJSONSchemaProperty `json:"items,omitempty"`
	Properties           *Properties                       `json:"properties,omitempty"`
	AdditionalProperties *bool                             `json:"additionalProperties,omitempty"`
	Required             []string                          `json:"required,omitempty"`
	Ref                  string                            `json:"$ref,omitempty"`
}

// NewResponseFormat returns the json_schema format for the type.
// In strict mode every property is required, objects are closed,
// and defaults are dropped.
func NewResponseFormat(t reflect.Type, strict bool) (*ResponseFormat, error) {
	sc, err := New(t)
	if err != nil {
		return nil, err
	}
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &ResponseFormatJSONSchema{
			Name:   t.Name(),
			Strict: strict,
			Schema: toResponseSchema(sc.Parameters, strict),
		},
	}, nil
}

func toResponseSchema(in *jsonschema.Schema, strict bool) *ResponseFormatJSONSchemaProperty {
	if in == nil {
		return nil
	}

	result := &ResponseFormatJSONSchemaProperty{
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Enum:        in.Enum,
		Examples:    in.Examples,
		Required:    in.Required,
		Ref:         in.Ref,
	}
	if !strict {
		result.Default = in.Default
	}

	if in.Type == "object" {
		// an additionalProperties schema means an open object
		open := in.AdditionalProperties != nil && !strict
		result.AdditionalProperties = &open
	}

	if in.Properties != nil && in.Properties.Len() > 0 {
		result.Properties = orderedmap.New[string, *ResponseFormatJSONSchemaProperty]()
		var all []string
		for pair := in.Properties.Oldest(); pair != nil; pair = pair.Next() {
			result.Properties.Set(pair.Key, toResponseSchema(pair.Value, strict))
			all = append(all, pair.Key)
		}
		if strict {
			result.Required = all
		}
	}

	if in.Items != nil {
		result.Items = toResponseSchema(in.Items, strict)
	}

	return result
}
