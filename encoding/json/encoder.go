// Package json is the JSON output encoder, the format instructions carry the JSON schema.
package json

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/bububa/ljson"
	"github.com/effective-security/auk/pkg/llmutils"
	"github.com/effective-security/auk/pkg/schema"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Encoder struct {
	schema *schema.Schema
}

func NewEncoder(req any) (*Encoder, error) {
	sc, err := schema.New(reflect.TypeOf(req))
	if err != nil {
		return nil, err
	}
	return &Encoder{
		schema: sc,
	}, nil
}

func (e *Encoder) Marshal(req any) ([]byte, error) {
	return json.Marshal(req)
}

// Unmarshal decodes the LLM response,
// the text around the JSON and comments are ignored
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	return ljson.Unmarshal(llmutils.CleanJSON(bs), ret)
}

func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

func (e *Encoder) GetFormatInstructions() string {
	var b strings.Builder
	b.WriteString("\nRespond with JSON in the following JSON schema:\n")
	b.WriteString("```json\n")
	b.WriteString(e.schema.String())
	b.WriteString("\n```")
	b.WriteString("\nMake sure to return an instance of the JSON, not the schema itself.\n")
	b.WriteString("Use the exact field names as they are defined in the schema.\n")
	return b.String()
}

func (e *Encoder) Schema() *schema.Schema {
	return e.schema
}
