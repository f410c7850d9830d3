package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Details struct {
	Location string `json:"location" jsonschema:"description=location"`
	Gender   string `json:"gender,omitempty" jsonschema:"description=gender"`
}

type Person struct {
	Name       string    `json:"name" validate:"required" jsonschema:"description=person name"`
	Age        *int      `json:"age,omitempty" jsonschema:"description=Age of a person"`
	Details    *Details  `json:"details,omitempty" jsonschema:"description=Details of a person"`
	DetailList []Details `json:"details_list,omitempty" jsonschema:"description=Details list of a person"`
}

func TestEncoder(t *testing.T) {
	t.Parallel()
	enc, err := NewEncoder(Person{})
	require.NoError(t, err)
	require.NotNil(t, enc.Schema())

	ins := enc.GetFormatInstructions()
	assert.Contains(t, ins, "\nRespond with JSON in the following JSON schema:\n```json\n{\n\t\"properties\": {\n\t\t\"name\": {\n\t\t\t\"type\": \"string\",\n\t\t\t\"description\": \"person name\"\n\t\t},")
	assert.Contains(t, ins, "\"required\": [\n\t\t\"name\"\n\t]\n}\n```\nMake sure to return an instance of the JSON, not the schema itself.\nUse the exact field names as they are defined in the schema.\n")
	assert.NotContains(t, ins, "$defs")

	var p Person
	err = enc.Unmarshal([]byte("Here you go:\n```json\n{\"name\": \"Syd\", \"age\": 24,\n \"details\": {\"location\": \"Beijing\"}}\n```"), &p)
	require.NoError(t, err)
	assert.Equal(t, "Syd", p.Name)
	require.NotNil(t, p.Age)
	assert.Equal(t, 24, *p.Age)
	assert.Equal(t, "Beijing", p.Details.Location)
	assert.NoError(t, enc.Validate(p))
	assert.Error(t, enc.Validate(Person{}))

	js, err := enc.Marshal(Person{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a"}`, string(js))
}
