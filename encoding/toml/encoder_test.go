package toml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Details struct {
	Location string `toml:"location" fake:"Beijing"`
	Gender   string `toml:"gender" fake:"male"`
}

type Person struct {
	Name       string    `toml:"name" validate:"required" fake:"Syd Xu"`
	Age        *int      `toml:"age" fake:"24"`
	Details    *Details  `toml:"details"`
	DetailList []Details `toml:"details_list" fakesize:"1"`
}

func TestFormatInstructions(t *testing.T) {
	t.Parallel()
	enc := NewEncoder(Person{})
	exp := `
Respond with TOML in the following TOML schema:
` + "```toml" + `
name = "Syd Xu"
age = 24

[details]
  location = "Beijing"
  gender = "male"

[[details_list]]
  location = "Beijing"
  gender = "male"
` + "```" + `
Make sure to return an instance of the TOML, not the schema itself.
`
	assert.Equal(t, exp, enc.GetFormatInstructions())
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()
	enc := NewEncoder(Person{})

	var p Person
	require.NoError(t, enc.Unmarshal([]byte("```toml\nname = \"Bob\"\n[details]\nlocation = \"Paris\"\n```"), &p))
	assert.Equal(t, "Bob", p.Name)
	assert.Equal(t, "Paris", p.Details.Location)
	assert.NoError(t, enc.Validate(p))
	assert.Error(t, enc.Validate(Person{}))
	assert.Error(t, enc.Unmarshal([]byte("name = "), &p))
}
