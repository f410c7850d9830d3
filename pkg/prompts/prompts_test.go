package prompts

import (
	"testing"

	"github.com/effective-security/auk/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tmpl   PromptTemplate
		values map[string]any
		exp    string
		err    string
	}{
		{
			name: "plain",
			tmpl: NewPromptTemplate("你是一个智能助手", nil),
			exp:  "你是一个智能助手",
		},
		{
			name:   "sprig",
			tmpl:   NewPromptTemplate(`Hello {{ .name | upper }}, today is {{ .day | default "Monday" }}`, []string{"name"}),
			values: map[string]any{"name": "bob", "day": ""},
			exp:    "Hello BOB, today is Monday",
		},
		{
			name: "partial",
			tmpl: PromptTemplate{
				Template:         `{{ .greeting }}, {{ .name }}`,
				InputVariables:   []string{"name"},
				PartialVariables: map[string]any{"greeting": "Hi", "name": "default"},
			},
			values: map[string]any{"name": "Alice"},
			exp:    "Hi, Alice",
		},
		{
			name: "missing key",
			tmpl: NewPromptTemplate(`{{ .unknown }}`, nil),
			err:  "failed to format prompt",
		},
		{
			name: "bad template",
			tmpl: NewPromptTemplate(`{{ .name `, nil),
			err:  "failed to parse prompt template",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			val, err := tc.tmpl.FormatPrompt(tc.values)
			if tc.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exp, val.String())
			assert.Equal(t, []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, tc.exp)}, val.Messages())
		})
	}
}
