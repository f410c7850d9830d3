// Package prompts formats system and chat prompts from text/template
// templates with the sprig functions.
package prompts

import (
	"maps"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/pkg/llms"
)

// PromptValue is the formatted prompt
type PromptValue interface {
	String() string
	Messages() []llms.Message
}

// FormatPrompter formats the prompt from the input values
type FormatPrompter interface {
	FormatPrompt(values map[string]any) (PromptValue, error)
	GetInputVariables() []string
}

var (
	_ FormatPrompter = PromptTemplate{}
	_ PromptValue    = StringPromptValue("")
)

// StringPromptValue is a prompt formatted as a single text
type StringPromptValue string

func (v StringPromptValue) String() string {
	return string(v)
}

// Messages returns the text as a human message
func (v StringPromptValue) Messages() []llms.Message {
	return []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, string(v))}
}

// PromptTemplate is a text/template prompt
type PromptTemplate struct {
	Template string
	// InputVariables must be provided to Format
	InputVariables []string
	// PartialVariables are merged under the input values
	PartialVariables map[string]any
}

// NewPromptTemplate returns the prompt template
func NewPromptTemplate(tmpl string, inputVars []string) PromptTemplate {
	return PromptTemplate{
		Template:       tmpl,
		InputVariables: inputVars,
	}
}

// Format renders the template
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	data := make(map[string]any, len(p.PartialVariables)+len(values))
	maps.Copy(data, p.PartialVariables)
	maps.Copy(data, values)

	for _, name := range p.InputVariables {
		if _, ok := data[name]; !ok {
			return "", errors.Newf("missing input variable %q", name)
		}
	}
	if !strings.Contains(p.Template, "{{") {
		return p.Template, nil
	}

	t, err := template.New("prompt").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(p.Template)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse prompt template")
	}
	var sb strings.Builder
	if err = t.Execute(&sb, data); err != nil {
		return "", errors.Wrap(err, "failed to format prompt")
	}
	return sb.String(), nil
}

func (p PromptTemplate) FormatPrompt(values map[string]any) (PromptValue, error) {
	s, err := p.Format(values)
	if err != nil {
		return nil, err
	}
	return StringPromptValue(s), nil
}

func (p PromptTemplate) GetInputVariables() []string {
	return slices.Clone(p.InputVariables)
}
