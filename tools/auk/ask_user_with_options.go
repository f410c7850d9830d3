package auk

import (
	"github.com/effective-security/auk/tools"
)

// AskUserWithOptionsName is the name of the question tool
const AskUserWithOptionsName = "ask_user_with_options"

// SelectionType is the selection mode of a question
type SelectionType string

const (
	SingleSelect SelectionType = "single_select"
	MultiSelect  SelectionType = "multi_select"
)

// Option is a selectable option of a question
type Option struct {
	Index float64 `json:"index" yaml:"index" jsonschema:"description=Index of the option"`
	Label string  `json:"label" yaml:"label" jsonschema:"description=Optional display label"`
}

// AskUserWithOptionsRequest is the single question to ask the user
type AskUserWithOptionsRequest struct {
	Description      string        `json:"description" yaml:"description" validate:"required" jsonschema:"description=Question text to display"`
	Type             SelectionType `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=single_select multi_select" jsonschema:"enum=single_select,enum=multi_select,default=single_select,description=Selection mode for this question"`
	Options          []Option      `json:"options" yaml:"options" validate:"required" jsonschema:"description=Selectable options for the question"`
	AllowCustomInput *bool         `json:"allow_custom_input,omitempty" yaml:"allow_custom_input,omitempty" jsonschema:"default=true,description=Allow user to input custom text"`
}

// AskUserWithOptionsConfig declares the question tool
var AskUserWithOptionsConfig = tools.Config{
	Name: AskUserWithOptionsName,
	Description: `Ask the user one question with options and optional custom input.

When to use:
- Need to ask a single question with predefined options
- User needs to make a choice from a limited set of options
- Want to allow users to provide custom input in addition to selecting options
- Simple decision-making scenarios (e.g., "Which option do you prefer?", "Select a category")
- Gather user feedback for what you have done

Not to use:
- Complex multi-field forms
- Multiple independent questions
- File uploads
- Displaying information without user input
- Collecting detailed feedback with multiple question types`,
	InputDescription: "The single question to ask the user",
	Output:           outputSchema[string]("user selected option"),
	InterruptOn:      respondOnly(AskUserWithOptionsName),
}

// NewAskUserWithOptions returns the question tool
func NewAskUserWithOptions() *tools.Func[AskUserWithOptionsRequest, string] {
	return tools.MustNew(AskUserWithOptionsConfig,
		canned[AskUserWithOptionsRequest]("user selected: answer will appear in human in the loop reject message"))
}
