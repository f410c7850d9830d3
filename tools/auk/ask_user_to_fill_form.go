package auk

import (
	"github.com/effective-security/auk/tools"
)

// AskUserToFillFormName is the name of the form tool
const AskUserToFillFormName = "ask_user_to_fill_form"

// AskUserToFillFormRequest is the form configuration following react-jsonschema-form
type AskUserToFillFormRequest struct {
	Title       string         `json:"title" yaml:"title" validate:"required" jsonschema:"description=Form title"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" jsonschema:"description=Optional form description"`
	Schema      map[string]any `json:"schema" yaml:"schema" validate:"required" jsonschema:"description=JSON Schema for the form (react-jsonschema-form compatible)"`
	UISchema    map[string]any `json:"ui_schema,omitempty" yaml:"ui_schema,omitempty" jsonschema:"description=UI Schema for customizing form rendering (react-jsonschema-form format)"`
	FormData    map[string]any `json:"form_data,omitempty" yaml:"form_data,omitempty" jsonschema:"description=Initial form data values"`
}

// AskUserToFillFormConfig declares the form tool
var AskUserToFillFormConfig = tools.Config{
	Name:             AskUserToFillFormName,
	Description:      "Present a form to the user for filling out. Schema follows react-jsonschema-form format.",
	InputDescription: "Form configuration following react-jsonschema-form",
	Output:           outputSchema[map[string]any]("form data filled in by the user"),
	InterruptOn:      respondOnly(AskUserToFillFormName),
}

// NewAskUserToFillForm returns the form tool
func NewAskUserToFillForm() *tools.Func[AskUserToFillFormRequest, string] {
	return tools.MustNew(AskUserToFillFormConfig,
		canned[AskUserToFillFormRequest]("user filled form: answer will appear in human in the loop reject message"))
}
