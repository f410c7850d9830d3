package hitl

import (
	"github.com/effective-security/auk/pkg/schema"
	"github.com/invopop/jsonschema"
)

// ValidateArgs checks the edited arguments against the tool input schema,
// a nil schema accepts any arguments.
func ValidateArgs(sc *jsonschema.Schema, args map[string]any) error {
	if sc == nil {
		return nil
	}
	v, err := schema.NewValidator(sc)
	if err != nil {
		return err
	}
	return v.Validate(args)
}
