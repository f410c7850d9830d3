// Package auk provides the agent user-interaction kit: declarative tools
// that hand control to a frontend for questions, forms, file uploads,
// information cards, charts and generated images.
//
// The tools do not implement the interaction. The run functions return a
// canned acknowledgement, and the real answer arrives as the human response
// of the interrupted tool call.
package auk

import (
	"context"
	"slices"

	"github.com/effective-security/auk/pkg/schema"
	"github.com/effective-security/auk/tools"
	"github.com/invopop/jsonschema"
)

// Descriptor is the static record of a tool registered with the agent runtime.
type Descriptor struct {
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	Schema      *jsonschema.Schema   `json:"schema" yaml:"schema"`
	Output      *jsonschema.Schema   `json:"output,omitempty" yaml:"output,omitempty"`
	InterruptOn tools.InterruptOnMap `json:"interruptOn,omitempty" yaml:"interrupt_on,omitempty"`
}

// Schematic is implemented by tools that publish input and output schemas.
type Schematic interface {
	InputSchema() *jsonschema.Schema
	OutputSchema() *jsonschema.Schema
}

// Describe returns the descriptor of the tool.
func Describe(t tools.ITool) Descriptor {
	d := Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
	}
	if s, ok := t.(Schematic); ok {
		d.Schema = s.InputSchema()
		d.Output = s.OutputSchema()
	} else if sc, ok := t.Parameters().(*jsonschema.Schema); ok {
		d.Schema = sc
	}
	if it, ok := t.(tools.Interruptible); ok {
		d.InterruptOn = it.InterruptOn()
	}
	return d
}

// All returns the tools in the order they are registered with the agent.
func All(gen ImageGenerator) []tools.ITool {
	return []tools.ITool{
		NewAskUserWithOptions(),
		NewDisplayInformationCard(),
		NewImageGeneration(gen),
		NewWaitForUserToUploadFile(),
		NewVisualizeDataWithChart(),
		NewAskUserToFillForm(),
	}
}

// Descriptors returns the descriptors of All tools.
func Descriptors(gen ImageGenerator) []Descriptor {
	list := All(gen)
	res := make([]Descriptor, 0, len(list))
	for _, t := range list {
		res = append(res, Describe(t))
	}
	return res
}

// Find returns the descriptor by tool name.
func Find(name string) (Descriptor, bool) {
	list := Descriptors(StaticImages())
	idx := slices.IndexFunc(list, func(d Descriptor) bool { return d.Name == name })
	if idx < 0 {
		return Descriptor{}, false
	}
	return list[idx], true
}

// DefaultInterruptOn is the human-in-the-loop policy of the agent:
// ask_user_with_options, wait_for_user_to_upload_file and ask_user_to_fill_form
// accept only the human response.
func DefaultInterruptOn() tools.InterruptOnMap {
	return tools.MergeInterruptOn(
		AskUserWithOptionsConfig.InterruptOn,
		WaitForUserToUploadFileConfig.InterruptOn,
		AskUserToFillFormConfig.InterruptOn,
	)
}

func respondOnly(name string) tools.InterruptOnMap {
	return tools.InterruptOnMap{
		name: {AllowedDecisions: []tools.DecisionType{tools.DecisionRespond}},
	}
}

// canned returns a run function that acknowledges the call with msg,
// the frontend delivers the actual answer.
func canned[I any](msg string) tools.RunFunc[I, string] {
	return func(context.Context, *I) (*string, error) {
		res := msg
		return &res, nil
	}
}

func outputSchema[T any](description string) *jsonschema.Schema {
	sc := *schema.MustFor[T]().Parameters
	sc.Description = description
	return &sc
}
