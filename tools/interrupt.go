package tools

import (
	"maps"
	"slices"

	"github.com/invopop/jsonschema"
)

// DecisionType is the kind of decision a human makes on an interrupted tool call
type DecisionType string

const (
	// DecisionRespond replaces the tool result with the human response
	DecisionRespond DecisionType = "respond"
	// DecisionApprove runs the tool with the proposed arguments
	DecisionApprove DecisionType = "approve"
	// DecisionEdit runs the tool with arguments edited by the human
	DecisionEdit DecisionType = "edit"
	// DecisionReject skips the tool and reports the rejection to the model
	DecisionReject DecisionType = "reject"
)

// DecisionTypes lists all decision types
var DecisionTypes = []DecisionType{DecisionRespond, DecisionApprove, DecisionEdit, DecisionReject}

// IsValid returns true for a known decision type
func (d DecisionType) IsValid() bool {
	return slices.Contains(DecisionTypes, d)
}

// InterruptOnConfig declares that a tool call must be confirmed by a human
type InterruptOnConfig struct {
	AllowedDecisions []DecisionType `json:"allowedDecisions" yaml:"allowed_decisions"`
	// Description is shown to the human, a generic approval text is used if empty
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// ArgsSchema validates edited arguments
	ArgsSchema *jsonschema.Schema `json:"argsSchema,omitempty" yaml:"-"`
}

// Allows returns true if the decision type is allowed
func (c InterruptOnConfig) Allows(d DecisionType) bool {
	return slices.Contains(c.AllowedDecisions, d)
}

// InterruptOnMap is keyed by tool name
type InterruptOnMap = map[string]InterruptOnConfig

// Interruptible is implemented by tools with a human-in-the-loop policy
type Interruptible interface {
	InterruptOn() InterruptOnMap
}

// MergeInterruptOn merges the maps, later entries override earlier ones
func MergeInterruptOn(list ...InterruptOnMap) InterruptOnMap {
	res := InterruptOnMap{}
	for _, m := range list {
		maps.Copy(res, m)
	}
	return res
}

// CollectInterruptOn merges the policies of the Interruptible tools in the list
func CollectInterruptOn(list ...ITool) InterruptOnMap {
	res := InterruptOnMap{}
	for _, t := range list {
		if it, ok := t.(Interruptible); ok {
			maps.Copy(res, it.InterruptOn())
		}
	}
	return res
}
